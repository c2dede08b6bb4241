package metadataindex

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyErrMapsUniqueViolation(t *testing.T) {
	err := classifyErr(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestClassifyErrMapsForeignKeyViolation(t *testing.T) {
	err := classifyErr(&pq.Error{Code: "23503"})
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestClassifyErrPassesThroughOther(t *testing.T) {
	assert.Nil(t, classifyErr(nil))
	other := errors.New("connection reset")
	assert.Equal(t, other, classifyErr(other))
}
