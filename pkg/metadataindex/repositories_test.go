package metadataindex

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestEnsureRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)

	mock.ExpectQuery(`INSERT INTO repositories`).
		WithArgs("library/ubuntu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	id, err := svc.EnsureRepository(context.Background(), "library/ubuntu")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRepositoryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)

	mock.ExpectQuery(`SELECT id, name, namespace, is_public, owner_ref`).
		WithArgs("missing/repo").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "namespace", "is_public", "owner_ref"}))

	_, err = svc.GetRepository(context.Background(), "missing/repo")
	require.ErrorIs(t, err, ErrNotFound)
}
