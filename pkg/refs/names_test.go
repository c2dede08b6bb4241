package refs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRepositoryName(t *testing.T) {
	cases := []struct {
		name  string
		value string
		valid bool
	}{
		{"simple", "library/ubuntu", true},
		{"single segment", "ubuntu", true},
		{"nested", "a/b/c-d/e.f_g", true},
		{"uppercase rejected", "Library/Ubuntu", false},
		{"empty rejected", "", false},
		{"double slash rejected", "a//b", false},
		{"leading dash rejected", "-a/b", false},
		{"too long rejected", strings.Repeat("a", 256), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateRepositoryName(c.value)
			if c.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "name", ve.Field)
			}
		})
	}
}

func TestValidateTagName(t *testing.T) {
	require.NoError(t, ValidateTagName("latest"))
	require.NoError(t, ValidateTagName("v1.2.3_rc-1"))
	require.Error(t, ValidateTagName(""))
	require.Error(t, ValidateTagName("has a space"))
	require.Error(t, ValidateTagName(strings.Repeat("a", 129)))
}

func TestValidateDigest(t *testing.T) {
	valid := "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	require.NoError(t, ValidateDigest(valid))
	require.Error(t, ValidateDigest("sha256:deadbeef"))
	require.Error(t, ValidateDigest("md5:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"))
	require.Error(t, ValidateDigest("not-a-digest"))
}

func TestIsDigestReference(t *testing.T) {
	assert.True(t, IsDigestReference("sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"))
	assert.False(t, IsDigestReference("latest"))
}
