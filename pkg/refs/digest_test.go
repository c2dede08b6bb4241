package refs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256HexMatchesKnownDigest(t *testing.T) {
	got := SHA256Hex([]byte("hello\n"))
	assert.Equal(t, "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03", got)
}

func TestSHA256Stream(t *testing.T) {
	got, n, err := SHA256Stream(strings.NewReader("hello\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
	assert.Equal(t, "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03", got)
}

func TestVerifyingReaderDetectsMismatch(t *testing.T) {
	vr := NewVerifyingReader(strings.NewReader("hello\n"), "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03")
	buf := make([]byte, 64)
	for {
		n, err := vr.Read(buf)
		_ = n
		if err != nil {
			break
		}
	}
	assert.True(t, vr.Verified())

	vr2 := NewVerifyingReader(strings.NewReader("goodbye\n"), "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03")
	for {
		n, err := vr2.Read(buf)
		_ = n
		if err != nil {
			break
		}
	}
	assert.False(t, vr2.Verified())
}
