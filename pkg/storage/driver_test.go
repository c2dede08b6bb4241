package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlobKey(t *testing.T) {
	got := blobKey("sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03")
	assert.Equal(t, "blobs/sha256/58/5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03", got)
}

func TestPartKey(t *testing.T) {
	assert.Equal(t, "uploads/abc/part-00000000", partKey("abc", 0))
	assert.Equal(t, "uploads/abc/part-00000007", partKey("abc", 7))
}

func TestErrDigestMismatchMessage(t *testing.T) {
	err := &ErrDigestMismatch{Expected: "sha256:aaa", Got: "sha256:bbb"}
	assert.Contains(t, err.Error(), "sha256:aaa")
	assert.Contains(t, err.Error(), "sha256:bbb")
}

func TestErrOffsetMismatchMessage(t *testing.T) {
	err := &ErrOffsetMismatch{Expected: 10, Got: 5}
	assert.Contains(t, err.Error(), "10")
	assert.Contains(t, err.Error(), "5")
}
