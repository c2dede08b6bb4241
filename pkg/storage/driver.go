// Package storage is the Content Store: content-addressed blob storage and
// resumable-upload scratch space over MinIO/S3, adapted from the donor's
// S3Driver into the full ContentStore contract.
package storage

import (
	"context"
	"fmt"
	"io"
)

// ContentStore is the Content Store's public contract. Every method that
// touches object storage takes a context so callers can bound slow network
// calls.
type ContentStore interface {
	PutBlob(ctx context.Context, digest string, r io.Reader, size int64) error
	GetBlob(ctx context.Context, digest string) (io.ReadCloser, int64, error)
	GetBlobRange(ctx context.Context, digest string, start, end int64) (io.ReadCloser, error)
	BlobExists(ctx context.Context, digest string) (bool, error)
	BlobSize(ctx context.Context, digest string) (int64, error)
	DeleteBlob(ctx context.Context, digest string) error

	OpenScratch(ctx context.Context, uploadID string) error
	AppendScratch(ctx context.Context, uploadID string, offset int64, r io.Reader) (int64, error)
	ScratchSize(ctx context.Context, uploadID string) (int64, error)
	PromoteScratch(ctx context.Context, uploadID, expectedDigest string) (int64, error)
	DeleteScratch(ctx context.Context, uploadID string) error
}

// ErrDigestMismatch is returned by PromoteScratch when the streamed bytes
// don't hash to expectedDigest.
type ErrDigestMismatch struct {
	Expected string
	Got      string
}

func (e *ErrDigestMismatch) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ErrOffsetMismatch is returned by AppendScratch when offset doesn't equal
// the current scratch size.
type ErrOffsetMismatch struct {
	Expected int64
	Got      int64
}

func (e *ErrOffsetMismatch) Error() string {
	return fmt.Sprintf("offset mismatch: expected %d, got %d", e.Expected, e.Got)
}

// blobKey is the canonical committed-blob object key.
func blobKey(digest string) string {
	hex := digest
	if len(digest) > 7 && digest[:7] == "sha256:" {
		hex = digest[7:]
	}
	prefix := hex
	if len(hex) >= 2 {
		prefix = hex[:2]
	}
	return "blobs/sha256/" + prefix + "/" + hex
}

// scratchPrefix is the object-key prefix under which an upload session's
// part objects live.
func scratchPrefix(uploadID string) string {
	return "uploads/" + uploadID + "/"
}

func partKey(uploadID string, seq int) string {
	return fmt.Sprintf("%spart-%08d", scratchPrefix(uploadID), seq)
}
