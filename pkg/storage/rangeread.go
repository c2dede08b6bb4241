package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// GetBlobRange returns a reader over the byte range [start, end]
// (both ends inclusive, per HTTP Range semantics) of a committed blob.
// There is no donor equivalent — the donor's GetBlob always returns the
// whole object.
func (s *S3Store) GetBlobRange(ctx context.Context, digest string, start, end int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, blobKey(digest), opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
