package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/registryx/registryx/pkg/config"
)

// S3Store is the MinIO-backed ContentStore, adapted from the donor's
// S3Driver: same client construction and bucket-ensure-exists dance, now
// exposing the full blob + scratch contract instead of a generic
// Writer/Reader pair.
type S3Store struct {
	client     *minio.Client
	bucketName string
}

// NewS3Store builds an S3Store, creating the configured bucket if it
// doesn't already exist.
func NewS3Store(cfg *config.Config) (*S3Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioUser, cfg.MinioPass, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	bucketName := cfg.MinioBucket
	if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, bucketName)
		if existsErr != nil || !exists {
			return nil, err
		}
	}

	return &S3Store{client: client, bucketName: bucketName}, nil
}

func (s *S3Store) PutBlob(ctx context.Context, digest string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucketName, blobKey(digest), r, size, minio.PutObjectOptions{})
	return err
}

func (s *S3Store) GetBlob(ctx context.Context, digest string) (io.ReadCloser, int64, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, blobKey(digest), minio.StatObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, blobKey(digest), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	return obj, info.Size, nil
}

func (s *S3Store) BlobExists(ctx context.Context, digest string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, blobKey(digest), minio.StatObjectOptions{})
	if err != nil {
		if errResp := minio.ToErrorResponse(err); errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Store) BlobSize(ctx context.Context, digest string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, blobKey(digest), minio.StatObjectOptions{})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *S3Store) DeleteBlob(ctx context.Context, digest string) error {
	return s.client.RemoveObject(ctx, s.bucketName, blobKey(digest), minio.RemoveObjectOptions{})
}
