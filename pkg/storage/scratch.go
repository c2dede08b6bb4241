package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
)

// OpenScratch is a no-op: MinIO has no directory objects, and part objects
// are created lazily by AppendScratch.
func (s *S3Store) OpenScratch(ctx context.Context, uploadID string) error {
	return nil
}

// ScratchSize lists the uploadID's part objects and sums their sizes,
// making the Content Store self-sufficient for offset bookkeeping rather
// than trusting a side channel.
func (s *S3Store) ScratchSize(ctx context.Context, uploadID string) (int64, error) {
	var total int64
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    scratchPrefix(uploadID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return 0, obj.Err
		}
		total += obj.Size
	}
	return total, nil
}

// AppendScratch writes r as the next part object, rejecting an offset that
// doesn't match the current summed scratch size (the storage-level
// enforcement of "start MUST equal the current uploadedSize").
func (s *S3Store) AppendScratch(ctx context.Context, uploadID string, offset int64, r io.Reader) (int64, error) {
	current, err := s.ScratchSize(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	if offset != current {
		return current, &ErrOffsetMismatch{Expected: current, Got: offset}
	}

	seq, err := s.nextPartSeq(ctx, uploadID)
	if err != nil {
		return 0, err
	}

	info, err := s.client.PutObject(ctx, s.bucketName, partKey(uploadID, seq), r, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, err
	}

	return current + info.Size, nil
}

func (s *S3Store) nextPartSeq(ctx context.Context, uploadID string) (int, error) {
	max := -1
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    scratchPrefix(uploadID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return 0, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, scratchPrefix(uploadID))
		name = strings.TrimPrefix(name, "part-")
		n, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// PromoteScratch streams every part object in sequence through a SHA-256
// hasher into a single PutObject at the final digest key, never buffering
// the whole blob in memory. On digest match it deletes the part objects;
// on mismatch it leaves the parts untouched and returns *ErrDigestMismatch
// so the caller can retry.
func (s *S3Store) PromoteScratch(ctx context.Context, uploadID, expectedDigest string) (int64, error) {
	parts, err := s.orderedPartKeys(ctx, uploadID)
	if err != nil {
		return 0, err
	}

	readers := make([]io.Reader, 0, len(parts))
	closers := make([]io.Closer, 0, len(parts))
	for _, key := range parts {
		obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return 0, err
		}
		readers = append(readers, obj)
		closers = append(closers, obj)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	hasher := sha256.New()
	combined := io.MultiReader(readers...)
	tee := io.TeeReader(combined, hasher)

	info, err := s.client.PutObject(ctx, s.bucketName, blobKey(expectedDigest), tee, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, err
	}

	gotDigest := "sha256:" + hex.EncodeToString(hasher.Sum(nil))
	if gotDigest != expectedDigest {
		// Remove the object written under the wrong digest; leave the
		// scratch parts alone so the caller can inspect/retry.
		_ = s.client.RemoveObject(ctx, s.bucketName, blobKey(expectedDigest), minio.RemoveObjectOptions{})
		return 0, &ErrDigestMismatch{Expected: expectedDigest, Got: gotDigest}
	}

	for _, key := range parts {
		if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
			return info.Size, err
		}
	}

	return info.Size, nil
}

func (s *S3Store) orderedPartKeys(ctx context.Context, uploadID string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    scratchPrefix(uploadID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteScratch removes every part object for uploadID, on cancel or
// expiry.
func (s *S3Store) DeleteScratch(ctx context.Context, uploadID string) error {
	keys, err := s.orderedPartKeys(ctx, uploadID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
