package metadataindex

import (
	"context"
	"database/sql"
	"errors"
)

type Blob struct {
	ID             int64
	Digest         string
	Size           int64
	MediaType      string
	StorageLocator string
}

// RegisterBlob inserts the blob row if absent (an existing row only has its
// last_accessed_at refreshed) and links it to repositoryID via
// repository_blobs.
func (s *Service) RegisterBlob(ctx context.Context, repositoryID int64, digest string, size int64, mediaType, storageLocator string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	defer tx.Rollback()

	var blobID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO blobs (digest, size, media_type, storage_locator)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (digest) DO UPDATE SET last_accessed_at = now()
		RETURNING id
	`, digest, size, mediaType, storageLocator).Scan(&blobID)
	if err != nil {
		return classifyErr(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO repository_blobs (repository_id, blob_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, repositoryID, blobID)
	if err != nil {
		return classifyErr(err)
	}

	return tx.Commit()
}

// BlobExistsInRepository reports whether digest is linked to repositoryID
// via a RepositoryBlob edge (the scope the spec.md Blob-delete decision
// unlinks rather than the global blob existing).
func (s *Service) BlobExistsInRepository(ctx context.Context, repositoryID int64, digest string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM repository_blobs rb
			JOIN blobs b ON b.id = rb.blob_id
			WHERE rb.repository_id = $1 AND b.digest = $2
		)
	`, repositoryID, digest).Scan(&exists)
	if err != nil {
		return false, classifyErr(err)
	}
	return exists, nil
}

// GetBlob resolves a blob by digest, globally (not scoped to a repository).
func (s *Service) GetBlob(ctx context.Context, digest string) (*Blob, error) {
	b := &Blob{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, digest, size, media_type, storage_locator
		FROM blobs WHERE digest = $1
	`, digest).Scan(&b.ID, &b.Digest, &b.Size, &b.MediaType, &b.StorageLocator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return b, nil
}

// UnlinkBlob removes the repository_blobs edge for (repositoryID, digest).
// This is the scope of DELETE /v2/{name}/blobs/{digest} per the blob-delete
// design decision: it never removes the Blob row itself.
func (s *Service) UnlinkBlob(ctx context.Context, repositoryID int64, digest string) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM repository_blobs rb
		USING blobs b
		WHERE rb.blob_id = b.id AND rb.repository_id = $1 AND b.digest = $2
	`, repositoryID, digest)
	if err != nil {
		return classifyErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OrphanedBlob reports whether digest has no remaining repository_blobs
// edge anywhere, meaning the Content Store bytes and Blob row may be
// reclaimed by a GC sweep.
func (s *Service) OrphanedBlob(ctx context.Context, digest string) (bool, error) {
	var orphaned bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT NOT EXISTS (
			SELECT 1 FROM repository_blobs rb
			JOIN blobs b ON b.id = rb.blob_id
			WHERE b.digest = $1
		)
	`, digest).Scan(&orphaned)
	if err != nil {
		return false, classifyErr(err)
	}
	return orphaned, nil
}

// DeleteBlobRecord removes the Blob row outright; callers must have
// confirmed OrphanedBlob first.
func (s *Service) DeleteBlobRecord(ctx context.Context, digest string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM blobs WHERE digest = $1`, digest)
	return classifyErr(err)
}
