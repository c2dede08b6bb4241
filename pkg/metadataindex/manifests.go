package metadataindex

import (
	"context"
	"database/sql"
	"errors"

	"github.com/registryx/registryx/pkg/refs"
)

type Manifest struct {
	ID           int64
	RepositoryID int64
	Digest       string
	MediaType    string
	Content      []byte
	Size         int64
}

// RegisterManifest upserts the manifest row and, if reference is a tag
// (not a digest), points that tag at it. Matches the donor's
// RegisterManifest's combined manifest-then-tag upsert, generalized onto
// the spec's manifests/tags schema.
func (s *Service) RegisterManifest(ctx context.Context, repositoryID int64, digest, mediaType string, content []byte, reference string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyErr(err)
	}
	defer tx.Rollback()

	var manifestID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO manifests (repository_id, digest, media_type, content, size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (repository_id, digest) DO UPDATE SET media_type = EXCLUDED.media_type
		RETURNING id
	`, repositoryID, digest, mediaType, content, len(content)).Scan(&manifestID)
	if err != nil {
		return 0, classifyErr(err)
	}

	if !refs.IsDigestReference(reference) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tags (repository_id, name, manifest_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (repository_id, name) DO UPDATE SET manifest_id = EXCLUDED.manifest_id, updated_at = now()
		`, repositoryID, reference, manifestID)
		if err != nil {
			return 0, classifyErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classifyErr(err)
	}
	return manifestID, nil
}

// GetManifestByDigest resolves a manifest within a repository by digest.
func (s *Service) GetManifestByDigest(ctx context.Context, repositoryID int64, digest string) (*Manifest, error) {
	m := &Manifest{RepositoryID: repositoryID}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, digest, media_type, content, size
		FROM manifests WHERE repository_id = $1 AND digest = $2
	`, repositoryID, digest).Scan(&m.ID, &m.Digest, &m.MediaType, &m.Content, &m.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return m, nil
}

// GetManifestByReference resolves a tag-or-digest reference to a manifest.
func (s *Service) GetManifestByReference(ctx context.Context, repositoryID int64, reference string) (*Manifest, error) {
	if refs.IsDigestReference(reference) {
		return s.GetManifestByDigest(ctx, repositoryID, reference)
	}

	m := &Manifest{RepositoryID: repositoryID}
	err := s.DB.QueryRowContext(ctx, `
		SELECT m.id, m.digest, m.media_type, m.content, m.size
		FROM manifests m
		JOIN tags t ON t.manifest_id = m.id
		WHERE t.repository_id = $1 AND t.name = $2
	`, repositoryID, reference).Scan(&m.ID, &m.Digest, &m.MediaType, &m.Content, &m.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return m, nil
}

// DeleteManifest removes a manifest and any tags still pointing at it.
func (s *Service) DeleteManifest(ctx context.Context, repositoryID int64, digest string) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM manifests WHERE repository_id = $1 AND digest = $2
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

// DeleteUntaggedManifests removes manifests in repositoryID with no
// remaining tag, a GC hook rather than an automatic behavior.
func (s *Service) DeleteUntaggedManifests(ctx context.Context, repositoryID int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM manifests m
		WHERE m.repository_id = $1
		AND NOT EXISTS (SELECT 1 FROM tags t WHERE t.manifest_id = m.id)
	`, repositoryID)
	if err != nil {
		return 0, classifyErr(err)
	}
	return res.RowsAffected()
}
