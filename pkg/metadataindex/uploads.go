package metadataindex

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type UploadSession struct {
	ID             string
	RepositoryID   int64
	UploadedSize   int64
	ExpectedSize   int64
	ScratchLocator string
	ExpiresAt      time.Time
}

// CreateUploadSession inserts a new session row.
func (s *Service) CreateUploadSession(ctx context.Context, sess *UploadSession) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO upload_sessions (id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.RepositoryID, sess.UploadedSize, sess.ExpectedSize, sess.ScratchLocator, sess.ExpiresAt)
	return classifyErr(err)
}

// GetUploadSession resolves a session by id.
func (s *Service) GetUploadSession(ctx context.Context, id string) (*UploadSession, error) {
	sess := &UploadSession{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at
		FROM upload_sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.RepositoryID, &sess.UploadedSize, &sess.ExpectedSize, &sess.ScratchLocator, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return sess, nil
}

// UpdateUploadSessionProgress persists the new uploaded size after an
// append, extending its expiry.
func (s *Service) UpdateUploadSessionProgress(ctx context.Context, id string, uploadedSize int64, expiresAt time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE upload_sessions
		SET uploaded_size = $2, expires_at = $3, updated_at = now()
		WHERE id = $1
	`, id, uploadedSize, expiresAt)
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

// DeleteUploadSession removes a session row, on cancel or finalize.
func (s *Service) DeleteUploadSession(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = $1`, id)
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

// ListExpiredUploadSessions returns sessions whose expiry has passed, used
// by the expire-sweep goroutine.
func (s *Service) ListExpiredUploadSessions(ctx context.Context, now time.Time) ([]*UploadSession, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at
		FROM upload_sessions WHERE expires_at < $1
	`, now)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []*UploadSession
	for rows.Next() {
		sess := &UploadSession{}
		if err := rows.Scan(&sess.ID, &sess.RepositoryID, &sess.UploadedSize, &sess.ExpectedSize, &sess.ScratchLocator, &sess.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
