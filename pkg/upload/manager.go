package upload

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/registryx/registryx/pkg/config"
	"github.com/registryx/registryx/pkg/logging"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/regerr"
	"github.com/registryx/registryx/pkg/storage"
)

// Manager implements the Upload Session Manager's state machine:
// create, append, status, finalize, cancel and the background expire
// sweep, over the Metadata Index (session record) and Content Store
// (scratch bytes).
type Manager struct {
	DB    *metadataindex.Service
	Store storage.ContentStore
	Redis *redis.Client
	Cfg   *config.Config
	locks *lockSet
}

func NewManager(db *metadataindex.Service, store storage.ContentStore, rdb *redis.Client, cfg *config.Config) *Manager {
	return &Manager{DB: db, Store: store, Redis: rdb, Cfg: cfg, locks: newLockSet()}
}

func (m *Manager) withLock(ctx context.Context, uploadID string, fn func() error) error {
	mu := m.locks.get(uploadID)
	mu.Lock()
	defer mu.Unlock()

	release, err := acquireLease(ctx, m.Redis, uploadID)
	if err != nil {
		return regerr.Transient("could not acquire upload lease", err)
	}
	defer release()

	return fn()
}

// Create starts a new upload session for repositoryID. expectedSize is -1
// when the client didn't declare a Content-Length.
func (m *Manager) Create(ctx context.Context, repositoryID int64, expectedSize int64) (*metadataindex.UploadSession, error) {
	id := uuid.NewString()
	if err := m.Store.OpenScratch(ctx, id); err != nil {
		return nil, regerr.Transient("failed to open scratch space", err)
	}

	sess := &metadataindex.UploadSession{
		ID:             id,
		RepositoryID:   repositoryID,
		UploadedSize:   0,
		ExpectedSize:   expectedSize,
		ScratchLocator: id,
		ExpiresAt:      time.Now().Add(m.Cfg.MaxUploadSessionAge),
	}
	if err := m.DB.CreateUploadSession(ctx, sess); err != nil {
		return nil, regerr.Transient("failed to persist upload session", err)
	}
	logging.WithFields(map[string]any{"upload_id": id, "repository_id": repositoryID}).Debug("upload session created")
	return sess, nil
}

// Status returns the current session, or a NotFound RegistryError once the
// session has expired, been canceled, or already been finalized.
func (m *Manager) Status(ctx context.Context, uploadID string) (*metadataindex.UploadSession, error) {
	sess, err := m.DB.GetUploadSession(ctx, uploadID)
	if err == metadataindex.ErrNotFound {
		return nil, regerr.NotFound(regerr.CodeBlobUploadUnknown, "upload session not found")
	}
	if err != nil {
		return nil, regerr.Transient("failed to read upload session", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, regerr.NotFound(regerr.CodeBlobUploadUnknown, "upload session expired")
	}
	return sess, nil
}

// Append writes r's bytes to the scratch space at offset, rejecting a
// mismatched offset and any write that would exceed a declared
// expectedSize.
func (m *Manager) Append(ctx context.Context, uploadID string, offset int64, r io.Reader) (int64, error) {
	var newOffset int64
	err := m.withLock(ctx, uploadID, func() error {
		sess, serr := m.DB.GetUploadSession(ctx, uploadID)
		if serr == metadataindex.ErrNotFound {
			return regerr.NotFound(regerr.CodeBlobUploadUnknown, "upload session not found")
		}
		if serr != nil {
			return regerr.Transient("failed to read upload session", serr)
		}

		if offset != sess.UploadedSize {
			return regerr.RangeNotSatisfiable(regerr.CodeRangeInvalid, "offset does not match current upload size", map[string]int64{
				"expected": sess.UploadedSize,
				"got":      offset,
			})
		}

		limited := r
		if sess.ExpectedSize >= 0 {
			remaining := sess.ExpectedSize - sess.UploadedSize
			limited = io.LimitReader(r, remaining+1)
		}

		n, aerr := m.Store.AppendScratch(ctx, uploadID, offset, limited)
		if aerr != nil {
			if om, ok := aerr.(*storage.ErrOffsetMismatch); ok {
				return regerr.RangeNotSatisfiable(regerr.CodeRangeInvalid, "offset does not match current upload size", map[string]int64{
					"expected": om.Expected,
					"got":      om.Got,
				})
			}
			return regerr.Transient("failed to append scratch bytes", aerr)
		}

		if sess.ExpectedSize >= 0 && n > sess.ExpectedSize {
			return regerr.Validation(regerr.CodeSizeInvalid, "upload exceeds declared size", sess.ExpectedSize)
		}

		if uerr := m.DB.UpdateUploadSessionProgress(ctx, uploadID, n, time.Now().Add(m.Cfg.MaxUploadSessionAge)); uerr != nil {
			return regerr.Transient("failed to persist upload progress", uerr)
		}

		newOffset = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newOffset, nil
}

// Finalize promotes the scratch bytes to a committed blob keyed by
// expectedDigest and deletes the session row. A digest mismatch leaves the
// session open for a retry.
func (m *Manager) Finalize(ctx context.Context, uploadID, expectedDigest string) (int64, error) {
	var size int64
	err := m.withLock(ctx, uploadID, func() error {
		sess, serr := m.DB.GetUploadSession(ctx, uploadID)
		if serr == metadataindex.ErrNotFound {
			return regerr.NotFound(regerr.CodeBlobUploadUnknown, "upload session not found")
		}
		if serr != nil {
			return regerr.Transient("failed to read upload session", serr)
		}

		n, perr := m.Store.PromoteScratch(ctx, uploadID, expectedDigest)
		if perr != nil {
			if _, ok := perr.(*storage.ErrDigestMismatch); ok {
				return regerr.Validation(regerr.CodeDigestInvalid, "uploaded content does not match digest", perr.Error())
			}
			return regerr.Transient("failed to promote scratch bytes", perr)
		}

		if derr := m.DB.DeleteUploadSession(ctx, uploadID); derr != nil && derr != metadataindex.ErrNotFound {
			return regerr.Transient("failed to delete upload session", derr)
		}

		size = n
		_ = sess
		return nil
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

// Cancel discards the session and its scratch bytes.
func (m *Manager) Cancel(ctx context.Context, uploadID string) error {
	return m.withLock(ctx, uploadID, func() error {
		if err := m.Store.DeleteScratch(ctx, uploadID); err != nil {
			return regerr.Transient("failed to delete scratch bytes", err)
		}
		if err := m.DB.DeleteUploadSession(ctx, uploadID); err != nil && err != metadataindex.ErrNotFound {
			return regerr.Transient("failed to delete upload session", err)
		}
		return nil
	})
}
