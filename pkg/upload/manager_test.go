package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/registryx/registryx/pkg/config"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/storage"
)

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// memStore is an in-memory fake ContentStore used to exercise the Upload
// Session Manager's state machine without a live MinIO.
type memStore struct {
	scratch map[string][]byte
	blobs   map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{scratch: map[string][]byte{}, blobs: map[string][]byte{}}
}

func (m *memStore) PutBlob(ctx context.Context, digest string, r io.Reader, size int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.blobs[digest] = b
	return nil
}

func (m *memStore) GetBlob(ctx context.Context, digest string) (io.ReadCloser, int64, error) {
	b, ok := m.blobs[digest]
	if !ok {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

func (m *memStore) GetBlobRange(ctx context.Context, digest string, start, end int64) (io.ReadCloser, error) {
	b := m.blobs[digest]
	return io.NopCloser(bytes.NewReader(b[start : end+1])), nil
}

func (m *memStore) BlobExists(ctx context.Context, digest string) (bool, error) {
	_, ok := m.blobs[digest]
	return ok, nil
}

func (m *memStore) BlobSize(ctx context.Context, digest string) (int64, error) {
	return int64(len(m.blobs[digest])), nil
}

func (m *memStore) DeleteBlob(ctx context.Context, digest string) error {
	delete(m.blobs, digest)
	return nil
}

func (m *memStore) OpenScratch(ctx context.Context, uploadID string) error {
	m.scratch[uploadID] = nil
	return nil
}

func (m *memStore) AppendScratch(ctx context.Context, uploadID string, offset int64, r io.Reader) (int64, error) {
	cur := m.scratch[uploadID]
	if offset != int64(len(cur)) {
		return int64(len(cur)), &storage.ErrOffsetMismatch{Expected: int64(len(cur)), Got: offset}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.scratch[uploadID] = append(cur, b...)
	return int64(len(m.scratch[uploadID])), nil
}

func (m *memStore) ScratchSize(ctx context.Context, uploadID string) (int64, error) {
	return int64(len(m.scratch[uploadID])), nil
}

func (m *memStore) PromoteScratch(ctx context.Context, uploadID, expectedDigest string) (int64, error) {
	b := m.scratch[uploadID]
	got := "sha256:" + sha256hex(b)
	if got != expectedDigest {
		return 0, &storage.ErrDigestMismatch{Expected: expectedDigest, Got: got}
	}
	m.blobs[expectedDigest] = b
	delete(m.scratch, uploadID)
	return int64(len(b)), nil
}

func (m *memStore) DeleteScratch(ctx context.Context, uploadID string) error {
	delete(m.scratch, uploadID)
	return nil
}

func testManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{MaxUploadSessionAge: time.Hour, UploadExpirySweepInterval: time.Minute}
	mgr := &Manager{
		DB:    metadataindex.NewService(db),
		Store: newMemStore(),
		Redis: nil,
		Cfg:   cfg,
		locks: newLockSet(),
	}
	return mgr, mock
}

func TestCreateAndAppendAndFinalize(t *testing.T) {
	mgr, mock := testManager(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO upload_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
	sess, err := mgr.Create(ctx, 1, -1)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	mock.ExpectQuery(`SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "repository_id", "uploaded_size", "expected_size", "scratch_locator", "expires_at"}).
			AddRow(sess.ID, int64(1), int64(0), int64(-1), sess.ID, time.Now().Add(time.Hour)))
	mock.ExpectExec(`UPDATE upload_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))

	newOffset, err := mgr.Append(ctx, sess.ID, 0, bytes.NewReader([]byte("hello\n")))
	require.NoError(t, err)
	require.EqualValues(t, 6, newOffset)

	mock.ExpectQuery(`SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "repository_id", "uploaded_size", "expected_size", "scratch_locator", "expires_at"}).
			AddRow(sess.ID, int64(1), int64(6), int64(-1), sess.ID, time.Now().Add(time.Hour)))
	mock.ExpectExec(`DELETE FROM upload_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))

	size, err := mgr.Finalize(ctx, sess.ID, "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03")
	require.NoError(t, err)
	require.EqualValues(t, 6, size)
}

func TestAppendOffsetMismatch(t *testing.T) {
	mgr, mock := testManager(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "repository_id", "uploaded_size", "expected_size", "scratch_locator", "expires_at"}).
			AddRow("abc", int64(1), int64(5), int64(-1), "abc", time.Now().Add(time.Hour)))

	_, err := mgr.Append(ctx, "abc", 0, bytes.NewReader([]byte("x")))
	require.Error(t, err)
}
