package registry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/config"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/upload"
)

// fakeStore is a minimal in-memory ContentStore fake for exercising the
// HTTP surface without a live MinIO.
type fakeStore struct {
	scratch map[string][]byte
	blobs   map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{scratch: map[string][]byte{}, blobs: map[string][]byte{}}
}

func (f *fakeStore) PutBlob(ctx context.Context, digest string, r io.Reader, size int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.blobs[digest] = b
	return nil
}

func (f *fakeStore) GetBlob(ctx context.Context, digest string) (io.ReadCloser, int64, error) {
	b, ok := f.blobs[digest]
	if !ok {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

func (f *fakeStore) GetBlobRange(ctx context.Context, digest string, start, end int64) (io.ReadCloser, error) {
	b := f.blobs[digest]
	return io.NopCloser(bytes.NewReader(b[start : end+1])), nil
}

func (f *fakeStore) BlobExists(ctx context.Context, digest string) (bool, error) {
	_, ok := f.blobs[digest]
	return ok, nil
}

func (f *fakeStore) BlobSize(ctx context.Context, digest string) (int64, error) {
	b, ok := f.blobs[digest]
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	return int64(len(b)), nil
}

func (f *fakeStore) DeleteBlob(ctx context.Context, digest string) error {
	delete(f.blobs, digest)
	return nil
}

func (f *fakeStore) OpenScratch(ctx context.Context, uploadID string) error {
	f.scratch[uploadID] = nil
	return nil
}

func (f *fakeStore) AppendScratch(ctx context.Context, uploadID string, offset int64, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.scratch[uploadID] = append(f.scratch[uploadID], b...)
	return int64(len(f.scratch[uploadID])), nil
}

func (f *fakeStore) ScratchSize(ctx context.Context, uploadID string) (int64, error) {
	return int64(len(f.scratch[uploadID])), nil
}

func (f *fakeStore) PromoteScratch(ctx context.Context, uploadID, expectedDigest string) (int64, error) {
	b := f.scratch[uploadID]
	f.blobs[expectedDigest] = b
	delete(f.scratch, uploadID)
	return int64(len(b)), nil
}

func (f *fakeStore) DeleteScratch(ctx context.Context, uploadID string) error {
	delete(f.scratch, uploadID)
	return nil
}

// allowAllChecker implements accesscontrol.Checker, granting every
// request, to isolate HTTP-surface behavior from policy evaluation.
type allowAllChecker struct{}

func (allowAllChecker) Check(ctx context.Context, subject, repository string, action accesscontrol.Action) (accesscontrol.Decision, error) {
	return accesscontrol.Decision{Allowed: true}, nil
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, *fakeStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		MaxManifestSize:           4 * 1024 * 1024,
		MaxUploadSessionAge:       time.Hour,
		UploadExpirySweepInterval: time.Minute,
		CatalogPageDefault:        100,
		CatalogPageMax:            1000,
	}
	store := newFakeStore()
	mdi := metadataindex.NewService(db)
	mgr := upload.NewManager(mdi, store, nil, cfg)

	h := NewHandler(cfg, store, mdi, mgr, allowAllChecker{}, nil)
	return h, mock, store
}

func TestBaseCheck(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "registry/2.0", rec.Header().Get("Docker-Distribution-Api-Version"))
	require.Equal(t, "{}", rec.Body.String())
}

func TestBlobPushPullRoundTrip(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	router := NewRouter(h)
	body := []byte("hello\n")
	digest := "sha256:5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"

	mock.ExpectQuery(`INSERT INTO repositories`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO upload_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
	startReq := httptest.NewRequest(http.MethodPost, "/v2/library/ubuntu/blobs/uploads/", nil)
	startRec := httptest.NewRecorder()
	router.ServeHTTP(startRec, startReq)
	require.Equal(t, http.StatusAccepted, startRec.Code)
	uploadID := startRec.Header().Get("Docker-Upload-UUID")
	require.NotEmpty(t, uploadID)

	sessionRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "repository_id", "uploaded_size", "expected_size", "scratch_locator", "expires_at"}).
			AddRow(uploadID, int64(1), int64(0), int64(-1), uploadID, time.Now().Add(time.Hour))
	}

	mock.ExpectQuery(`INSERT INTO repositories`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	// h.Upload.Status, called by PutBlobUpload before appending the trailing body.
	mock.ExpectQuery(`SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at`).WillReturnRows(sessionRows())
	// Upload.Append re-reads the session under lock, then persists progress.
	mock.ExpectQuery(`SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at`).WillReturnRows(sessionRows())
	mock.ExpectExec(`UPDATE upload_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
	// Upload.Finalize re-reads the session under lock, then deletes it.
	mock.ExpectQuery(`SELECT id, repository_id, uploaded_size, expected_size, scratch_locator, expires_at`).WillReturnRows(sessionRows())
	mock.ExpectExec(`DELETE FROM upload_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO blobs`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO repository_blobs`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	putReq := httptest.NewRequest(http.MethodPut, "/v2/library/ubuntu/blobs/uploads/"+uploadID+"?digest="+digest, bytes.NewReader(body))
	putReq.ContentLength = int64(len(body))
	putRec := httptest.NewRecorder()
	router.ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusCreated, putRec.Code)
	require.Equal(t, digest, putRec.Header().Get("Docker-Content-Digest"))

	mock.ExpectQuery(`SELECT id, name, namespace, is_public, owner_ref`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "namespace", "is_public", "owner_ref"}).
			AddRow(int64(1), "library/ubuntu", "", true, ""))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	getReq := httptest.NewRequest(http.MethodGet, "/v2/library/ubuntu/blobs/"+digest, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
	require.Equal(t, body, getRec.Body.Bytes())
}
