package registry

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/eventbus"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/refs"
	"github.com/registryx/registryx/pkg/regerr"
)

// HeadBlob implements HEAD /v2/{name}/blobs/{digest}.
func (h *Handler) HeadBlob(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionRead) {
		return
	}

	digest := mux.Vars(r)["digest"]
	if err := refs.ValidateDigest(digest); err != nil {
		writeError(w, regerr.Validation(regerr.CodeDigestInvalid, "invalid digest", digest))
		return
	}

	linked, err := h.DB.BlobExistsInRepository(r.Context(), repo.ID, digest)
	if err != nil {
		writeError(w, regerr.Transient("failed to check blob", err))
		return
	}
	if !linked {
		writeError(w, regerr.NotFound(regerr.CodeBlobUnknown, "blob not found"))
		return
	}

	size, err := h.Store.BlobSize(r.Context(), digest)
	if err != nil {
		writeError(w, regerr.Transient("failed to stat blob", err))
		return
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
}

// GetBlob implements GET /v2/{name}/blobs/{digest}, supporting a Range
// header for 206 partial content.
func (h *Handler) GetBlob(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionRead) {
		return
	}

	digest := mux.Vars(r)["digest"]
	if err := refs.ValidateDigest(digest); err != nil {
		writeError(w, regerr.Validation(regerr.CodeDigestInvalid, "invalid digest", digest))
		return
	}

	linked, err := h.DB.BlobExistsInRepository(r.Context(), repo.ID, digest)
	if err != nil {
		writeError(w, regerr.Transient("failed to check blob", err))
		return
	}
	if !linked {
		writeError(w, regerr.NotFound(regerr.CodeBlobUnknown, "blob not found"))
		return
	}

	size, err := h.Store.BlobSize(r.Context(), digest)
	if err != nil {
		writeError(w, regerr.Transient("failed to stat blob", err))
		return
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Accept-Ranges", "bytes")

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		br, ok := parseRange(rangeHeader, size)
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeError(w, regerr.RangeNotSatisfiable(regerr.CodeRangeInvalid, "invalid range", rangeHeader))
			return
		}
		rc, err := h.Store.GetBlobRange(r.Context(), digest, br.start, br.end)
		if err != nil {
			writeError(w, regerr.Transient("failed to read blob range", err))
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Range", contentRangeHeader(br, size))
		w.Header().Set("Content-Length", strconv.FormatInt(br.end-br.start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		io.Copy(w, rc)
		return
	}

	rc, _, err := h.Store.GetBlob(r.Context(), digest)
	if err != nil {
		writeError(w, regerr.Transient("failed to read blob", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// DeleteBlob implements DELETE /v2/{name}/blobs/{digest}: unlinks the
// RepositoryBlob edge only, per the blob-delete design decision.
func (h *Handler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionDelete) {
		return
	}

	digest := mux.Vars(r)["digest"]
	if err := refs.ValidateDigest(digest); err != nil {
		writeError(w, regerr.Validation(regerr.CodeDigestInvalid, "invalid digest", digest))
		return
	}

	if err := h.DB.UnlinkBlob(r.Context(), repo.ID, digest); err != nil {
		if err == metadataindex.ErrNotFound {
			writeError(w, regerr.NotFound(regerr.CodeBlobUnknown, "blob not found"))
			return
		}
		writeError(w, regerr.Transient("failed to unlink blob", err))
		return
	}

	orphaned, err := h.DB.OrphanedBlob(r.Context(), digest)
	if err == nil && orphaned {
		_ = h.Store.DeleteBlob(r.Context(), digest)
		_ = h.DB.DeleteBlobRecord(r.Context(), digest)
	}

	h.emit(r, eventbus.KindBlobDelete, repo.Name, digest, "")
	w.WriteHeader(http.StatusAccepted)
}

// StartBlobUpload implements POST /v2/{name}/blobs/uploads/.
func (h *Handler) StartBlobUpload(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ensureRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionWrite) {
		return
	}

	expectedSize := int64(-1)
	if cl := r.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > 0 {
			expectedSize = n
		}
	}

	sess, err := h.Upload.Create(r.Context(), repo.ID, expectedSize)
	if err != nil {
		writeError(w, err)
		return
	}

	location := fmt.Sprintf("/v2/%s/blobs/uploads/%s", repo.Name, sess.ID)
	w.Header().Set("Docker-Upload-UUID", sess.ID)
	w.Header().Set("Location", location)
	w.Header().Set("Range", "0-0")
	w.WriteHeader(http.StatusAccepted)
}

// PatchBlobUpload implements PATCH /v2/{name}/blobs/uploads/{uuid}.
func (h *Handler) PatchBlobUpload(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ensureRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionWrite) {
		return
	}

	uploadID := mux.Vars(r)["uuid"]
	offset := int64(0)
	if cr := r.Header.Get("Content-Range"); cr != "" {
		var start, end int64
		if _, err := fmt.Sscanf(cr, "%d-%d", &start, &end); err == nil {
			offset = start
		}
	} else {
		sess, err := h.Upload.Status(r.Context(), uploadID)
		if err != nil {
			writeError(w, err)
			return
		}
		offset = sess.UploadedSize
	}

	newOffset, err := h.Upload.Append(r.Context(), uploadID, offset, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	location := fmt.Sprintf("/v2/%s/blobs/uploads/%s", repo.Name, uploadID)
	w.Header().Set("Docker-Upload-UUID", uploadID)
	w.Header().Set("Location", location)
	w.Header().Set("Range", fmt.Sprintf("0-%d", newOffset-1))
	w.WriteHeader(http.StatusAccepted)
}

// GetBlobUploadStatus implements GET /v2/{name}/blobs/uploads/{uuid}.
func (h *Handler) GetBlobUploadStatus(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ensureRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionWrite) {
		return
	}

	uploadID := mux.Vars(r)["uuid"]
	sess, err := h.Upload.Status(r.Context(), uploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	location := fmt.Sprintf("/v2/%s/blobs/uploads/%s", repo.Name, uploadID)
	w.Header().Set("Docker-Upload-UUID", uploadID)
	w.Header().Set("Location", location)
	w.Header().Set("Range", fmt.Sprintf("0-%d", sess.UploadedSize-1))
	w.WriteHeader(http.StatusNoContent)
}

// PutBlobUpload implements PUT /v2/{name}/blobs/uploads/{uuid}?digest=...,
// completing the upload.
func (h *Handler) PutBlobUpload(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ensureRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionWrite) {
		return
	}

	uploadID := mux.Vars(r)["uuid"]
	digest := r.URL.Query().Get("digest")
	if err := refs.ValidateDigest(digest); err != nil {
		writeError(w, regerr.Validation(regerr.CodeDigestInvalid, "invalid digest", digest))
		return
	}

	if r.ContentLength > 0 {
		sess, serr := h.Upload.Status(r.Context(), uploadID)
		if serr != nil {
			writeError(w, serr)
			return
		}
		if _, err := h.Upload.Append(r.Context(), uploadID, sess.UploadedSize, r.Body); err != nil {
			writeError(w, err)
			return
		}
	}

	size, err := h.Upload.Finalize(r.Context(), uploadID, digest)
	if err != nil {
		writeError(w, err)
		return
	}

	mediaType := r.Header.Get("Content-Type")
	if err := h.DB.RegisterBlob(r.Context(), repo.ID, digest, size, mediaType, digest); err != nil {
		writeError(w, regerr.Transient("failed to register blob", err))
		return
	}

	h.emit(r, eventbus.KindBlobPut, repo.Name, digest, "")

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/%s", repo.Name, digest))
	w.WriteHeader(http.StatusCreated)
}

// CancelBlobUpload implements DELETE /v2/{name}/blobs/uploads/{uuid}.
func (h *Handler) CancelBlobUpload(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ensureRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionWrite) {
		return
	}

	uploadID := mux.Vars(r)["uuid"]
	if err := h.Upload.Cancel(r.Context(), uploadID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
