package registry

import (
	"bytes"
	"encoding/json"
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

// manifestDescriptor is the subset of an OCI/Docker manifest JSON this
// surface needs to check referential integrity: the config blob and every
// layer blob must already be linked to the repository.
type manifestDescriptor struct {
	MediaType string `json:"mediaType"`
	Config    struct {
		Digest string `json:"digest"`
	} `json:"config"`
	Layers []struct {
		Digest string `json:"digest"`
	} `json:"layers"`
}

var recognizedManifestMediaTypes = map[string]bool{
	"application/vnd.docker.distribution.manifest.v1+json":      true,
	"application/vnd.docker.distribution.manifest.v2+json":      true,
	"application/vnd.docker.distribution.manifest.list.v2+json": true,
	"application/vnd.oci.image.manifest.v1+json":                true,
	"application/vnd.oci.image.index.v1+json":                   true,
}

// PutManifest implements PUT /v2/{name}/manifests/{reference}.
func (h *Handler) PutManifest(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.ensureRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionWrite) {
		return
	}

	reference := mux.Vars(r)["reference"]
	if !refs.IsDigestReference(reference) {
		if err := refs.ValidateTagName(reference); err != nil {
			writeError(w, regerr.Validation(regerr.CodeTagInvalid, "invalid tag", reference))
			return
		}
	}

	limited := http.MaxBytesReader(w, r.Body, h.Cfg.MaxManifestSize)
	content, err := io.ReadAll(limited)
	if err != nil {
		writeError(w, regerr.Validation(regerr.CodeSizeInvalid, "manifest exceeds maximum size", h.Cfg.MaxManifestSize))
		return
	}

	mediaType := r.Header.Get("Content-Type")
	if mediaType == "" || !recognizedManifestMediaTypes[mediaType] {
		var sniff struct {
			MediaType string `json:"mediaType"`
		}
		if json.Unmarshal(content, &sniff) == nil && sniff.MediaType != "" {
			mediaType = sniff.MediaType
		}
	}
	if mediaType == "" {
		writeError(w, regerr.Validation(regerr.CodeManifestInvalid, "manifest missing mediaType", nil))
		return
	}

	var desc manifestDescriptor
	if err := json.Unmarshal(content, &desc); err != nil {
		writeError(w, regerr.Validation(regerr.CodeManifestInvalid, "manifest is not valid JSON", err.Error()))
		return
	}

	if desc.Config.Digest != "" {
		linked, err := h.DB.BlobExistsInRepository(r.Context(), repo.ID, desc.Config.Digest)
		if err != nil {
			writeError(w, regerr.Transient("failed to check config blob", err))
			return
		}
		if !linked {
			writeError(w, regerr.Integrity(regerr.CodeManifestBlobUnknown, "manifest references unknown config blob", desc.Config.Digest))
			return
		}
	}
	for _, layer := range desc.Layers {
		linked, err := h.DB.BlobExistsInRepository(r.Context(), repo.ID, layer.Digest)
		if err != nil {
			writeError(w, regerr.Transient("failed to check layer blob", err))
			return
		}
		if !linked {
			writeError(w, regerr.Integrity(regerr.CodeManifestBlobUnknown, "manifest references unknown layer blob", layer.Digest))
			return
		}
	}

	digest := refs.SHA256Hex(content)

	manifestID, err := h.DB.RegisterManifest(r.Context(), repo.ID, digest, mediaType, content, reference)
	if err != nil {
		writeError(w, regerr.Transient("failed to register manifest", err))
		return
	}
	_ = manifestID

	h.emit(r, eventbus.KindManifestPut, repo.Name, digest, reference)
	if !refs.IsDigestReference(reference) {
		h.emit(r, eventbus.KindTagSet, repo.Name, digest, reference)
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Location", "/v2/"+repo.Name+"/manifests/"+digest)
	w.WriteHeader(http.StatusCreated)
}

// GetManifest implements GET /v2/{name}/manifests/{reference}.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	h.fetchManifest(w, r, true)
}

// HeadManifest implements HEAD /v2/{name}/manifests/{reference}.
func (h *Handler) HeadManifest(w http.ResponseWriter, r *http.Request) {
	h.fetchManifest(w, r, false)
}

func (h *Handler) fetchManifest(w http.ResponseWriter, r *http.Request, withBody bool) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionRead) {
		return
	}

	reference := mux.Vars(r)["reference"]
	m, err := h.DB.GetManifestByReference(r.Context(), repo.ID, reference)
	if err == metadataindex.ErrNotFound {
		writeError(w, regerr.NotFound(regerr.CodeManifestUnknown, "manifest not found"))
		return
	}
	if err != nil {
		writeError(w, regerr.Transient("failed to resolve manifest", err))
		return
	}

	w.Header().Set("Docker-Content-Digest", m.Digest)
	w.Header().Set("Content-Type", m.MediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(m.Size, 10))
	w.WriteHeader(http.StatusOK)
	if withBody {
		io.Copy(w, bytes.NewReader(m.Content))
	}
}

// DeleteManifest implements DELETE /v2/{name}/manifests/{reference}.
func (h *Handler) DeleteManifest(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionDelete) {
		return
	}

	reference := mux.Vars(r)["reference"]

	if !refs.IsDigestReference(reference) {
		if err := h.DB.DeleteTag(r.Context(), repo.ID, reference); err != nil {
			if err == metadataindex.ErrNotFound {
				writeError(w, regerr.NotFound(regerr.CodeManifestUnknown, "tag not found"))
				return
			}
			writeError(w, regerr.Transient("failed to delete tag", err))
			return
		}
		h.emit(r, eventbus.KindManifestDelete, repo.Name, "", reference)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if err := h.DB.DeleteManifest(r.Context(), repo.ID, reference); err != nil {
		if err == metadataindex.ErrNotFound {
			writeError(w, regerr.NotFound(regerr.CodeManifestUnknown, "manifest not found"))
			return
		}
		writeError(w, regerr.Transient("failed to delete manifest", err))
		return
	}

	h.emit(r, eventbus.KindManifestDelete, repo.Name, reference, "")
	w.WriteHeader(http.StatusAccepted)
}
