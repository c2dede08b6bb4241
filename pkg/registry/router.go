package registry

import "github.com/gorilla/mux"

// NewRouter registers the v2 HTTP surface on a fresh gorilla/mux router,
// matching the donor's main.go route table (including the ordering that
// keeps the greedy {name:.+} repository-name matcher from swallowing the
// /blobs/uploads/, /tags/list and /manifests/ suffixes).
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v2/", h.BaseCheck).Methods("GET")
	r.HandleFunc("/v2/_catalog", h.Catalog).Methods("GET")

	r.HandleFunc("/v2/{name:.+}/blobs/uploads/", h.StartBlobUpload).Methods("POST")
	r.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", h.PatchBlobUpload).Methods("PATCH")
	r.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", h.PutBlobUpload).Methods("PUT")
	r.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", h.GetBlobUploadStatus).Methods("GET")
	r.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", h.CancelBlobUpload).Methods("DELETE")

	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.HeadBlob).Methods("HEAD")
	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.GetBlob).Methods("GET")
	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.DeleteBlob).Methods("DELETE")

	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.PutManifest).Methods("PUT")
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.GetManifest).Methods("GET")
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.HeadManifest).Methods("HEAD")
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.DeleteManifest).Methods("DELETE")

	r.HandleFunc("/v2/{name:.+}/tags/list", h.ListTags).Methods("GET")

	return r
}
