package registry

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/regerr"
)

type tagsListResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// ListTags implements GET /v2/{name}/tags/list, keyset-paginated and
// capped server-side when the client omits n, per the pagination design
// decision.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, repo.Name, accesscontrol.ActionRead) {
		return
	}

	limit := h.Cfg.CatalogPageDefault
	if n := r.URL.Query().Get("n"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > h.Cfg.CatalogPageMax {
		limit = h.Cfg.CatalogPageMax
	}
	lastSeen := r.URL.Query().Get("last")

	tags, err := h.DB.GetTags(r.Context(), repo.ID, lastSeen, limit)
	if err != nil {
		writeError(w, regerr.Transient("failed to list tags", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(tagsListResponse{Name: repo.Name, Tags: tags})
}
