package registry

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/regerr"
)

type catalogResponse struct {
	Repositories []string `json:"repositories"`
}

// Catalog implements GET /v2/_catalog, keyset-paginated and capped
// server-side when the client omits n.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	subj := accesscontrol.SubjectFromContext(r.Context())

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

	names, err := h.DB.ListRepositories(r.Context(), lastSeen, limit)
	if err != nil {
		writeError(w, regerr.Transient("failed to list repositories", err))
		return
	}

	var visible []string
	for _, name := range names {
		if h.canRead(r, subj, name) {
			visible = append(visible, name)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(catalogResponse{Repositories: visible})
}

func (h *Handler) canRead(r *http.Request, subj accesscontrol.Subject, repository string) bool {
	checker, ok := h.Access.(*accesscontrol.DefaultChecker)
	if !ok {
		decision, err := h.Access.Check(r.Context(), subj.Name, repository, accesscontrol.ActionRead)
		return err == nil && decision.Allowed
	}
	decision, err := checker.CheckSubject(r.Context(), subj, repository, accesscontrol.ActionRead)
	return err == nil && decision.Allowed
}
