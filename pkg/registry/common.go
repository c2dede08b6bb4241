package registry

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/eventbus"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/refs"
	"github.com/registryx/registryx/pkg/regerr"
)

// authorize runs the subject attached to r's context through the policy
// for (repository, action), writing the 401/403 response itself and
// reporting ok=false if the caller should stop.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, repository string, action accesscontrol.Action) bool {
	subj := accesscontrol.SubjectFromContext(r.Context())
	checker, ok := h.Access.(*accesscontrol.DefaultChecker)
	var decision accesscontrol.Decision
	var err error
	if ok {
		decision, err = checker.CheckSubject(r.Context(), subj, repository, action)
	} else {
		decision, err = h.Access.Check(r.Context(), subj.Name, repository, action)
	}
	if err != nil {
		writeError(w, regerr.Transient("policy evaluation failed", err))
		return false
	}
	if !decision.Allowed {
		if decision.Unauthenticated {
			if decision.Challenge != "" {
				w.Header().Set("Www-Authenticate", decision.Challenge)
			}
			writeError(w, regerr.Unauthorized("authentication required"))
			return false
		}
		writeError(w, regerr.Denied("access denied"))
		return false
	}
	return true
}

// resolveRepository validates the path {name} and looks up its Repository
// row, writing a NAME_UNKNOWN error if it does not exist. It never creates
// the row; write paths use ensureRepository for that.
func (h *Handler) resolveRepository(w http.ResponseWriter, r *http.Request) (*metadataindex.Repository, bool) {
	name := mux.Vars(r)["name"]
	if err := refs.ValidateRepositoryName(name); err != nil {
		writeError(w, regerr.Validation(regerr.CodeNameInvalid, "invalid repository name", name))
		return nil, false
	}
	repo, err := h.DB.GetRepository(r.Context(), name)
	if err == metadataindex.ErrNotFound {
		writeError(w, regerr.NotFound(regerr.CodeNameUnknown, "repository not found"))
		return nil, false
	}
	if err != nil {
		writeError(w, regerr.Transient("failed to resolve repository", err))
		return nil, false
	}
	return repo, true
}

// ensureRepository validates the path {name} and creates the Repository
// row if absent, used by write paths (blob upload start, manifest PUT).
func (h *Handler) ensureRepository(w http.ResponseWriter, r *http.Request) (*metadataindex.Repository, bool) {
	name := mux.Vars(r)["name"]
	if err := refs.ValidateRepositoryName(name); err != nil {
		writeError(w, regerr.Validation(regerr.CodeNameInvalid, "invalid repository name", name))
		return nil, false
	}
	id, err := h.DB.EnsureRepository(r.Context(), name)
	if err != nil {
		writeError(w, regerr.Transient("failed to ensure repository", err))
		return nil, false
	}
	return &metadataindex.Repository{ID: id, Name: name}, true
}

func (h *Handler) emit(r *http.Request, kind, repository, digest, tag string) {
	if h.Events == nil {
		return
	}
	subj := accesscontrol.SubjectFromContext(r.Context())
	h.Events.Emit(r.Context(), eventbus.Event{
		Kind:       kind,
		Repository: repository,
		Digest:     digest,
		Tag:        tag,
		At:         time.Now(),
		Subject:    subj.Name,
	})
}
