// Package registry is the HTTP Protocol Surface: the v2 wire contract over
// the Content Store, Metadata Index and Upload Session Manager, adapted
// from the donor's pkg/registry.Handler into the full status/header
// contract the registry protocol requires.
package registry

import (
	"context"
	"net/http"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/config"
	"github.com/registryx/registryx/pkg/eventbus"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/storage"
	"github.com/registryx/registryx/pkg/upload"
)

// EventSink is the interface the HTTP surface emits to. It never blocks a
// request.
type EventSink interface {
	Emit(ctx context.Context, event eventbus.Event)
}

// Handler wires the five core components behind the v2 HTTP surface,
// matching the donor's Handler-struct-plus-NewHandler-constructor shape.
type Handler struct {
	Cfg    *config.Config
	Store  storage.ContentStore
	DB     *metadataindex.Service
	Upload *upload.Manager
	Access accesscontrol.Checker
	Events EventSink
}

func NewHandler(cfg *config.Config, store storage.ContentStore, db *metadataindex.Service, mgr *upload.Manager, access accesscontrol.Checker, events EventSink) *Handler {
	return &Handler{Cfg: cfg, Store: store, DB: db, Upload: mgr, Access: access, Events: events}
}

// BaseCheck implements GET /v2/.
func (h *Handler) BaseCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("{}"))
}
