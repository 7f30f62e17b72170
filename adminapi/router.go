// Package adminapi realizes spec.md's §6 control surface
// (admin.constants.get, admin.messages.query, admin.messages.delete) as
// a small chi router, grounded on the teacher's chimux module minus its
// tenant/service-registry/event-emission machinery: this surface has
// exactly three routes and one backing store, not a pluggable
// multi-tenant HTTP layer.
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacknerd/msghub/logging"
	"github.com/stacknerd/msghub/store"
)

// Router exposes the admin RPC surface over HTTP POST. Construct with
// NewRouter and mount Handler() under whatever base path a host prefers.
type Router struct {
	store  *store.Store
	logger logging.Logger
	mux    chi.Router
}

// NewRouter builds the admin router against the given store.
func NewRouter(s *store.Store, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.Noop{}
	}
	r := &Router{store: s, logger: logger}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Post("/admin/constants", r.handleConstants)
	mux.Post("/admin/messages/query", r.handleQuery)
	mux.Post("/admin/messages/delete", r.handleDelete)
	r.mux = mux

	return r
}

// Handler returns the router as an http.Handler, for mounting into a
// larger server or running standalone via http.ListenAndServe.
func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		r.logger.Error("adminapi: failed encoding response", "error", err)
	}
}

func (r *Router) writeError(w http.ResponseWriter, status int, err error) {
	r.writeJSON(w, status, map[string]string{"error": err.Error()})
}
