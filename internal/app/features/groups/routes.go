// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /groups subrouter.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Get("/{id}", h.ServeGet)
	r.Post("/{id}/join", h.ServeJoin)
	r.Post("/{id}/invite", h.ServeInvite)
	return r
}
