// internal/app/features/push/routes.go
package push

import (
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /push subrouter.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/tokens", h.ServeRegister)
	r.Delete("/tokens", h.ServeClear)
	r.Delete("/tokens/{token}", h.ServeRemove)
	return r
}
