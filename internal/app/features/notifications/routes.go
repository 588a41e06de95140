// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /notifications subrouter.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Delete("/", h.ServeClear)
	r.Get("/stream", h.ServeStream)
	r.Post("/read-all", h.ServeReadAll)
	r.Post("/{id}/read", h.ServeRead)
	r.Delete("/{id}", h.ServeDelete)
	return r
}
