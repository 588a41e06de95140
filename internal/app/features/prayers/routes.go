// internal/app/features/prayers/routes.go
package prayers

import (
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /prayers subrouter. Every route requires a session.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Get("/shared", h.ServeShared)
	r.Get("/shared/stream", h.ServeSharedStream)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.ServeGet)
		r.Delete("/", h.ServeDelete)
		r.Put("/sharing", h.ServeSharing)
		r.Post("/answered", h.ServeAnswered)
		r.Post("/archive", h.ServeArchive)
		r.Post("/pray", h.ServePray)

		r.Get("/updates", h.ServeListUpdates)
		r.Post("/updates", h.ServeAddUpdate)
		r.Put("/updates/{updateID}", h.ServeEditUpdate)
		r.Delete("/updates/{updateID}", h.ServeDeleteUpdate)
	})
	return r
}
