// internal/app/features/fundings/routes.go
package fundings

import (
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/public", h.ServePublic)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleCreate)
		pr.Get("/mine", h.ServeMine)
		pr.Get("/", h.ServeAll)
		pr.Get("/stats", h.ServeStats)
		pr.Post("/{id}/status", h.HandleStatus)
	})
	return r
}
