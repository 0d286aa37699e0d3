// internal/app/features/exports/routes.go
package exports

import (
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeIndex)
	r.Get("/{dataset}.csv", h.ServeExport)
	return r
}
