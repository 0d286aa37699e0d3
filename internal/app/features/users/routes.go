// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /users. Handlers re-check CanAdminister so a blocked
// admin is refused even though the role matches.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole("admin"))
	r.Get("/", h.ServeList)
	r.Post("/{id}/role", h.HandleRole)
	r.Post("/{id}/status", h.HandleStatus)
	return r
}
