// internal/app/features/login/routes.go
package login

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.With(h.SessionMgr.RequireSignedIn).Get("/me", h.ServeMe)
	r.Get("/csrf", h.ServeCSRF)
	return r
}
