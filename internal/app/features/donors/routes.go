// internal/app/features/donors/routes.go
package donors

import "github.com/go-chi/chi/v5"

// Routes mounts under /donors. Search is public; contact details are added
// for signed-in callers.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/search", h.ServeSearch)
	return r
}
