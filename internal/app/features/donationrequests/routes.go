// internal/app/features/donationrequests/routes.go
package donationrequests

import (
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Public list of open requests.
	r.Get("/", h.ServePublicList)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// LISTS
		pr.Get("/mine", h.ServeMine)
		pr.Get("/all", h.ServeAll)

		// CREATE
		pr.Post("/", h.HandleCreate)

		// VIEW
		pr.Get("/{id}", h.ServeRequest)
		pr.Get("/{id}/transitions", h.ServeTransitions)

		// EDIT / DELETE
		pr.Put("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)

		// STATUS
		pr.Post("/{id}/status", h.HandleStatus)
		pr.Post("/{id}/donate", h.HandleDonate)
	})

	return r
}
