// internal/app/features/members/routes.go
package members

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the member routes of one group.
// Typically: g.Mount("/members", members.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleAdd)
	r.Patch("/{userID}", h.HandleUpdateRole)
	r.Delete("/{userID}", h.HandleRemove)
	return r
}
