package groups

import (
	"github.com/go-chi/chi/v5"
)

// Routes serves a single group; the parent router resolves {groupSlug}
// into the request context first.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeGroup)
	r.Delete("/", h.HandleDelete)
	r.Post("/settings", h.HandleUpdate)
	r.Post("/leave", h.HandleLeave)
	return r
}
