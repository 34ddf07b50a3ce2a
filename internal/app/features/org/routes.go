// internal/app/features/org/routes.go
package org

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the organization pages under /org/{slug}.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeHome)
	r.Get("/members", h.ServeMembers)
	r.Delete("/current-group", h.HandleClearCurrentGroup)
	return r
}
