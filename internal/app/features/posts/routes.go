// internal/app/features/posts/routes.go
package posts

import (
	"github.com/go-chi/chi/v5"
)

// Routes serves the posts of one group.
// Typically: g.Mount("/posts", posts.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Delete("/{postID}", h.HandleDelete)
	return r
}

// OrgRoutes serves the organization feed and posting through the current
// group.
// Typically: or.Mount("/posts", posts.OrgRoutes(handler))
func OrgRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeFeed)
	r.Post("/", h.HandleCreateCurrent)
	r.Delete("/{postID}", h.HandleDeleteCurrent)
	return r
}
