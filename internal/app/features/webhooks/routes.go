// internal/app/features/webhooks/routes.go
package webhooks

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the webhook receivers.
// Typically: api.Mount("/webhooks", webhooks.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/clerk", h.ServeClerk)
	return r
}
