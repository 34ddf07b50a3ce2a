package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
)

// ServeList returns the group's members with their user profiles.
// GET /org/{slug}/groups/{groupSlug}/members
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.scope(w, r); !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Memberships.ListByGroup(ctx, g.ID)
	if err != nil {
		h.ErrLog.Fail(w, r, "list members failed", err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"members": list})
}
