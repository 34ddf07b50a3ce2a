package posts

import (
	"context"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
)

// ServeList returns the group's posts, newest first.
// GET /org/{slug}/groups/{groupSlug}/posts
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.scope(w, r); !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	posts, err := h.Posts.ListByGroup(ctx, g.ID)
	if err != nil {
		h.ErrLog.Fail(w, r, "list posts failed", err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandleCreate posts into the group in the URL.
// POST /org/{slug}/groups/{groupSlug}/posts (member)
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)
	h.create(w, r, sc, g)
}

// HandleDelete deletes a post of the group in the URL.
// DELETE /org/{slug}/groups/{groupSlug}/posts/{postID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)
	h.remove(w, r, sc, g)
}
