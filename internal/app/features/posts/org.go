package posts

import (
	"context"
	"errors"
	"net/http"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.uber.org/zap"
)

// ServeFeed returns every post in the organization with its group, newest
// first.
// GET /org/{slug}/posts
func (h *Handler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	posts, err := h.Posts.ListByOrg(ctx, sc.Org.ID)
	if err != nil {
		h.ErrLog.Fail(w, r, "list organization posts failed", err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandleCreateCurrent posts into the current group.
// POST /org/{slug}/posts
func (h *Handler) HandleCreateCurrent(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, ok := h.currentGroup(w, r, sc)
	if !ok {
		return
	}
	h.create(w, r, sc, g)
}

// HandleDeleteCurrent deletes a post of the current group.
// DELETE /org/{slug}/posts/{postID}
func (h *Handler) HandleDeleteCurrent(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, ok := h.currentGroup(w, r, sc)
	if !ok {
		return
	}
	h.remove(w, r, sc, g)
}

// currentGroup loads the stored group named by the current-group cookie.
// With no usable selection it sends the user to the organization home to
// pick one and returns false.
func (h *Handler) currentGroup(w http.ResponseWriter, r *http.Request, sc *authz.Scope) (models.Group, bool) {
	sel, err := h.Current.Current(r)
	if err != nil {
		h.selectGroup(w, r, sc, err)
		return models.Group{}, false
	}
	if sel.OrganizationID != sc.Org.ID {
		h.Current.Clear(w)
		h.selectGroup(w, r, sc, currentgroup.ErrNoGroupSelected)
		return models.Group{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, sel.ID)
	if errors.Is(err, groupstore.ErrNotFound) {
		h.Current.Clear(w)
		h.selectGroup(w, r, sc, currentgroup.ErrNoGroupSelected)
		return models.Group{}, false
	}
	if err != nil {
		h.ErrLog.Fail(w, r, "load current group failed", err)
		return models.Group{}, false
	}
	return g, true
}

// selectGroup redirects to the organization home with a toast.
func (h *Handler) selectGroup(w http.ResponseWriter, r *http.Request, sc *authz.Scope, err error) {
	h.Log.Debug("no current group", zap.String("path", r.URL.Path), zap.Error(err))
	if h.Flash != nil {
		h.Flash.Error(w, r, apperr.Message(err))
	}
	target := "/org/" + sc.Session.OrgSlug
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
