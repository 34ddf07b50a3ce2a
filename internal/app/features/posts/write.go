package posts

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type postInput struct {
	Title   string `form:"title" validate:"required,max=200"`
	Content string `form:"content" validate:"required,max=20000"`
}

// create publishes a post into g. Only members of g may post.
func (h *Handler) create(w http.ResponseWriter, r *http.Request, sc *authz.Scope, g models.Group) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := sc.ValidateGroupMembership(ctx, g.ID); err != nil {
		h.deny(w, r, sc, g.ID, "create post denied", err)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}
	in := postInput{
		Title:   normalize.Name(r.FormValue("title")),
		Content: htmlsanitize.Sanitize(r.FormValue("content")),
	}
	if err := inputval.Validate(in); err != nil {
		h.ErrLog.Fail(w, r, "create post rejected", err)
		return
	}

	p, err := h.Posts.Create(ctx, g, models.Post{
		AuthorID: sc.User.ID,
		Title:    in.Title,
		Content:  in.Content,
	})
	if err != nil {
		h.ErrLog.Fail(w, r, "create post failed", err)
		return
	}

	h.Log.Info("post created",
		zap.String("post_id", p.ID.Hex()),
		zap.String("group_id", g.ID.Hex()))
	apperr.WriteJSON(w, http.StatusCreated, p)
}

// remove deletes the {postID} post through g. Members of g and group or org
// admins may delete; the post must belong to g.
func (h *Handler) remove(w http.ResponseWriter, r *http.Request, sc *authz.Scope, g models.Group) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.canDelete(ctx, sc, g.ID); err != nil {
		h.deny(w, r, sc, g.ID, "delete post denied", err)
		return
	}

	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "postID"))
	if err != nil {
		h.ErrLog.Fail(w, r, "delete post rejected", inputval.Errors{"post_id": "invalid post id"})
		return
	}
	p, err := h.Posts.GetByID(ctx, postID)
	if err != nil {
		h.ErrLog.Fail(w, r, "load post failed", err)
		return
	}
	if p.GroupID != g.ID {
		h.deny(w, r, sc, g.ID, "delete post denied", errPostNotInGroup)
		return
	}

	if err := h.Posts.Delete(ctx, p.ID); err != nil {
		h.ErrLog.Fail(w, r, "delete post failed", err)
		return
	}

	h.Log.Info("post deleted",
		zap.String("post_id", p.ID.Hex()),
		zap.String("group_id", g.ID.Hex()))
	h.Audit.PostDeleted(ctx, r, sc.Actor(), p)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) canDelete(ctx context.Context, sc *authz.Scope, groupID primitive.ObjectID) error {
	_, err := sc.ValidateGroupMembership(ctx, groupID)
	if errors.Is(err, authz.ErrNotMember) && sc.IsOrgAdmin() {
		return nil
	}
	return err
}
