package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type roleInput struct {
	Role string `form:"role" validate:"required,grouprole"`
}

// userIDParam parses the {userID} URL parameter (the local user id).
func userIDParam(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		return primitive.NilObjectID, inputval.Errors{"user_id": "invalid user id"}
	}
	return id, nil
}

// HandleUpdateRole changes a member's role.
// PATCH /org/{slug}/groups/{groupSlug}/members/{userID} (group or org admin)
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := sc.RequireGroupOrOrgAdmin(ctx, g.ID); err != nil {
		h.deny(w, r, sc, g.ID, "update member role denied", err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		h.ErrLog.Fail(w, r, "update member role rejected", err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}
	in := roleInput{Role: normalize.Role(r.FormValue("role"))}
	if err := inputval.Validate(in); err != nil {
		h.ErrLog.Fail(w, r, "update member role rejected", err)
		return
	}

	before, err := h.Memberships.Get(ctx, g.ID, userID)
	if err != nil {
		h.ErrLog.Fail(w, r, "load membership failed", err)
		return
	}
	if before.Role == in.Role {
		apperr.WriteJSON(w, http.StatusOK, before)
		return
	}

	after, err := h.Memberships.UpdateRole(ctx, g.ID, userID, in.Role)
	if err != nil {
		h.ErrLog.Fail(w, r, "update member role failed", err)
		return
	}

	h.Log.Info("member role changed",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.String("from", before.Role),
		zap.String("to", after.Role))
	h.Audit.MemberRoleChanged(ctx, r, sc.Actor(), g.ID, userID, before.Role, after.Role)
	apperr.WriteJSON(w, http.StatusOK, after)
}

// HandleRemove removes a member from the group.
// DELETE /org/{slug}/groups/{groupSlug}/members/{userID} (group or org admin)
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := sc.RequireGroupOrOrgAdmin(ctx, g.ID); err != nil {
		h.deny(w, r, sc, g.ID, "remove member denied", err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		h.ErrLog.Fail(w, r, "remove member rejected", err)
		return
	}
	if err := h.Memberships.Remove(ctx, g.ID, userID); err != nil {
		h.ErrLog.Fail(w, r, "remove member failed", err)
		return
	}

	h.Log.Info("member removed",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", userID.Hex()))
	h.Audit.MemberRemoved(ctx, r, sc.Actor(), g.ID, userID)
	w.WriteHeader(http.StatusNoContent)
}
