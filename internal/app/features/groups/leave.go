package groups

import (
	"context"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleLeave removes the caller's own membership.
// POST /org/{slug}/groups/{groupSlug}/leave (member)
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := sc.ValidateGroupMembership(ctx, g.ID); err != nil {
		h.deny(w, r, sc, &g.ID, "leave group denied", err)
		return
	}
	if err := h.Memberships.Remove(ctx, g.ID, sc.User.ID); err != nil {
		h.ErrLog.Fail(w, r, "leave group failed", err)
		return
	}

	if cur, ok := h.Current.Optional(r); ok && cur.ID == g.ID {
		h.Current.Clear(w)
	}

	h.Log.Info("member left group",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", sc.User.ID.Hex()))
	h.Audit.MemberLeft(ctx, r, sc.Actor(), g.ID)
	w.WriteHeader(http.StatusNoContent)
}
