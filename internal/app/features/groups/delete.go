package groups

import (
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleDelete removes a group with its memberships and posts.
// DELETE /org/{slug}/groups/{groupSlug} (group or org admin)
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete group")
	defer cancel()

	if err := sc.RequireGroupOrOrgAdmin(ctx, g.ID); err != nil {
		h.deny(w, r, sc, &g.ID, "delete group denied", err)
		return
	}

	res, err := h.Groups.Delete(ctx, g.ID)
	if err != nil {
		h.ErrLog.Fail(w, r, "delete group failed", err)
		return
	}
	h.discardLogo(ctx, g.LogoURL)

	if cur, ok := h.Current.Optional(r); ok && cur.ID == g.ID {
		h.Current.Clear(w)
	}

	h.Log.Info("group deleted",
		zap.String("group_id", g.ID.Hex()),
		zap.Int64("memberships", res.Memberships),
		zap.Int64("posts", res.Posts))
	h.Audit.GroupDeleted(ctx, r, sc.Actor(), g, res.Memberships, res.Posts)
	apperr.WriteJSON(w, http.StatusOK, map[string]any{
		"deleted": map[string]int64{
			"groups":      res.Groups,
			"memberships": res.Memberships,
			"posts":       res.Posts,
		},
	})
}
