package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.uber.org/zap"
)

type addInput struct {
	UserID string `form:"user_id" validate:"required,max=128"`
	Role   string `form:"role" validate:"required,grouprole"`
}

// HandleAdd adds a user of the organization to the group.
// POST /org/{slug}/groups/{groupSlug}/members (group or org admin; user_id is
// the provider user id, role defaults to member)
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := sc.RequireGroupOrOrgAdmin(ctx, g.ID); err != nil {
		h.deny(w, r, sc, g.ID, "add member denied", err)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}
	in := addInput{
		UserID: normalize.QueryParam(r.FormValue("user_id")),
		Role:   normalize.Role(r.FormValue("role")),
	}
	if in.Role == "" {
		in.Role = models.RoleMember
	}
	if err := inputval.Validate(in); err != nil {
		h.ErrLog.Fail(w, r, "add member rejected", err)
		return
	}

	inOrg, err := h.inOrganization(ctx, sc.Org.ExternalID, in.UserID)
	if err != nil {
		h.ErrLog.Fail(w, r, "list organization members failed", err)
		return
	}
	if !inOrg {
		h.ErrLog.Fail(w, r, "add member rejected", inputval.Errors{"user_id": "user is not a member of this organization"})
		return
	}

	u, err := h.Sync.EnsureUser(ctx, in.UserID)
	if err != nil {
		h.ErrLog.Fail(w, r, "ensure user failed", err)
		return
	}

	m, err := h.Memberships.Add(ctx, g, u.ID, in.Role)
	if err != nil {
		h.ErrLog.Fail(w, r, "add member failed", err)
		return
	}

	h.Log.Info("member added",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", in.Role))
	h.Audit.MemberAdded(ctx, r, sc.Actor(), g.ID, u.ID, in.Role)
	apperr.WriteJSON(w, http.StatusCreated, models.MembershipWithUser{GroupMembership: m, User: u})
}

// inOrganization asks the provider whether externalID belongs to orgID.
func (h *Handler) inOrganization(parent context.Context, orgID, externalID string) (bool, error) {
	ctx, cancel := context.WithTimeout(parent, timeouts.Provider())
	defer cancel()

	members, err := h.Provider.ListOrganizationMembers(ctx, orgID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.UserID == externalID {
			return true, nil
		}
	}
	return false, nil
}
