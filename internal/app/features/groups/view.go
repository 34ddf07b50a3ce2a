package groups

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"golang.org/x/sync/errgroup"
)

type groupView struct {
	Group       models.Group  `json:"group"`
	Role        string        `json:"role,omitempty"` // caller's membership role, if any
	CanAdmin    bool          `json:"can_admin"`
	MemberCount int64         `json:"member_count"`
	Posts       []models.Post `json:"posts"`
}

// ServeGroup shows a group and makes it the current group.
// GET /org/{slug}/groups/{groupSlug}
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	vm := groupView{Group: g}
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		m, err := sc.ValidateGroupMembership(ectx, g.ID)
		if errors.Is(err, authz.ErrNotMember) {
			return nil
		}
		vm.Role = m.Role
		return err
	})
	eg.Go(func() error {
		var err error
		vm.CanAdmin, err = sc.IsGroupOrOrgAdmin(ectx, g.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		vm.MemberCount, err = h.Memberships.CountByGroup(ectx, g.ID, "")
		return err
	})
	eg.Go(func() error {
		var err error
		vm.Posts, err = h.Posts.ListByGroup(ectx, g.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		h.ErrLog.Fail(w, r, "load group page failed", err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, vm)
}
