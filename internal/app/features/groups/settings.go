package groups

import (
	"context"
	"net/http"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type settingsInput struct {
	Name string `form:"name" validate:"omitempty,max=100"`
	Slug string `form:"slug" validate:"omitempty,max=64,slug"`
}

// HandleUpdate changes a group's name, slug or logo. Blank fields keep
// their current value.
// POST /org/{slug}/groups/{groupSlug}/settings (group or org admin)
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	g, _ := groupctx.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := sc.RequireGroupOrOrgAdmin(ctx, g.ID); err != nil {
		h.deny(w, r, sc, &g.ID, "update group denied", err)
		return
	}

	if err := h.parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}
	in := settingsInput{
		Name: normalize.Name(r.FormValue("name")),
		Slug: normalize.Slug(r.FormValue("slug")),
	}
	if err := inputval.Validate(in); err != nil {
		h.ErrLog.Fail(w, r, "update group rejected", err)
		return
	}

	var fields []string
	if in.Name != "" && in.Name != g.Name {
		fields = append(fields, "name")
	} else {
		in.Name = ""
	}
	if in.Slug != "" && in.Slug != g.Slug {
		taken, err := h.Groups.SlugTaken(ctx, g.OrganizationID, in.Slug, &g.ID)
		if err != nil {
			h.ErrLog.Fail(w, r, "slug check failed", err)
			return
		}
		if taken {
			h.ErrLog.Fail(w, r, "update group rejected", groupstore.ErrDuplicateGroupSlug)
			return
		}
		fields = append(fields, "slug")
	} else {
		in.Slug = ""
	}

	action, logoURL, err := h.logoChange(ctx, r)
	if err != nil {
		h.ErrLog.Fail(w, r, "logo upload failed", err)
		return
	}
	if action == groupstore.LogoClear && g.LogoURL == "" {
		action = groupstore.LogoKeep
	}
	if action != groupstore.LogoKeep {
		fields = append(fields, "logo")
	}

	if len(fields) == 0 {
		apperr.WriteJSON(w, http.StatusOK, g)
		return
	}

	updated, err := h.Groups.Update(ctx, g.ID, groupstore.Update{
		Name:    in.Name,
		Slug:    in.Slug,
		Logo:    action,
		LogoURL: logoURL,
	})
	if err != nil {
		h.discardLogo(ctx, logoURL)
		h.ErrLog.Fail(w, r, "update group failed", err)
		return
	}
	if action != groupstore.LogoKeep {
		h.discardLogo(ctx, g.LogoURL)
	}

	if cur, ok := h.Current.Optional(r); ok && cur.ID == g.ID {
		if err := h.Current.Set(w, updated); err != nil {
			h.Log.Warn("refresh current group failed", zap.String("group_id", g.ID.Hex()), zap.Error(err))
		}
	}

	h.Log.Info("group updated",
		zap.String("group_id", g.ID.Hex()),
		zap.Strings("fields", fields))
	h.Audit.GroupUpdated(ctx, r, sc.Actor(), updated, fields)
	apperr.WriteJSON(w, http.StatusOK, updated)
}
