package groups

import (
	"context"
	"net/http"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/logostore"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.uber.org/zap"
)

type createInput struct {
	Name string `form:"name" validate:"required,max=100"`
	Slug string `form:"slug" validate:"required,max=64,slug"`
}

// HandleCreate creates a group in the active organization.
// POST /org/{slug}/groups (org admin; multipart name, slug, logo)
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := sc.RequireOrgAdmin(); err != nil {
		h.deny(w, r, sc, nil, "create group denied", err)
		return
	}

	if err := h.parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}
	in := createInput{
		Name: normalize.Name(r.FormValue("name")),
		Slug: normalize.Slug(r.FormValue("slug")),
	}
	if err := inputval.Validate(in); err != nil {
		h.ErrLog.Fail(w, r, "create group rejected", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	// Friendly early answer; the unique index still decides races.
	taken, err := h.Groups.SlugTaken(ctx, sc.Org.ID, in.Slug, nil)
	if err != nil {
		h.ErrLog.Fail(w, r, "slug check failed", err)
		return
	}
	if taken {
		h.ErrLog.Fail(w, r, "create group rejected", groupstore.ErrDuplicateGroupSlug)
		return
	}

	action, logoURL, err := h.logoChange(ctx, r)
	if err != nil {
		h.ErrLog.Fail(w, r, "logo upload failed", err)
		return
	}
	if action != groupstore.LogoReplace {
		logoURL = ""
	}

	g, err := h.Groups.Create(ctx, models.Group{
		OrganizationID: sc.Org.ID,
		Name:           in.Name,
		Slug:           in.Slug,
		LogoURL:        logoURL,
	})
	if err != nil {
		h.discardLogo(ctx, logoURL)
		h.ErrLog.Fail(w, r, "create group failed", err)
		return
	}

	h.Log.Info("group created",
		zap.String("group_id", g.ID.Hex()),
		zap.String("org_id", sc.Org.ID.Hex()),
		zap.String("slug", g.Slug))
	h.Audit.GroupCreated(ctx, r, sc.Actor(), g)
	apperr.WriteJSON(w, http.StatusCreated, g)
}

// discardLogo removes a logo that no group references. Failures are logged.
func (h *Handler) discardLogo(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := logostore.Remove(ctx, h.Logos, url); err != nil {
		h.Log.Warn("failed to delete logo", zap.String("url", url), zap.Error(err))
	}
}
