// internal/app/features/org/handler.go
package org

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler serves the organization home and its member directory.
type Handler struct {
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Provider    identity.Provider
	Current     *currentgroup.Resolver
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, provider identity.Provider, current *currentgroup.Resolver, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Groups:      groupstore.New(db),
		Memberships: membershipstore.New(db),
		Provider:    provider,
		Current:     current,
		ErrLog:      errLog,
		Log:         logger,
	}
}

var errNoScope = errors.New("organization scope missing from request")

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*authz.Scope, bool) {
	sc, ok := authz.FromRequest(r)
	if !ok {
		h.ErrLog.Fail(w, r, "org handler reached without scope", errNoScope)
		return nil, false
	}
	return sc, true
}

type homeView struct {
	Organization models.Organization `json:"organization"`
	IsAdmin      bool                `json:"is_admin"`
	Groups       []models.Group      `json:"groups"`
	MyGroups     []models.Group      `json:"my_groups"`
}

// ServeHome lists the organization's groups and the caller's own groups.
// Entering the organization home drops the current group selection.
// GET /org/{slug}
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	vm := homeView{Organization: sc.Org, IsAdmin: sc.IsOrgAdmin()}
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		vm.Groups, err = h.Groups.ListByOrg(ectx, sc.Org.ID)
		return err
	})
	eg.Go(func() error {
		ids, err := h.Memberships.GroupIDsForUser(ectx, sc.Org.ID, sc.User.ID)
		if err != nil {
			return err
		}
		vm.MyGroups, err = h.Groups.ListByIDs(ectx, ids)
		return err
	})
	if err := eg.Wait(); err != nil {
		h.ErrLog.Fail(w, r, "load organization home failed", err)
		return
	}

	h.Current.Clear(w)
	apperr.WriteJSON(w, http.StatusOK, vm)
}

// ServeMembers lists the organization's members as the identity provider
// reports them.
// GET /org/{slug}/members
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Provider())
	defer cancel()

	members, err := h.Provider.ListOrganizationMembers(ctx, sc.Org.ExternalID)
	if err != nil {
		h.ErrLog.Fail(w, r, "list organization members failed", err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

// HandleClearCurrentGroup drops the current group selection.
// DELETE /org/{slug}/current-group
func (h *Handler) HandleClearCurrentGroup(w http.ResponseWriter, r *http.Request) {
	h.Current.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
