// Package guard enforces the routing contract for organization pages: the
// URL's org slug must be the session's active organization, and the local
// user and organization rows must exist before a handler runs.
package guard

import (
	"context"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Syncer makes sure the local rows for a session exist.
type Syncer interface {
	EnsureUser(ctx context.Context, externalID string) (models.User, error)
	EnsureOrganization(ctx context.Context, externalID, slug string) (models.Organization, error)
}

// Flasher queues a toast for the next page.
type Flasher interface {
	Error(w http.ResponseWriter, r *http.Request, text string)
}

const (
	msgNoActiveOrg = "Select an organization to continue"
	msgWrongOrg    = "That organization is not your active organization"
)

type Guard struct {
	sync        Syncer
	memberships authz.MembershipGetter
	flash       Flasher
	log         *zap.Logger
}

func New(sync Syncer, memberships authz.MembershipGetter, flash Flasher, logger *zap.Logger) *Guard {
	return &Guard{sync: sync, memberships: memberships, flash: flash, log: logger}
}

// Org guards routes mounted under /org/{slug}. It expects auth.Middleware
// and auth.RequireSignedIn to have run.
func (g *Guard) Org(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := auth.FromRequest(r)
		slug := chi.URLParam(r, "slug")

		if !s.HasActiveOrg() {
			g.bounce(w, r, msgNoActiveOrg)
			return
		}
		if s.OrgSlug != slug {
			g.log.Info("org slug mismatch",
				zap.String("user", s.UserID),
				zap.String("active_org", s.OrgSlug),
				zap.String("requested_org", slug))
			g.bounce(w, r, msgWrongOrg)
			return
		}

		user, org, err := g.ensure(r.Context(), s)
		if err != nil {
			g.log.Error("sync on org entry failed",
				zap.String("user", s.UserID),
				zap.String("org", s.OrgID),
				zap.Error(err))
			apperr.Write(w, err)
			return
		}

		sc := authz.NewScope(s, user, org, g.memberships)
		next.ServeHTTP(w, authz.WithScope(r, sc))
	})
}

// ensure syncs the user and organization rows concurrently.
func (g *Guard) ensure(parent context.Context, s auth.Session) (models.User, models.Organization, error) {
	ctx, cancel := context.WithTimeout(parent, timeouts.Medium())
	defer cancel()

	var (
		user models.User
		org  models.Organization
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		user, err = g.sync.EnsureUser(ctx, s.UserID)
		return err
	})
	eg.Go(func() error {
		var err error
		org, err = g.sync.EnsureOrganization(ctx, s.OrgID, s.OrgSlug)
		return err
	})
	if err := eg.Wait(); err != nil {
		return models.User{}, models.Organization{}, err
	}
	return user, org, nil
}

// bounce sends the user home with a toast.
func (g *Guard) bounce(w http.ResponseWriter, r *http.Request, msg string) {
	if g.flash != nil {
		g.flash.Error(w, r, msg)
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
