// Package groupctx resolves the {groupSlug} URL segment to a group of the
// active organization and hides groups the user may not see.
package groupctx

import (
	"context"
	"errors"
	"net/http"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GroupGetter is the slice of the group store the loader needs.
type GroupGetter interface {
	GetByOrgAndSlug(ctx context.Context, orgID primitive.ObjectID, slug string) (models.Group, error)
}

// Selector remembers the group a user is working in.
type Selector interface {
	Set(w http.ResponseWriter, g models.Group) error
}

type ctxKey string

const groupKey ctxKey = "group"

// Load resolves {groupSlug} inside the Scope's organization. Missing groups
// and groups the user cannot see both answer 404, so group existence does
// not leak to outsiders. Every GET inside a group makes it the current
// group through current, which may be nil.
func Load(groups GroupGetter, current Selector, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := authz.FromRequest(r)
			if !ok {
				logger.Error("group route reached without authz scope", zap.String("path", r.URL.Path))
				apperr.Write(w, errors.New("missing scope"))
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
			defer cancel()

			slug := chi.URLParam(r, "groupSlug")
			g, err := groups.GetByOrgAndSlug(ctx, sc.Org.ID, slug)
			if err != nil {
				if !errors.Is(err, groupstore.ErrNotFound) {
					logger.Error("load group failed", zap.String("slug", slug), zap.Error(err))
				}
				apperr.Write(w, err)
				return
			}

			visible, err := sc.CanSeeGroup(ctx, g.ID)
			if err != nil {
				logger.Error("group visibility check failed", zap.String("group_id", g.ID.Hex()), zap.Error(err))
				apperr.Write(w, err)
				return
			}
			if !visible {
				apperr.Write(w, groupstore.ErrNotFound)
				return
			}

			if current != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
				if err := current.Set(w, g); err != nil {
					logger.Warn("set current group failed", zap.String("group_id", g.ID.Hex()), zap.Error(err))
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), groupKey, g)))
		})
	}
}

// FromRequest returns the group resolved by Load.
func FromRequest(r *http.Request) (models.Group, bool) {
	g, ok := r.Context().Value(groupKey).(models.Group)
	return g, ok
}

// WithGroup attaches g to r, for tests and for handlers that resolve the
// group some other way.
func WithGroup(r *http.Request, g models.Group) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), groupKey, g))
}
