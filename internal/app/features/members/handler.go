// internal/app/features/members/handler.go
package members

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserEnsurer makes sure a local user row exists for a provider user.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, externalID string) (models.User, error)
}

// Handler is the feature-level handler for group members.
type Handler struct {
	Memberships *membershipstore.Store
	Provider    identity.Provider
	Sync        UserEnsurer
	Audit       *auditlog.Logger
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, provider identity.Provider, sync UserEnsurer, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Memberships: membershipstore.New(db),
		Provider:    provider,
		Sync:        sync,
		Audit:       audit,
		ErrLog:      errLog,
		Log:         logger,
	}
}

var errNoScope = errors.New("organization scope missing from request")

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*authz.Scope, bool) {
	sc, ok := authz.FromRequest(r)
	if !ok {
		h.ErrLog.Fail(w, r, "members handler reached without scope", errNoScope)
		return nil, false
	}
	return sc, true
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, sc *authz.Scope, groupID primitive.ObjectID, msg string, err error) {
	if errors.Is(err, authz.ErrForbidden) || errors.Is(err, authz.ErrNotMember) {
		h.Audit.AccessDenied(r.Context(), r, sc.Actor(), &groupID, msg)
	}
	h.ErrLog.Fail(w, r, msg, err)
}
