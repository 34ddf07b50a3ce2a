// internal/app/features/groups/handler.go
package groups

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	poststore "github.com/dalemusser/grouphub/internal/app/store/posts"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/logostore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultLogoMaxBytes caps logo uploads when no limit is configured.
const DefaultLogoMaxBytes int64 = 2 << 20

// Handler is the shared dependency container for the groups feature.
type Handler struct {
	Groups       *groupstore.Store
	Memberships  *membershipstore.Store
	Posts        *poststore.Store
	Logos        logostore.Store
	LogoMaxBytes int64
	Current      *currentgroup.Resolver
	Audit        *auditlog.Logger
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

func NewHandler(db *mongo.Database, logos logostore.Store, logoMaxBytes int64, current *currentgroup.Resolver, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logoMaxBytes <= 0 {
		logoMaxBytes = DefaultLogoMaxBytes
	}
	return &Handler{
		Groups:       groupstore.New(db),
		Memberships:  membershipstore.New(db),
		Posts:        poststore.New(db),
		Logos:        logos,
		LogoMaxBytes: logoMaxBytes,
		Current:      current,
		Audit:        audit,
		ErrLog:       errLog,
		Log:          logger,
	}
}

var errNoScope = errors.New("organization scope missing from request")

// scope returns the request's authz scope or answers 500.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*authz.Scope, bool) {
	sc, ok := authz.FromRequest(r)
	if !ok {
		h.ErrLog.Fail(w, r, "groups handler reached without scope", errNoScope)
		return nil, false
	}
	return sc, true
}

// deny records an authorization failure and answers with it.
func (h *Handler) deny(w http.ResponseWriter, r *http.Request, sc *authz.Scope, groupID *primitive.ObjectID, msg string, err error) {
	if errors.Is(err, authz.ErrForbidden) || errors.Is(err, authz.ErrNotMember) {
		h.Audit.AccessDenied(r.Context(), r, sc.Actor(), groupID, msg)
	}
	h.ErrLog.Fail(w, r, msg, err)
}
