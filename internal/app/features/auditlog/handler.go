// internal/app/features/auditlog/handler.go
package auditlog

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/store/audit"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	userstore "github.com/dalemusser/grouphub/internal/app/store/users"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves an organization's audit trail to its admins.
type Handler struct {
	Events *audit.Store
	Users  *userstore.Store
	Groups *groupstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs an audit log feature handler bound to db.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: audit.New(db),
		Users:  userstore.New(db),
		Groups: groupstore.New(db),
		ErrLog: errLog,
		Log:    logger,
	}
}

var errNoScope = errors.New("organization scope missing from request")

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*authz.Scope, bool) {
	sc, ok := authz.FromRequest(r)
	if !ok {
		h.ErrLog.Fail(w, r, "audit handler reached without scope", errNoScope)
		return nil, false
	}
	return sc, true
}
