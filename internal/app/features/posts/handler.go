// internal/app/features/posts/handler.go
package posts

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	poststore "github.com/dalemusser/grouphub/internal/app/store/posts"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/flash"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves posts inside a group and through the current group.
type Handler struct {
	Posts   *poststore.Store
	Groups  *groupstore.Store
	Current *currentgroup.Resolver
	Flash   *flash.Store
	Audit   *auditlog.Logger
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(db *mongo.Database, current *currentgroup.Resolver, fl *flash.Store, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Posts:   poststore.New(db),
		Groups:  groupstore.New(db),
		Current: current,
		Flash:   fl,
		Audit:   audit,
		ErrLog:  errLog,
		Log:     logger,
	}
}

var errNoScope = errors.New("organization scope missing from request")

// postNotInGroup is the answer for deleting a post through a group it does
// not belong to. It classifies as forbidden.
type postNotInGroup struct{}

func (postNotInGroup) Error() string        { return "you are not allowed to delete this post" }
func (postNotInGroup) Is(target error) bool { return target == authz.ErrForbidden }

var errPostNotInGroup error = postNotInGroup{}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*authz.Scope, bool) {
	sc, ok := authz.FromRequest(r)
	if !ok {
		h.ErrLog.Fail(w, r, "posts handler reached without scope", errNoScope)
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
