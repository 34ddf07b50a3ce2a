// internal/app/system/authz/authz.go
package authz

// Terminology: User Identifiers
//   - UserID / userID / user_id: the local MongoDB ObjectID of a user row
//   - Session.UserID: the identity provider's id for the same user

import (
	"context"
	"errors"
	"net/http"
	"sync"

	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotMember means the user has no membership in the group.
	ErrNotMember = errors.New("you are not a member of this group")
	// ErrForbidden means the user lacks the role an action requires.
	ErrForbidden = errors.New("you do not have permission to do this")
)

// MembershipGetter is the slice of the membership store a Scope needs.
type MembershipGetter interface {
	Get(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error)
}

type memo struct {
	m   models.GroupMembership
	err error
}

// Scope is the per-request authorization context for one organization: the
// session, the synced local rows and a memo of membership lookups. It is
// safe for concurrent use.
type Scope struct {
	Session auth.Session
	User    models.User
	Org     models.Organization

	memberships MembershipGetter

	mu   sync.Mutex
	seen map[primitive.ObjectID]memo
}

func NewScope(s auth.Session, user models.User, org models.Organization, memberships MembershipGetter) *Scope {
	return &Scope{
		Session:     s,
		User:        user,
		Org:         org,
		memberships: memberships,
		seen:        make(map[primitive.ObjectID]memo),
	}
}

// Actor identifies the scope's user in audit events.
func (sc *Scope) Actor() auditlog.Actor {
	return auditlog.Actor{UserID: sc.User.ID, OrgID: sc.Org.ID, OrgRole: sc.Session.OrgRole}
}

// IsOrgAdmin reports the session's org-admin claim.
func (sc *Scope) IsOrgAdmin() bool { return sc.Session.IsAdmin }

// ValidateGroupMembership returns the user's membership in groupID or
// ErrNotMember. Results are memoized for the life of the Scope; storage
// errors are not.
func (sc *Scope) ValidateGroupMembership(ctx context.Context, groupID primitive.ObjectID) (models.GroupMembership, error) {
	sc.mu.Lock()
	if hit, ok := sc.seen[groupID]; ok {
		sc.mu.Unlock()
		return hit.m, hit.err
	}
	sc.mu.Unlock()

	m, err := sc.memberships.Get(ctx, groupID, sc.User.ID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		err = ErrNotMember
	}
	if err != nil && !errors.Is(err, ErrNotMember) {
		return models.GroupMembership{}, err
	}

	sc.mu.Lock()
	sc.seen[groupID] = memo{m: m, err: err}
	sc.mu.Unlock()
	return m, err
}

// IsGroupOrOrgAdmin reports whether the user may administer groupID. The
// org-admin claim short-circuits without a lookup; otherwise the membership
// role decides. Not being a member is false, not an error.
func (sc *Scope) IsGroupOrOrgAdmin(ctx context.Context, groupID primitive.ObjectID) (bool, error) {
	if sc.IsOrgAdmin() {
		return true, nil
	}
	m, err := sc.ValidateGroupMembership(ctx, groupID)
	if errors.Is(err, ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Role == models.RoleAdmin, nil
}

// RequireGroupOrOrgAdmin is IsGroupOrOrgAdmin returning ErrForbidden on false.
func (sc *Scope) RequireGroupOrOrgAdmin(ctx context.Context, groupID primitive.ObjectID) error {
	ok, err := sc.IsGroupOrOrgAdmin(ctx, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// RequireOrgAdmin returns ErrForbidden unless the session is an org admin.
func (sc *Scope) RequireOrgAdmin() error {
	if !sc.IsOrgAdmin() {
		return ErrForbidden
	}
	return nil
}

// CanSeeGroup reports whether the group is visible to the user: org admins
// see every group of the organization, everyone else only their own.
func (sc *Scope) CanSeeGroup(ctx context.Context, groupID primitive.ObjectID) (bool, error) {
	if sc.IsOrgAdmin() {
		return true, nil
	}
	_, err := sc.ValidateGroupMembership(ctx, groupID)
	if errors.Is(err, ErrNotMember) {
		return false, nil
	}
	return err == nil, err
}

type ctxKey string

const scopeKey ctxKey = "authzScope"

// WithScope attaches sc to the request.
func WithScope(r *http.Request, sc *Scope) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), scopeKey, sc))
}

// FromRequest returns the request's Scope. ok is false outside an
// organization route.
func FromRequest(r *http.Request) (*Scope, bool) {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) (*Scope, bool) {
	sc, ok := ctx.Value(scopeKey).(*Scope)
	return sc, ok && sc != nil
}
