// Package identity talks to the external identity provider: it verifies
// session tokens and reads user, organization and membership data from the
// provider's backend API.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/grouphub/internal/domain/models"
)

// OrgAdminRole is the organization role that makes a user an implicit admin
// of every group in the organization.
const OrgAdminRole = "org:admin"

// SessionCookie is the cookie the provider's frontend SDK stores the session
// token in.
const SessionCookie = "__session"

var (
	ErrNoSession    = errors.New("identity: no session token")
	ErrInvalidToken = errors.New("identity: invalid session token")
	ErrNotFound     = errors.New("identity: not found")
	ErrUpstream     = errors.New("identity: provider unavailable")
)

// Claims are the verified contents of a session token. Org fields are empty
// when the user has no active organization.
type Claims struct {
	UserID    string
	SessionID string
	OrgID     string
	OrgSlug   string
	OrgRole   string
}

// UserProfile holds the canonical profile fields of a provider user.
type UserProfile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	ImageURL  string
}

// FullName joins first and last name, skipping empty parts.
func (u UserProfile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// OrgProfile holds the canonical fields of a provider organization.
type OrgProfile struct {
	ID   string
	Name string
	Slug string
}

// Provider is the subset of the identity provider the app depends on.
type Provider interface {
	VerifySession(ctx context.Context, token string) (Claims, error)
	GetUser(ctx context.Context, userID string) (UserProfile, error)
	GetOrganization(ctx context.Context, orgID string) (OrgProfile, error)
	ListOrganizationMembers(ctx context.Context, orgID string) ([]models.OrgMember, error)
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the session cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
