// Package auth exposes the identity provider's session to handlers. The
// session is resolved at most once per request, on first use.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Session is the authenticated view of a request.
type Session struct {
	UserID    string // identity-provider user id; "" when signed out
	SessionID string
	OrgID     string // active organization; "" when none is selected
	OrgSlug   string
	OrgRole   string
	IsAdmin   bool // OrgRole is the org-admin role
}

// SignedIn reports whether the request carries a valid session.
func (s Session) SignedIn() bool { return s.UserID != "" }

// HasActiveOrg reports whether the session has an active organization.
func (s Session) HasActiveOrg() bool { return s.OrgID != "" && s.OrgSlug != "" }

// FromClaims derives a Session. A missing role claim yields IsAdmin=false.
func FromClaims(c identity.Claims) Session {
	return Session{
		UserID:    c.UserID,
		SessionID: c.SessionID,
		OrgID:     c.OrgID,
		OrgSlug:   c.OrgSlug,
		OrgRole:   c.OrgRole,
		IsAdmin:   c.OrgRole == identity.OrgAdminRole,
	}
}

type ctxKey string

const sessionKey ctxKey = "session"

// accessor resolves the session lazily and memoizes it for the request.
type accessor struct {
	once     sync.Once
	provider identity.Provider
	token    string
	log      *zap.Logger
	s        Session
}

func (a *accessor) get(ctx context.Context) Session {
	a.once.Do(func() {
		if a.token == "" || a.provider == nil {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
		defer cancel()

		claims, err := a.provider.VerifySession(ctx, a.token)
		switch {
		case err == nil:
			a.s = FromClaims(claims)
		case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrNoSession):
			a.log.Debug("session rejected", zap.Error(err))
		default:
			a.log.Warn("session verification failed", zap.Error(err))
		}
	})
	return a.s
}

// Middleware attaches a per-request session accessor. The provider is not
// called until a handler asks for the session.
func Middleware(provider identity.Provider, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := &accessor{
				provider: provider,
				token:    identity.TokenFromRequest(r),
				log:      logger,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, a)))
		})
	}
}

// FromRequest returns the request's session. Outside Middleware, or when
// signed out, it returns the zero Session.
func FromRequest(r *http.Request) Session {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) Session {
	if a, ok := ctx.Value(sessionKey).(*accessor); ok {
		return a.get(ctx)
	}
	return Session{}
}

// RequireSignedIn rejects signed-out requests.
//   - HTMX: HX-Redirect to /
//   - HTML: 303 to /
//   - API:  401
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromRequest(r).SignedIn() {
			next.ServeHTTP(w, r)
			return
		}
		deny(w, r, http.StatusUnauthorized, "unauthorized")
	})
}

// RequireOrgAdmin rejects requests whose session lacks the org-admin role.
func RequireOrgAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromRequest(r)
		if !s.SignedIn() {
			deny(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !s.IsAdmin {
			deny(w, r, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(status)
		return
	}
	if WantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Error(w, msg, status)
}

// WantsHTML is a light heuristic for browser navigations.
func WantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// WithTestSession returns r carrying an already-resolved session.
func WithTestSession(r *http.Request, s Session) *http.Request {
	return r.WithContext(WithTestSessionCtx(r.Context(), s))
}

// WithTestSessionCtx is WithTestSession for a bare context.
func WithTestSessionCtx(ctx context.Context, s Session) context.Context {
	a := &accessor{s: s}
	a.once.Do(func() {})
	return context.WithValue(ctx, sessionKey, a)
}
