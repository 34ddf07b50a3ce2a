package auth_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/app/system/identity/identitytest"
	"go.uber.org/zap"
)

func TestFromClaims_IsAdmin(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"org:admin", true},
		{"org:member", false},
		{"admin", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			s := auth.FromClaims(identity.Claims{UserID: "user_1", OrgRole: tt.role})
			if s.IsAdmin != tt.want {
				t.Errorf("IsAdmin for %q = %v, want %v", tt.role, s.IsAdmin, tt.want)
			}
		})
	}
}

func TestMiddleware_ResolvesOncePerRequest(t *testing.T) {
	fake := identitytest.New()
	fake.Sessions["tok"] = identity.Claims{UserID: "user_1", OrgID: "org_1", OrgSlug: "acme", OrgRole: "org:admin"}

	var sessions []auth.Session
	h := auth.Middleware(fake, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s := auth.FromRequest(r)
				mu.Lock()
				sessions = append(sessions, s)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if n := fake.Calls("VerifySession"); n != 1 {
		t.Errorf("VerifySession called %d times, want 1", n)
	}
	for _, s := range sessions {
		if !s.SignedIn() || !s.IsAdmin || s.OrgSlug != "acme" {
			t.Errorf("session = %+v", s)
		}
	}

	// A second request resolves again.
	h.ServeHTTP(httptest.NewRecorder(), req)
	if n := fake.Calls("VerifySession"); n != 2 {
		t.Errorf("VerifySession called %d times across two requests, want 2", n)
	}
}

func TestMiddleware_LazyAndSignedOut(t *testing.T) {
	fake := identitytest.New()
	h := auth.Middleware(fake, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Never asked for the session: provider untouched.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if n := fake.Calls("VerifySession"); n != 0 {
		t.Errorf("VerifySession called %d times, want 0", n)
	}

	// Invalid token: zero session.
	var got auth.Session
	h = auth.Middleware(fake, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.FromRequest(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got.SignedIn() {
		t.Errorf("expected signed-out session, got %+v", got)
	}
}

func TestFromRequest_NoMiddleware(t *testing.T) {
	if s := auth.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)); s.SignedIn() {
		t.Errorf("expected zero session, got %+v", s)
	}
}

func TestRequireSignedIn(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := auth.RequireSignedIn(ok)

	tests := []struct {
		name       string
		session    *auth.Session
		headers    map[string]string
		wantStatus int
		wantHeader string
	}{
		{"html redirects home", nil, map[string]string{"Accept": "text/html"}, http.StatusSeeOther, "Location"},
		{"htmx gets HX-Redirect", nil, map[string]string{"HX-Request": "true"}, http.StatusUnauthorized, "HX-Redirect"},
		{"api gets 401", nil, map[string]string{"Accept": "application/json"}, http.StatusUnauthorized, ""},
		{"signed in proceeds", &auth.Session{UserID: "user_1"}, nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/org/acme", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.session != nil {
				req = auth.WithTestSession(req, *tt.session)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantHeader != "" && rec.Header().Get(tt.wantHeader) != "/" {
				t.Errorf("%s = %q, want /", tt.wantHeader, rec.Header().Get(tt.wantHeader))
			}
		})
	}
}

func TestRequireOrgAdmin(t *testing.T) {
	h := auth.RequireOrgAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	tests := []struct {
		name    string
		session auth.Session
		want    int
	}{
		{"signed out", auth.Session{}, http.StatusUnauthorized},
		{"member", auth.Session{UserID: "u", OrgRole: "org:member"}, http.StatusForbidden},
		{"admin", auth.Session{UserID: "u", OrgRole: "org:admin", IsAdmin: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := auth.WithTestSession(httptest.NewRequest(http.MethodPost, "/org/acme/groups", nil), tt.session)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
