package guard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/guard"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeSync struct {
	mu        sync.Mutex
	userCalls int
	orgCalls  int
	err       error
}

func (f *fakeSync) EnsureUser(_ context.Context, externalID string) (models.User, error) {
	f.mu.Lock()
	f.userCalls++
	f.mu.Unlock()
	if f.err != nil {
		return models.User{}, f.err
	}
	return models.User{ID: primitive.NewObjectID(), ExternalID: externalID}, nil
}

func (f *fakeSync) EnsureOrganization(_ context.Context, externalID, slug string) (models.Organization, error) {
	f.mu.Lock()
	f.orgCalls++
	f.mu.Unlock()
	if f.err != nil {
		return models.Organization{}, f.err
	}
	return models.Organization{ID: primitive.NewObjectID(), ExternalID: externalID, Slug: slug}, nil
}

type noMemberships struct{}

func (noMemberships) Get(context.Context, primitive.ObjectID, primitive.ObjectID) (models.GroupMembership, error) {
	return models.GroupMembership{}, errors.New("unused")
}

type recordingFlash struct{ msgs []string }

func (f *recordingFlash) Error(_ http.ResponseWriter, _ *http.Request, text string) {
	f.msgs = append(f.msgs, text)
}

func newRouter(g *guard.Guard, reached *bool, scope **authz.Scope) http.Handler {
	r := chi.NewRouter()
	r.Route("/org/{slug}", func(r chi.Router) {
		r.Use(g.Org)
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			*reached = true
			*scope, _ = authz.FromRequest(r)
		})
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			*reached = true
			*scope, _ = authz.FromRequest(r)
		})
	})
	return r
}

func TestOrg(t *testing.T) {
	active := auth.Session{UserID: "user_1", OrgID: "org_1", OrgSlug: "acme", OrgRole: identity.OrgAdminRole, IsAdmin: true}

	tests := []struct {
		name       string
		session    auth.Session
		path       string
		wantReach  bool
		wantStatus int
		wantFlash  bool
	}{
		{"matching slug", active, "/org/acme", true, http.StatusOK, false},
		{"matching slug deep path", active, "/org/acme/groups/design/posts", true, http.StatusOK, false},
		{"other org", active, "/org/globex", false, http.StatusSeeOther, true},
		{"no active org", auth.Session{UserID: "user_1"}, "/org/acme", false, http.StatusSeeOther, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSync{}
			flash := &recordingFlash{}
			var reached bool
			var scope *authz.Scope
			h := newRouter(guard.New(syncer, noMemberships{}, flash, zap.NewNop()), &reached, &scope)

			req := auth.WithTestSession(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.session)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if reached != tt.wantReach {
				t.Errorf("reached = %v, want %v", reached, tt.wantReach)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusSeeOther && rec.Header().Get("Location") != "/" {
				t.Errorf("Location = %q, want /", rec.Header().Get("Location"))
			}
			if (len(flash.msgs) > 0) != tt.wantFlash {
				t.Errorf("flash = %v, wantFlash %v", flash.msgs, tt.wantFlash)
			}
			if tt.wantReach {
				if scope == nil {
					t.Fatal("expected authz scope on request")
				}
				if scope.Org.Slug != "acme" || scope.User.ExternalID != "user_1" || !scope.IsOrgAdmin() {
					t.Errorf("scope = %+v", scope)
				}
				if syncer.userCalls != 1 || syncer.orgCalls != 1 {
					t.Errorf("sync calls user=%d org=%d", syncer.userCalls, syncer.orgCalls)
				}
			} else if syncer.userCalls+syncer.orgCalls != 0 {
				t.Error("sync must not run for rejected requests")
			}
		})
	}
}

func TestOrg_SyncFailure(t *testing.T) {
	syncer := &fakeSync{err: identity.ErrUpstream}
	var reached bool
	var scope *authz.Scope
	h := newRouter(guard.New(syncer, noMemberships{}, nil, zap.NewNop()), &reached, &scope)

	req := auth.WithTestSession(httptest.NewRequest(http.MethodGet, "/org/acme", nil),
		auth.Session{UserID: "user_1", OrgID: "org_1", OrgSlug: "acme"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if reached {
		t.Error("handler should not run when sync fails")
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestOrg_HTMXBounce(t *testing.T) {
	var reached bool
	var scope *authz.Scope
	h := newRouter(guard.New(&fakeSync{}, noMemberships{}, nil, zap.NewNop()), &reached, &scope)

	req := auth.WithTestSession(httptest.NewRequest(http.MethodGet, "/org/other", nil),
		auth.Session{UserID: "user_1", OrgID: "org_1", OrgSlug: "acme"})
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("HX-Redirect") != "/" {
		t.Errorf("HX-Redirect = %q", rec.Header().Get("HX-Redirect"))
	}
}
