package authz_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeMemberships is an in-memory MembershipGetter that counts lookups.
type fakeMemberships struct {
	mu    sync.Mutex
	roles map[primitive.ObjectID]string
	err   error
	calls int
}

func (f *fakeMemberships) Get(_ context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.GroupMembership{}, f.err
	}
	role, ok := f.roles[groupID]
	if !ok {
		return models.GroupMembership{}, membershipstore.ErrNotFound
	}
	return models.GroupMembership{GroupID: groupID, UserID: userID, Role: role}, nil
}

func newScope(orgAdmin bool, f *fakeMemberships) *authz.Scope {
	s := auth.Session{UserID: "user_1", OrgID: "org_1", OrgSlug: "acme"}
	if orgAdmin {
		s.OrgRole = "org:admin"
		s.IsAdmin = true
	}
	return authz.NewScope(s, models.User{ID: primitive.NewObjectID()}, models.Organization{ID: primitive.NewObjectID()}, f)
}

func TestValidateGroupMembership(t *testing.T) {
	member := primitive.NewObjectID()
	stranger := primitive.NewObjectID()
	f := &fakeMemberships{roles: map[primitive.ObjectID]string{member: models.RoleMember}}
	sc := newScope(false, f)
	ctx := context.Background()

	m, err := sc.ValidateGroupMembership(ctx, member)
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if m.Role != models.RoleMember {
		t.Errorf("Role = %q", m.Role)
	}

	if _, err := sc.ValidateGroupMembership(ctx, stranger); !errors.Is(err, authz.ErrNotMember) {
		t.Errorf("stranger: expected ErrNotMember, got %v", err)
	}
}

func TestValidateGroupMembership_Memoized(t *testing.T) {
	g := primitive.NewObjectID()
	f := &fakeMemberships{roles: map[primitive.ObjectID]string{g: models.RoleAdmin}}
	sc := newScope(false, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = sc.IsGroupOrOrgAdmin(ctx, g)
		}()
	}
	wg.Wait()
	_, _ = sc.ValidateGroupMembership(ctx, g)

	// Concurrent first lookups may each reach the store; afterwards the memo answers.
	before := f.calls
	_, _ = sc.ValidateGroupMembership(ctx, g)
	if f.calls != before {
		t.Errorf("memoized lookup hit the store again (%d -> %d)", before, f.calls)
	}
}

func TestValidateGroupMembership_StorageErrorNotMemoized(t *testing.T) {
	g := primitive.NewObjectID()
	f := &fakeMemberships{err: errors.New("connection reset")}
	sc := newScope(false, f)
	ctx := context.Background()

	if _, err := sc.ValidateGroupMembership(ctx, g); err == nil || errors.Is(err, authz.ErrNotMember) {
		t.Fatalf("expected storage error, got %v", err)
	}
	f.err = nil
	f.roles = map[primitive.ObjectID]string{g: models.RoleMember}
	if _, err := sc.ValidateGroupMembership(ctx, g); err != nil {
		t.Errorf("retry after storage error: %v", err)
	}
}

func TestIsGroupOrOrgAdmin(t *testing.T) {
	adminGroup := primitive.NewObjectID()
	memberGroup := primitive.NewObjectID()
	otherGroup := primitive.NewObjectID()
	roles := map[primitive.ObjectID]string{adminGroup: models.RoleAdmin, memberGroup: models.RoleMember}

	tests := []struct {
		name     string
		orgAdmin bool
		group    primitive.ObjectID
		want     bool
		lookups  int
	}{
		{"org admin short-circuits", true, otherGroup, true, 0},
		{"group admin", false, adminGroup, true, 1},
		{"plain member", false, memberGroup, false, 1},
		{"not a member is false", false, otherGroup, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeMemberships{roles: roles}
			sc := newScope(tt.orgAdmin, f)
			got, err := sc.IsGroupOrOrgAdmin(context.Background(), tt.group)
			if err != nil {
				t.Fatalf("IsGroupOrOrgAdmin: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if f.calls != tt.lookups {
				t.Errorf("lookups = %d, want %d", f.calls, tt.lookups)
			}
		})
	}
}

func TestIsGroupOrOrgAdmin_PropagatesStorageErrors(t *testing.T) {
	boom := errors.New("boom")
	sc := newScope(false, &fakeMemberships{err: boom})
	if _, err := sc.IsGroupOrOrgAdmin(context.Background(), primitive.NewObjectID()); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestRequireHelpers(t *testing.T) {
	g := primitive.NewObjectID()
	f := &fakeMemberships{roles: map[primitive.ObjectID]string{g: models.RoleMember}}
	member := newScope(false, f)
	admin := newScope(true, f)
	ctx := context.Background()

	if err := member.RequireGroupOrOrgAdmin(ctx, g); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("member RequireGroupOrOrgAdmin: got %v", err)
	}
	if err := admin.RequireGroupOrOrgAdmin(ctx, g); err != nil {
		t.Errorf("admin RequireGroupOrOrgAdmin: %v", err)
	}
	if err := member.RequireOrgAdmin(); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("member RequireOrgAdmin: got %v", err)
	}
	if err := admin.RequireOrgAdmin(); err != nil {
		t.Errorf("admin RequireOrgAdmin: %v", err)
	}
}

func TestCanSeeGroup(t *testing.T) {
	mine := primitive.NewObjectID()
	f := &fakeMemberships{roles: map[primitive.ObjectID]string{mine: models.RoleMember}}
	ctx := context.Background()

	if ok, _ := newScope(false, f).CanSeeGroup(ctx, mine); !ok {
		t.Error("member should see own group")
	}
	if ok, _ := newScope(false, f).CanSeeGroup(ctx, primitive.NewObjectID()); ok {
		t.Error("non-member should not see group")
	}
	if ok, _ := newScope(true, f).CanSeeGroup(ctx, primitive.NewObjectID()); !ok {
		t.Error("org admin should see every group")
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/org/acme", nil)
	if _, ok := authz.FromRequest(req); ok {
		t.Error("expected no scope on bare request")
	}
	sc := newScope(false, &fakeMemberships{})
	req = authz.WithScope(req, sc)
	got, ok := authz.FromRequest(req)
	if !ok || got != sc {
		t.Error("expected attached scope")
	}
}
