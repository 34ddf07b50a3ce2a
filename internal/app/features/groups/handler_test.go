package groups_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/features/groups"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/logostore"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const cookieKey = "0123456789abcdef0123456789abcdef"

type env struct {
	db       *mongo.Database
	fx       *testutil.Fixtures
	h        *groups.Handler
	logoDir  string
	org      models.Organization
	user     models.User
	orgAdmin bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dir := t.TempDir()
	logos, err := logostore.NewLocal(dir, "/logos")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	current, err := currentgroup.New(cookieKey, false, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("currentgroup.New: %v", err)
	}

	logger := zap.NewNop()
	h := groups.NewHandler(db, logos, 64<<10, current, nil, uierrors.NewErrorLogger(logger), logger)

	return &env{
		db:      db,
		fx:      fx,
		h:       h,
		logoDir: dir,
		org:     fx.CreateOrganization(ctx, "Acme"),
		user:    fx.CreateUser(ctx, "user_1", "Pat"),
	}
}

// request attaches the session, scope and group a routed request would carry.
func (e *env) request(method, target string, body io.Reader, g *models.Group) *http.Request {
	r := httptest.NewRequest(method, target, body)
	s := auth.Session{
		UserID:  e.user.ExternalID,
		OrgID:   e.org.ExternalID,
		OrgSlug: e.org.Slug,
		IsAdmin: e.orgAdmin,
	}
	r = auth.WithTestSession(r, s)
	r = authz.WithScope(r, authz.NewScope(s, e.user, e.org, membershipstore.New(e.db)))
	if g != nil {
		r = groupctx.WithGroup(r, *g)
	}
	return r
}

func formBody(vals url.Values) io.Reader { return strings.NewReader(vals.Encode()) }

func postForm(e *env, target string, vals url.Values, g *models.Group) *http.Request {
	r := e.request(http.MethodPost, target, formBody(vals), g)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// multipartLogo builds a body with text fields and a logo part.
func multipartLogo(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="logo"; filename="%s"`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n0000")

func TestHandleCreate(t *testing.T) {
	tests := []struct {
		name     string
		orgAdmin bool
		form     url.Values
		want     int
	}{
		{"org admin creates", true, url.Values{"name": {"Design Team"}, "slug": {"design"}}, http.StatusCreated},
		{"slug is normalized", true, url.Values{"name": {"Ops"}, "slug": {"  Ops Crew "}}, http.StatusCreated},
		{"non-admin is forbidden", false, url.Values{"name": {"X"}, "slug": {"x"}}, http.StatusForbidden},
		{"missing name", true, url.Values{"slug": {"nameless"}}, http.StatusBadRequest},
		{"missing slug", true, url.Values{"name": {"Slugless"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.orgAdmin = tt.orgAdmin

			rec := httptest.NewRecorder()
			e.h.HandleCreate(rec, postForm(e, "/org/acme/groups", tt.form, nil))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusCreated {
				return
			}
			var g models.Group
			if err := json.NewDecoder(rec.Body).Decode(&g); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if g.OrganizationID != e.org.ID {
				t.Errorf("OrganizationID = %v, want %v", g.OrganizationID, e.org.ID)
			}

			ctx, cancel := testutil.TestContext()
			defer cancel()
			// The creator does not become a member.
			n, err := membershipstore.New(e.db).CountByGroup(ctx, g.ID, "")
			if err != nil {
				t.Fatal(err)
			}
			if n != 0 {
				t.Errorf("memberships = %d, want 0", n)
			}
		})
	}
}

func TestHandleCreate_DuplicateSlug(t *testing.T) {
	e := newEnv(t)
	e.orgAdmin = true
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")

	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, postForm(e, "/org/acme/groups", url.Values{"name": {"Other"}, "slug": {"design"}}, nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), groupstore.ErrDuplicateGroupSlug.Error()) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleCreate_Logo(t *testing.T) {
	e := newEnv(t)
	e.orgAdmin = true

	body, ct := multipartLogo(t, map[string]string{"name": "Brand", "slug": "brand"}, "logo.png", "image/png", pngBytes)
	req := e.request(http.MethodPost, "/org/acme/groups", body, nil)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var g models.Group
	json.NewDecoder(rec.Body).Decode(&g)
	if !strings.HasPrefix(g.LogoURL, "/logos/logos/") || !strings.HasSuffix(g.LogoURL, ".png") {
		t.Fatalf("LogoURL = %q", g.LogoURL)
	}
	onDisk := filepath.Join(e.logoDir, filepath.FromSlash(strings.TrimPrefix(g.LogoURL, "/logos/")))
	if _, err := os.Stat(onDisk); err != nil {
		t.Errorf("logo not written: %v", err)
	}
}

func TestHandleCreate_LogoNotImage(t *testing.T) {
	e := newEnv(t)
	e.orgAdmin = true

	body, ct := multipartLogo(t, map[string]string{"name": "Brand", "slug": "brand"}, "notes.txt", "text/plain", []byte("hi"))
	req := e.request(http.MethodPost, "/org/acme/groups", body, nil)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"logo"`) {
		t.Errorf("expected logo field error, body %s", rec.Body.String())
	}
}

func TestServeGroup(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	g := e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")
	e.fx.CreateGroupMembership(ctx, e.user.ID, g, models.RoleMember)
	e.fx.CreatePost(ctx, g, "Kickoff")

	rec := httptest.NewRecorder()
	e.h.ServeGroup(rec, e.request(http.MethodGet, "/org/acme/groups/design", nil, &g))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Group       models.Group  `json:"group"`
		Role        string        `json:"role"`
		CanAdmin    bool          `json:"can_admin"`
		MemberCount int64         `json:"member_count"`
		Posts       []models.Post `json:"posts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Role != models.RoleMember || got.CanAdmin {
		t.Errorf("role = %q, can_admin = %v", got.Role, got.CanAdmin)
	}
	if got.MemberCount != 1 || len(got.Posts) != 1 {
		t.Errorf("member_count = %d, posts = %d", got.MemberCount, len(got.Posts))
	}
}

func TestHandleUpdate(t *testing.T) {
	tests := []struct {
		name     string
		role     string // caller's group role; "" for none
		orgAdmin bool
		form     url.Values
		want     int
		wantName string
	}{
		{"group admin renames", models.RoleAdmin, false, url.Values{"name": {"Renamed"}}, http.StatusOK, "Renamed"},
		{"org admin renames", "", true, url.Values{"name": {"By Org"}}, http.StatusOK, "By Org"},
		{"member is forbidden", models.RoleMember, false, url.Values{"name": {"Nope"}}, http.StatusForbidden, ""},
		{"taken slug conflicts", models.RoleAdmin, false, url.Values{"slug": {"taken"}}, http.StatusConflict, ""},
		{"overlong slug rejected", models.RoleAdmin, false, url.Values{"slug": {strings.Repeat("a", 65)}}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.orgAdmin = tt.orgAdmin
			ctx, cancel := testutil.TestContext()
			defer cancel()
			g := e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")
			e.fx.CreateGroup(ctx, e.org.ID, "Taken", "taken")
			if tt.role != "" {
				e.fx.CreateGroupMembership(ctx, e.user.ID, g, tt.role)
			}

			rec := httptest.NewRecorder()
			e.h.HandleUpdate(rec, postForm(e, "/org/acme/groups/design/settings", tt.form, &g))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantName == "" {
				return
			}
			stored, err := groupstore.New(e.db).GetByID(ctx, g.ID)
			if err != nil {
				t.Fatal(err)
			}
			if stored.Name != tt.wantName || stored.Slug != "design" {
				t.Errorf("stored = %q/%q", stored.Name, stored.Slug)
			}
		})
	}
}

func TestHandleUpdate_ClearLogo(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	g := e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")
	e.fx.CreateGroupMembership(ctx, e.user.ID, g, models.RoleAdmin)

	store := groupstore.New(e.db)
	url1, err := logostore.Upload(ctx, e.h.Logos, "a.png", bytes.NewReader(pngBytes), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	g, err = store.Update(ctx, g.ID, groupstore.Update{Logo: groupstore.LogoReplace, LogoURL: url1})
	if err != nil {
		t.Fatal(err)
	}

	body, ct := multipartLogo(t, nil, "CLEAR_LOGO", "application/octet-stream", nil)
	req := e.request(http.MethodPost, "/org/acme/groups/design/settings", body, &g)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.h.HandleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	stored, _ := store.GetByID(ctx, g.ID)
	if stored.LogoURL != "" {
		t.Errorf("LogoURL = %q, want empty", stored.LogoURL)
	}
	onDisk := filepath.Join(e.logoDir, filepath.FromSlash(strings.TrimPrefix(url1, "/logos/")))
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Errorf("old logo should be deleted, stat err = %v", err)
	}
}

func TestHandleDelete(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	g := e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")
	other := e.fx.CreateUser(ctx, "user_2", "Sam")
	e.fx.CreateGroupMembership(ctx, e.user.ID, g, models.RoleAdmin)
	e.fx.CreateGroupMembership(ctx, other.ID, g, models.RoleMember)
	e.fx.CreatePost(ctx, g, "one")
	e.fx.CreatePost(ctx, g, "two")

	rec := httptest.NewRecorder()
	e.h.HandleDelete(rec, e.request(http.MethodDelete, "/org/acme/groups/design", nil, &g))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Deleted map[string]int64 `json:"deleted"`
	}
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Deleted["groups"] != 1 || got.Deleted["memberships"] != 2 || got.Deleted["posts"] != 2 {
		t.Errorf("deleted = %v", got.Deleted)
	}
	if _, err := groupstore.New(e.db).GetByID(ctx, g.ID); err != groupstore.ErrNotFound {
		t.Errorf("group still present: %v", err)
	}
}

func TestHandleDelete_MemberForbidden(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	g := e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")
	e.fx.CreateGroupMembership(ctx, e.user.ID, g, models.RoleMember)

	rec := httptest.NewRecorder()
	e.h.HandleDelete(rec, e.request(http.MethodDelete, "/org/acme/groups/design", nil, &g))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if _, err := groupstore.New(e.db).GetByID(ctx, g.ID); err != nil {
		t.Errorf("group should survive: %v", err)
	}
}

func TestHandleLeave(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	g := e.fx.CreateGroup(ctx, e.org.ID, "Design", "design")
	e.fx.CreateGroupMembership(ctx, e.user.ID, g, models.RoleAdmin)

	rec := httptest.NewRecorder()
	e.h.HandleLeave(rec, e.request(http.MethodPost, "/org/acme/groups/design/leave", nil, &g))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	exists, _ := membershipstore.New(e.db).Exists(ctx, g.ID, e.user.ID)
	if exists {
		t.Error("membership should be removed")
	}

	// Leaving twice: no longer a member.
	rec = httptest.NewRecorder()
	e.h.HandleLeave(rec, e.request(http.MethodPost, "/org/acme/groups/design/leave", nil, &g))
	if rec.Code != http.StatusForbidden {
		t.Errorf("second leave status = %d, want 403", rec.Code)
	}
}
