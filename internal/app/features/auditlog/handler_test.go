package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uierrors "github.com/dalemusser/grouphub/internal/app/features/errors"
	"github.com/dalemusser/grouphub/internal/app/features/auditlog"
	"github.com/dalemusser/grouphub/internal/app/store/audit"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type listResponse struct {
	Events []struct {
		EventType string `json:"event_type"`
		Category  string `json:"category"`
		Actor     *struct {
			Name string `json:"name"`
		} `json:"actor"`
		Group *struct {
			Name string `json:"name"`
		} `json:"group"`
	} `json:"events"`
	Page struct {
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
		HasNext    bool  `json:"has_next"`
	} `json:"page"`
}

type env struct {
	db    *mongo.Database
	h     *auditlog.Handler
	org   models.Organization
	actor models.User
	group models.Group
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := zap.NewNop()
	e := &env{
		db:    db,
		h:     auditlog.NewHandler(db, uierrors.NewErrorLogger(logger), logger),
		org:   fx.CreateOrganization(ctx, "Acme"),
		actor: fx.CreateUser(ctx, "user_1", "Pat Admin"),
	}
	e.group = fx.CreateGroup(ctx, e.org.ID, "Design", "design")
	other := fx.CreateOrganization(ctx, "Globex")

	store := audit.New(db)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, ev := range []audit.Event{
		{OrganizationID: &e.org.ID, Category: audit.CategoryAdmin, EventType: audit.EventGroupCreated, ActorID: &e.actor.ID, GroupID: &e.group.ID, Success: true},
		{OrganizationID: &e.org.ID, Category: audit.CategoryAdmin, EventType: audit.EventMemberAdded, ActorID: &e.actor.ID, GroupID: &e.group.ID, Success: true},
		{OrganizationID: &e.org.ID, Category: audit.CategorySecurity, EventType: audit.EventAccessDenied, ActorID: &e.actor.ID, FailureReason: "forbidden"},
		{OrganizationID: &other.ID, Category: audit.CategoryAdmin, EventType: audit.EventGroupCreated, Success: true},
	} {
		ev.Timestamp = base.Add(time.Duration(i) * 24 * time.Hour)
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("seed audit event: %v", err)
		}
	}
	return e
}

func (e *env) get(t *testing.T, target string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	s := auth.Session{UserID: e.actor.ExternalID, OrgID: e.org.ExternalID, OrgSlug: e.org.Slug, IsAdmin: admin}
	r := auth.WithTestSession(httptest.NewRequest(http.MethodGet, target, nil), s)
	r = authz.WithScope(r, authz.NewScope(s, e.actor, e.org, membershipstore.New(e.db)))
	rec := httptest.NewRecorder()
	e.h.ServeList(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var got listResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestServeList_ScopedToOrganization(t *testing.T) {
	e := newEnv(t)

	rec := e.get(t, "/org/acme/audit", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got.Page.Total != 3 || len(got.Events) != 3 {
		t.Fatalf("total = %d, events = %d, want 3", got.Page.Total, len(got.Events))
	}
	newest := got.Events[0]
	if newest.EventType != audit.EventAccessDenied {
		t.Errorf("newest event = %q, want %q", newest.EventType, audit.EventAccessDenied)
	}
	oldest := got.Events[2]
	if oldest.Actor == nil || oldest.Actor.Name != "Pat Admin" {
		t.Errorf("actor = %+v, want resolved name", oldest.Actor)
	}
	if oldest.Group == nil || oldest.Group.Name != "Design" {
		t.Errorf("group = %+v, want resolved name", oldest.Group)
	}
}

func TestServeList_Filters(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"category", "?category=security", 1},
		{"event type", "?event_type=member_added_to_group", 1},
		{"group", "?group_id=" + e.group.ID.Hex(), 2},
		{"date range", "?start_date=2026-03-11&end_date=2026-03-11", 1},
		{"unknown group", "?group_id=" + primitive.NewObjectID().Hex(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.get(t, "/org/acme/audit"+tt.query, true)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if got := decode(t, rec); got.Page.Total != tt.want {
				t.Errorf("total = %d, want %d", got.Page.Total, tt.want)
			}
		})
	}
}

func TestServeList_Paging(t *testing.T) {
	e := newEnv(t)

	got := decode(t, e.get(t, "/org/acme/audit?per_page=2", true))
	if len(got.Events) != 2 || got.Page.TotalPages != 2 || !got.Page.HasNext {
		t.Errorf("first page = %d events, %+v", len(got.Events), got.Page)
	}
	got = decode(t, e.get(t, "/org/acme/audit?per_page=2&page=2", true))
	if len(got.Events) != 1 || got.Page.HasNext {
		t.Errorf("second page = %d events, %+v", len(got.Events), got.Page)
	}
}

func TestServeList_Rejections(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		target string
		admin  bool
		want   int
	}{
		{"not an org admin", "/org/acme/audit", false, http.StatusForbidden},
		{"unknown category", "/org/acme/audit?category=billing", true, http.StatusBadRequest},
		{"bad group id", "/org/acme/audit?group_id=xyz", true, http.StatusBadRequest},
		{"bad date", "/org/acme/audit?start_date=03/10/2026", true, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.get(t, tt.target, tt.admin); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
