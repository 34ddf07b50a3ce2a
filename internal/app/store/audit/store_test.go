package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	event := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventGroupCreated,
		GroupID:   &groupID,
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
		Details:   map[string]string{"slug": "alpha"},
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{GroupID: &groupID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
	if got.Details["slug"] != "alpha" {
		t.Errorf("Details[slug]: got %q, want %q", got.Details["slug"], "alpha")
	}
}

func TestStore_Query_ByCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, e := range []audit.Event{
		{Category: audit.CategoryAdmin, EventType: audit.EventGroupDeleted, Success: true},
		{Category: audit.CategorySync, EventType: audit.EventUserSynced, Success: true},
		{Category: audit.CategorySync, EventType: audit.EventOrgSynced, Success: true},
	} {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategorySync})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 sync events, got %d", len(events))
	}
	for _, e := range events {
		if e.Category != audit.CategorySync {
			t.Errorf("unexpected category %q", e.Category)
		}
	}
}

func TestStore_Query_ByTimeRangeAndOffset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := store.Log(ctx, audit.Event{
			Category:  audit.CategoryAdmin,
			EventType: audit.EventPostDeleted,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	start := base.Add(90 * time.Second)
	events, err := store.Query(ctx, audit.QueryFilter{StartTime: &start})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("time range: got %d events, want 3", len(events))
	}

	page, err := store.Query(ctx, audit.QueryFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("offset page: got %d events, want 1", len(page))
	}
}

func TestStore_CountByFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, audit.Event{
			Category:       audit.CategorySecurity,
			EventType:      audit.EventWebhookRejected,
			OrganizationID: &orgID,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{OrganizationID: &orgID, EventType: audit.EventWebhookRejected})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}

	none, err := store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryAdmin})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if none != 0 {
		t.Errorf("count: got %d, want 0", none)
	}
}
