package organizationstore_test

import (
	"errors"
	"sync"
	"testing"

	organizationstore "github.com/dalemusser/grouphub/internal/app/store/organizations"
	"github.com/dalemusser/grouphub/internal/app/store/syncfields"
	"github.com/dalemusser/grouphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func strPtr(s string) *string { return &s }

func TestStore_Upsert_InsertsWhenAbsent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org, err := store.Upsert(ctx, "org_123", organizationstore.Fields{
		Name: strPtr("Acme"),
		Slug: strPtr("acme"),
	}, syncfields.FillMissing)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if org.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if org.ExternalID != "org_123" {
		t.Errorf("ExternalID: got %q, want %q", org.ExternalID, "org_123")
	}
	if org.Name != "Acme" || org.Slug != "acme" {
		t.Errorf("fields: got %q/%q, want Acme/acme", org.Name, org.Slug)
	}
	if org.CreatedAt.IsZero() || org.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Upsert_FillMissingLeavesExistingUnchanged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := store.Upsert(ctx, "org_1", organizationstore.Fields{Name: strPtr("Original"), Slug: strPtr("orig")}, syncfields.FillMissing)
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	second, err := store.Upsert(ctx, "org_1", organizationstore.Fields{Name: strPtr("Changed"), Slug: strPtr("changed")}, syncfields.FillMissing)
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID: got %v, want %v", second.ID, first.ID)
	}
	if second.Name != "Original" {
		t.Errorf("Name: got %q, want %q", second.Name, "Original")
	}
}

func TestStore_Upsert_OverwriteUpdatesKnownFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Upsert(ctx, "org_1", organizationstore.Fields{Name: strPtr("Old"), Slug: strPtr("old")}, syncfields.FillMissing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Slug unknown: must survive the overwrite.
	got, err := store.Upsert(ctx, "org_1", organizationstore.Fields{Name: strPtr("New")}, syncfields.Overwrite)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if got.Name != "New" {
		t.Errorf("Name: got %q, want %q", got.Name, "New")
	}
	if got.Slug != "old" {
		t.Errorf("Slug: got %q, want %q", got.Slug, "old")
	}
}

func TestStore_Upsert_ConcurrentCallsYieldOneRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Upsert(ctx, "org_race", organizationstore.Fields{Name: strPtr("Race")}, syncfields.FillMissing)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count: got %d, want 1", n)
	}
}

func TestStore_GetByExternalID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByExternalID(ctx, "missing")
	if !errors.Is(err, organizationstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetBySlug(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	want, err := store.Upsert(ctx, "org_s", organizationstore.Fields{Name: strPtr("Slugged"), Slug: strPtr("slugged")}, syncfields.Overwrite)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetBySlug(ctx, "slugged")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID: got %v, want %v", got.ID, want.ID)
	}
}

func TestStore_DeleteByExternalID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Upsert(ctx, "org_del", organizationstore.Fields{Name: strPtr("Doomed")}, syncfields.Overwrite)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	deleted, err := store.DeleteByExternalID(ctx, "org_del")
	if err != nil {
		t.Fatalf("DeleteByExternalID failed: %v", err)
	}
	if deleted.ID != created.ID {
		t.Errorf("deleted ID: got %v, want %v", deleted.ID, created.ID)
	}

	if _, err := store.DeleteByExternalID(ctx, "org_del"); !errors.Is(err, organizationstore.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
