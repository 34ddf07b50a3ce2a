package poststore_test

import (
	"errors"
	"testing"
	"time"

	poststore "github.com/dalemusser/grouphub/internal/app/store/posts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/dalemusser/grouphub/internal/testutil"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Org")
	group := fixtures.CreateGroup(ctx, org.ID, "G", "g")

	created, err := store.Create(ctx, group, models.Post{Title: "Hello", Content: "<p>World</p>"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.GroupID != group.ID || created.OrgID != org.ID {
		t.Errorf("ownership: got group %v org %v", created.GroupID, created.OrgID)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Hello" {
		t.Errorf("Title: got %q, want %q", got.Title, "Hello")
	}
}

func TestStore_ListByGroup_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Org")
	group := fixtures.CreateGroup(ctx, org.ID, "G", "g")

	if _, err := store.Create(ctx, group, models.Post{Title: "older"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := store.Create(ctx, group, models.Post{Title: "newer"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	posts, err := store.ListByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(posts) != 2 || posts[0].Title != "newer" {
		t.Errorf("got %+v, want newer first", posts)
	}
}

func TestStore_ListByOrg_IncludesGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Org")
	other := fixtures.CreateOrganization(ctx, "Other")
	g1 := fixtures.CreateGroup(ctx, org.ID, "One", "one")
	g2 := fixtures.CreateGroup(ctx, org.ID, "Two", "two")
	g3 := fixtures.CreateGroup(ctx, other.ID, "Three", "three")
	fixtures.CreatePost(ctx, g1, "a")
	fixtures.CreatePost(ctx, g2, "b")
	fixtures.CreatePost(ctx, g3, "c")

	feed, err := store.ListByOrg(ctx, org.ID)
	if err != nil {
		t.Fatalf("ListByOrg failed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("len: got %d, want 2", len(feed))
	}
	for _, p := range feed {
		if p.Group.ID != p.GroupID {
			t.Errorf("post %q joined with wrong group %v", p.Title, p.Group.ID)
		}
		if p.Group.OrganizationID != org.ID {
			t.Errorf("post %q leaked from another org", p.Title)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := poststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Org")
	group := fixtures.CreateGroup(ctx, org.ID, "G", "g")
	p := fixtures.CreatePost(ctx, group, "bye")

	if err := store.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByID(ctx, p.ID); !errors.Is(err, poststore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, p.ID); !errors.Is(err, poststore.ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
}
