package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joestump/joe-marks/internal/testutil"
)

// newTestEnv returns a BookmarkStore with a controllable clock and two users.
func newTestEnv(t *testing.T) (*BookmarkStore, *time.Time, string, string) {
	t.Helper()
	db := testutil.NewTestDB(t)
	alice := testutil.SeedUser(t, db, "alice@example.com")
	bob := testutil.SeedUser(t, db, "bob@example.com")

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	bs := NewBookmarkStore(db)
	bs.now = func() time.Time { return clock }
	return bs, &clock, alice, bob
}

func TestBookmarkStore_Create(t *testing.T) {
	bs, _, alice, _ := newTestEnv(t)
	ctx := context.Background()

	b, err := bs.Create(ctx, alice, "  Go  ", " https://go.dev ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID == "" {
		t.Error("expected non-empty ID")
	}
	if b.Title != "Go" {
		t.Errorf("title = %q, want %q", b.Title, "Go")
	}
	if b.URL != "https://go.dev" {
		t.Errorf("url = %q, want %q", b.URL, "https://go.dev")
	}
	if b.OwnerID != alice {
		t.Errorf("owner = %q, want %q", b.OwnerID, alice)
	}
	if b.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestBookmarkStore_Create_Invalid(t *testing.T) {
	bs, _, alice, _ := newTestEnv(t)
	ctx := context.Background()

	if _, err := bs.Create(ctx, alice, "", "https://go.dev"); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("Create(empty title) = %v, want ErrInvalidTitle", err)
	}
	if _, err := bs.Create(ctx, alice, "Go", "not-a-url"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Create(bad url) = %v, want ErrInvalidURL", err)
	}

	items, err := bs.ListByOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0 after rejected creates", len(items))
	}
}

func TestBookmarkStore_ListByOwner_NewestFirst(t *testing.T) {
	bs, clock, alice, bob := newTestEnv(t)
	ctx := context.Background()

	mustCreate := func(owner, title string) {
		t.Helper()
		if _, err := bs.Create(ctx, owner, title, "https://"+title+".example.com"); err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
	}

	mustCreate(alice, "a")
	*clock = clock.Add(time.Minute)
	mustCreate(alice, "b")
	// Same timestamp as b: insertion order breaks the tie, latest first.
	mustCreate(alice, "c")
	mustCreate(bob, "foreign")

	items, err := bs.ListByOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	var got []string
	for _, b := range items {
		got = append(got, b.Title)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("titles = %v, want %v", got, want)
		}
	}
}

func TestBookmarkStore_ListByOwner_Empty(t *testing.T) {
	bs, _, alice, _ := newTestEnv(t)

	items, err := bs.ListByOwner(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %v, want empty non-nil slice", items)
	}
}

func TestBookmarkStore_Delete(t *testing.T) {
	bs, _, alice, bob := newTestEnv(t)
	ctx := context.Background()

	b, err := bs.Create(ctx, alice, "Go", "https://go.dev")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Another owner cannot see or delete it.
	if _, err := bs.Delete(ctx, b.ID, bob); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(foreign) = %v, want ErrNotFound", err)
	}
	if _, err := bs.GetByID(ctx, b.ID, bob); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(foreign) = %v, want ErrNotFound", err)
	}

	deleted, err := bs.Delete(ctx, b.ID, alice)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != b.ID || deleted.OwnerID != alice {
		t.Errorf("deleted = %+v, want id %q owner %q", deleted, b.ID, alice)
	}

	if _, err := bs.Delete(ctx, b.ID, alice); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestBookmarkStore_CountAll(t *testing.T) {
	bs, _, alice, bob := newTestEnv(t)
	ctx := context.Background()

	for _, owner := range []string{alice, alice, bob} {
		if _, err := bs.Create(ctx, owner, "x", "https://x.example.com"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	n, err := bs.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll: %v", err)
	}
	if n != 3 {
		t.Errorf("CountAll = %d, want 3", n)
	}
}
