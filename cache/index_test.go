package cache

import (
	"context"
	"testing"
)

// TestIndex_RebuildLockedDropsDead checks rebuildLocked repopulates the
// index map from a live enumeration only, dropping stale weak entries.
func TestIndex_RebuildLockedDropsDead(t *testing.T) {
	t.Parallel()

	c := New[user](Options[user]{Capacity: 16})
	ix, err := AddIndex[user, int](c, "id", byID, nil)
	if err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	c.Add(user{ID: 1, Name: "a"})
	c.Add(user{ID: 2, Name: "b"})

	n2, err := ix.getNode(2)
	if err != nil || n2 == nil {
		t.Fatalf("getNode(2): %v, %v", n2, err)
	}
	c.mgr.remove(n2)

	size := ix.rebuildLocked(c.mgr.enumerateLocked)
	if size != 1 {
		t.Fatalf("rebuildLocked size = %d, want 1", size)
	}
	if n, _ := ix.getNode(2); n != nil {
		t.Fatal("expected key 2 dropped by rebuild")
	}
	if n, _ := ix.getNode(1); n == nil {
		t.Fatal("expected key 1 to survive rebuild")
	}
}

// TestIndex_GetItemNoLoader checks a miss with no effective loader returns
// the zero value and a nil error.
func TestIndex_GetItemNoLoader(t *testing.T) {
	t.Parallel()

	c := New[user](Options[user]{Capacity: 16})
	ix, err := AddIndex[user, int](c, "id", byID, nil)
	if err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	u, err := ix.GetItem(context.Background(), 99, nil)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if u != (user{}) {
		t.Fatalf("expected zero value, got %+v", u)
	}
}

// TestIndex_GetItemLoaderOverride checks a per-call loader override takes
// precedence over the index's default loader.
func TestIndex_GetItemLoaderOverride(t *testing.T) {
	t.Parallel()

	c := New[user](Options[user]{Capacity: 16})
	ix, err := AddIndex[user, int](c, "id", byID, func(_ context.Context, id int) (user, error) {
		return user{ID: id, Name: "default"}, nil
	})
	if err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	u, err := ix.GetItem(context.Background(), 5, func(_ context.Context, id int) (user, error) {
		return user{ID: id, Name: "override"}, nil
	})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if u.Name != "override" {
		t.Fatalf("Name = %q, want override", u.Name)
	}
}

// TestGet_ConvenienceWrapper checks the package-level Get helper resolves
// the named index and delegates to GetItem.
func TestGet_ConvenienceWrapper(t *testing.T) {
	t.Parallel()

	c := New[user](Options[user]{Capacity: 16})
	if _, err := AddIndex[user, int](c, "id", byID, func(_ context.Context, id int) (user, error) {
		return user{ID: id, Name: "loaded"}, nil
	}); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	u, found, err := Get[user, int](context.Background(), c, "id", 3, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected index to be found")
	}
	if u.ID != 3 {
		t.Fatalf("ID = %d, want 3", u.ID)
	}

	if _, found, err := Get[user, string](context.Background(), c, "id", "x", nil); found || err != nil {
		t.Fatalf("expected not-found for mismatched key type, got found=%v err=%v", found, err)
	}
}
