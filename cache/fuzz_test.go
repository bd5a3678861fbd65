package cache

import (
	"strings"
	"testing"
)

// Fuzz basic Add/Remove semantics through a single index under arbitrary
// string inputs. Guards against panics and checks core invariants.
func FuzzCache_AddRemove(f *testing.F) {
	f.Add("", "")
	f.Add("a", "1")
	f.Add("b", "2")
	f.Add("αβγ", "δ")
	f.Add("emoji🙂", "🙂🙂")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[user](Options[user]{Capacity: 16})
		ix, err := AddIndex[user, string](c, "name", func(u user) string { return u.Name }, nil)
		if err != nil {
			t.Fatalf("AddIndex: %v", err)
		}

		c.Add(user{ID: 0, Name: k})
		n, err := ix.getNode(k)
		if err != nil {
			t.Fatalf("getNode: %v", err)
		}
		if n == nil {
			t.Fatalf("expected node present for key %q", k)
		}
		got, ok := n.currentValue()
		if !ok || got.Name != k {
			t.Fatalf("want name %q, got %q ok=%v", k, got.Name, ok)
		}

		c.Add(user{ID: 0, Name: k})

		if err := ix.Remove(k); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if n, _ := ix.getNode(k); n != nil {
			if _, ok := n.currentValue(); ok {
				t.Fatalf("key %q must be absent after Remove", k)
			}
		}

		c.Add(user{ID: 0, Name: k})
		if n, _ := ix.getNode(k); n == nil {
			t.Fatalf("Add after Remove must succeed for %q", k)
		}
	})
}
