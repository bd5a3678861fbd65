// Package cache provides a generic, in-process object cache for
// long-lived values of a single type T, accessed through one or more
// named indexes keyed by an arbitrary comparable type.
//
// Design
//
//   - Core: a Lifespan Manager (manager.go) — a time-sliced, generational
//     approximation of LRU. Items live in Node values (node.go) that are
//     chained into AgeBag buckets (agebag.go) addressed by generation
//     number through a fixed-size OrderedBagRing (ring.go). A single
//     coarse mutex on the manager guards generation transitions; the hot
//     touch path only takes that lock when a node needs its first
//     physical attach, and cooperative maintenance sweeps use a
//     non-blocking try-lock so they never stall a reader.
//
//   - Indexes: each named Index[T, K] (index.go) is a map from K to a
//     weak reference to a Node, guarded by its own bounded reader-writer
//     lock. Indexes never hold the only strong reference to a Node — that
//     reference lives in the AgeBag chain — so an item that falls out of
//     every bag becomes eligible for garbage collection even while an
//     index's map still has a (now-dead) weak entry pointing at it.
//     Fetching that key again before collection resurrects the Node by
//     touching it back into the current bag.
//
//   - Cache façade (cache.go): constructs the manager, holds the named
//     indexes registered with AddIndex, and dispatches Add/Clear,
//     deduplicating adds that land on an already-cached value. Removal
//     goes through Index.Remove.
//
//   - Age/capacity: bounded by MinAge (protects recently touched items
//     from capacity eviction) and MaxAge (hard age cutoff), not by a
//     strict LRU order — see Options.
//
//   - Metrics: Options.Metrics receives touch/create/remove/sweep/clear/
//     rebuild/lock-timeout signals. By default NoopMetrics is used; the
//     metrics/prom subpackage adapts these into Prometheus collectors.
//
// Basic usage
//
//	c := cache.New[User](cache.Options[User]{
//	    Capacity: 10_000,
//	    MinAge:   time.Minute,
//	    MaxAge:   10 * time.Minute,
//	})
//	byID, err := cache.AddIndex(c, "byID", func(u User) int { return u.ID },
//	    func(ctx context.Context, id int) (User, error) { return loadUser(ctx, id) })
//	u, err := byID.GetItem(context.Background(), 42, nil)
//
// Exporting metrics (example Prometheus adapter)
//
//	m := prom.New(nil, "fluidcache", "users", nil) // implements cache.Metrics
//	c := cache.New[User](cache.Options[User]{Capacity: 10_000, Metrics: m})
//
// # Thread-safety
//
// All exported methods are safe for concurrent use. Touch/Get are amortized
// O(1); cleanup sweeps are O(items in the swept bag) and run cooperatively:
// a touch that finds maintenance due never waits for the manager mutex to
// start one. A touch that must attach a node, and an index access that
// meets a rebuild, do wait while a sweep is running.
package cache
