package cache

import (
	"context"
	"time"
	"weak"

	"github.com/mkuznets/fluidcache/internal/singleflight"
	"github.com/mkuznets/fluidcache/internal/util"
)

// lockTimeout bounds every index reader-writer lock acquisition (spec §5).
const lockTimeout = 30 * time.Second

// LoaderFunc loads the value for a key on an index miss. It may fail; a
// failed load short-circuits to a zero value and a *LoaderFailureError.
type LoaderFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// KeyFunc extracts an index's key from a value. It must be total,
// deterministic, and pure: it is invoked under the index's writer lock
// and during rebuild.
type KeyFunc[T any, K comparable] func(value T) K

// Index is a named view of a Cache keyed by K. It holds a map from K to a
// weak reference to a node, guarded by a bounded reader-writer lock.
// Because the map may retain dead weak references, physical size can
// exceed logical size until the next rebuild.
type Index[T any, K comparable] struct {
	name    string
	getKey  KeyFunc[T, K]
	loader  LoaderFunc[K, T]
	cache   *Cache[T]
	mgr     *manager[T]
	sf      singleflight.Group[K, T]
	lock    util.TimedRWMutex
	m       map[K]weak.Pointer[node[T]]
	metrics Metrics
}

func newIndex[T any, K comparable](c *Cache[T], name string, getKey KeyFunc[T, K], loader LoaderFunc[K, T]) *Index[T, K] {
	return &Index[T, K]{
		name:    name,
		getKey:  getKey,
		loader:  loader,
		cache:   c,
		mgr:     c.mgr,
		m:       make(map[K]weak.Pointer[node[T]]),
		metrics: c.opt.Metrics,
	}
}

func (ix *Index[T, K]) indexName() string { return ix.name }

// getNode looks up key and resolves its weak reference. A dead entry
// (the node was collected) is left in place; rebuild collects it.
func (ix *Index[T, K]) getNode(key K) (*node[T], error) {
	if err := ix.lock.RLockTimeout(lockTimeout); err != nil {
		ix.metrics.LockTimeout("get")
		return nil, ErrLockTimeout
	}
	defer ix.lock.RUnlock()

	wp, ok := ix.m[key]
	if !ok {
		return nil, nil
	}
	return wp.Value(), nil
}

// findItem is getNode(getKey(value)).
func (ix *Index[T, K]) findItem(value T) (*node[T], error) {
	return ix.getNode(ix.getKey(value))
}

// insert associates n's key with n, overwriting unconditionally. It
// reports whether the key was already present, the duplicate signal the
// cache façade's totalCount bookkeeping relies on.
func (ix *Index[T, K]) insert(n *node[T]) (existed bool, err error) {
	v, ok := n.currentValue()
	if !ok {
		return false, nil
	}
	k := ix.getKey(v)

	if err := ix.lock.LockTimeout(lockTimeout); err != nil {
		ix.metrics.LockTimeout("add")
		return false, ErrLockTimeout
	}
	defer ix.lock.Unlock()

	_, existed = ix.m[k]
	ix.m[k] = weak.Make(n)
	return existed, nil
}

// Remove deletes key if present, removing its node from the Lifespan
// Manager.
func (ix *Index[T, K]) Remove(key K) error {
	if err := ix.lock.LockTimeout(lockTimeout); err != nil {
		ix.metrics.LockTimeout("remove")
		return ErrLockTimeout
	}
	defer ix.lock.Unlock()

	if wp, ok := ix.m[key]; ok {
		if n := wp.Value(); n != nil {
			ix.mgr.remove(n)
		}
		delete(ix.m, key)
	}
	return nil
}

func (ix *Index[T, K]) clear() error {
	if err := ix.lock.LockTimeout(lockTimeout); err != nil {
		ix.metrics.LockTimeout("clear")
		return ErrLockTimeout
	}
	defer ix.lock.Unlock()
	ix.m = make(map[K]weak.Pointer[node[T]])
	return nil
}

// rebuildLocked clears the map and re-populates it from the manager's
// live enumeration. Called with the manager mutex held (lock order:
// manager, then this index's own writer lock).
func (ix *Index[T, K]) rebuildLocked(enumerate func(yield func(*node[T]) bool)) int {
	if err := ix.lock.LockTimeout(lockTimeout); err != nil {
		ix.metrics.LockTimeout("rebuild")
		return len(ix.m)
	}
	defer ix.lock.Unlock()

	ix.m = make(map[K]weak.Pointer[node[T]])
	enumerate(func(n *node[T]) bool {
		v, ok := n.currentValue()
		if !ok {
			return true
		}
		ix.m[ix.getKey(v)] = weak.Make(n)
		return true
	})
	return len(ix.m)
}

// GetItem returns the value for key. On a hit, the underlying node is
// touched (promoted to the current bag). On a miss, the effective loader
// (loaderOverride if non-nil, else the index's default loader) is
// invoked; concurrent misses for the same key are coalesced so the
// loader runs once. A successful load flows through Cache.Add, which
// re-populates every registered index. If there is no effective loader,
// GetItem returns the zero value and a nil error.
func (ix *Index[T, K]) GetItem(ctx context.Context, key K, loaderOverride LoaderFunc[K, T]) (T, error) {
	var zero T

	n, err := ix.getNode(key)
	if err != nil {
		return zero, err
	}
	if n != nil {
		if v, ok := n.currentValue(); ok {
			ix.mgr.touch(n)
			return v, nil
		}
	}

	loader := loaderOverride
	if loader == nil {
		loader = ix.loader
	}
	if loader == nil {
		return zero, nil
	}

	v, err := ix.sf.Do(ctx, key, func() (T, error) {
		// Double-check: another goroutine may have loaded and inserted
		// this key while we were queued behind the singleflight group.
		if n2, _ := ix.getNode(key); n2 != nil {
			if v2, ok := n2.currentValue(); ok {
				ix.mgr.touch(n2)
				return v2, nil
			}
		}
		return loader(ctx, key)
	})
	if err != nil {
		return zero, &LoaderFailureError{Index: ix.name, Key: key, Err: err}
	}

	ix.cache.Add(v)
	return v, nil
}

// AddIndex registers a new named index on c, keyed by K, and rebuilds it
// immediately against existing content. name must be unique.
func AddIndex[T any, K comparable](c *Cache[T], name string, getKey KeyFunc[T, K], loader LoaderFunc[K, T]) (*Index[T, K], error) {
	c.indexesMu.Lock()
	if _, exists := c.indexes[name]; exists {
		c.indexesMu.Unlock()
		return nil, ErrIndexExists
	}
	ix := newIndex(c, name, getKey, loader)
	c.indexes[name] = ix
	c.indexesMu.Unlock()

	c.mgr.registerIndex(ix)
	return ix, nil
}

// GetIndex returns the named index if it was registered with key type K,
// and whether it was found (a name registered with a different K reports
// not-found).
func GetIndex[T any, K comparable](c *Cache[T], name string) (*Index[T, K], bool) {
	c.indexesMu.Lock()
	defer c.indexesMu.Unlock()
	h, ok := c.indexes[name]
	if !ok {
		return nil, false
	}
	ix, ok := h.(*Index[T, K])
	return ix, ok
}

// Get is a convenience wrapper equivalent to GetIndex followed by
// GetItem. It reports false if no index is registered under name with
// key type K.
func Get[T any, K comparable](ctx context.Context, c *Cache[T], name string, key K, loaderOverride LoaderFunc[K, T]) (T, bool, error) {
	ix, ok := GetIndex[T, K](c, name)
	if !ok {
		var zero T
		return zero, false, nil
	}
	v, err := ix.GetItem(ctx, key, loaderOverride)
	return v, true, err
}
