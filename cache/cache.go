package cache

import (
	"reflect"
	"sync"
)

// indexHandle is the type-erased view of an Index[T, K] the Cache façade
// needs to fan operations out across every registered index without
// knowing each one's K.
type indexHandle[T any] interface {
	rebuildable[T]
	findItem(value T) (*node[T], error)
	insert(n *node[T]) (existed bool, err error)
	clear() error
}

// Cache is a generic, in-process object cache for values of type T,
// accessed through named indexes registered with AddIndex. All methods
// are safe for concurrent use by multiple goroutines.
type Cache[T any] struct {
	mgr *manager[T]
	opt Options[T]

	indexesMu sync.Mutex
	indexes   map[string]indexHandle[T]
}

// New constructs a Cache with the given Options. Capacity must be > 0.
func New[T any](opt Options[T]) *Cache[T] {
	if opt.Capacity <= 0 {
		panic("fluidcache: Capacity must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = realClock{}
	}
	if opt.Equal == nil {
		opt.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}

	return &Cache[T]{
		mgr:     newManager(opt),
		opt:     opt,
		indexes: make(map[string]indexHandle[T]),
	}
}

// snapshotIndexes returns the currently registered indexes. Taken under
// indexesMu but iterated outside it, so Add/Clear never hold indexesMu
// while also touching an index's own lock or the manager mutex.
func (c *Cache[T]) snapshotIndexes() []indexHandle[T] {
	c.indexesMu.Lock()
	defer c.indexesMu.Unlock()
	out := make([]indexHandle[T], 0, len(c.indexes))
	for _, ix := range c.indexes {
		out = append(out, ix)
	}
	return out
}

// Add inserts value into the cache. If an existing node is already
// resident under some index's key for value (per Options.Equal), that
// node is reused (touched) and totalCount is not bumped. Otherwise the
// Lifespan Manager constructs a new node and it is inserted into every
// registered index; totalCount is incremented only when the node is
// genuinely new and no index reported its key as a duplicate.
func (c *Cache[T]) Add(value T) {
	indexes := c.snapshotIndexes()

	for _, ix := range indexes {
		existing, err := ix.findItem(value)
		if err != nil || existing == nil {
			continue
		}
		if v, ok := existing.currentValue(); ok && c.opt.Equal(v, value) {
			c.mgr.touch(existing)
			return
		}
	}

	n := c.mgr.add(value)
	duplicate := false
	for _, ix := range indexes {
		existed, err := ix.insert(n)
		if err != nil {
			continue
		}
		if existed {
			duplicate = true
		}
	}
	if !duplicate {
		c.mgr.totalCount.Add(1)
	}
}

// Clear empties every registered index and the Lifespan Manager.
func (c *Cache[T]) Clear() error {
	for _, ix := range c.snapshotIndexes() {
		if err := ix.clear(); err != nil {
			return err
		}
	}
	c.mgr.clear()
	return nil
}
