package cache

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkuznets/fluidcache/internal/util"
)

// maxGenerationBeforeForcedClear bounds how long a manager runs before it
// forces a full clear regardless of the validity predicate, so a
// long-running process never accumulates an unbounded generation count.
const maxGenerationBeforeForcedClear = 1_000_000

// rebuildable is the type-erased view of an Index[T, K] the manager needs
// to drive rebuilds without knowing K. It is implemented by *Index[T, K].
type rebuildable[T any] interface {
	rebuildLocked(enumerate func(yield func(*node[T]) bool)) int
	indexName() string
}

// manager is the Lifespan Manager: it owns the bag ring, the
// current/oldest generation pointers, the cleanup state machine, and the
// single mutex guarding generation transitions.
type manager[T any] struct {
	mu sync.Mutex // coarse lock: guards ring contents and generation transitions

	ring       *bagRing[T]
	current    int64 // guarded by mu
	oldest     int64 // guarded by mu
	currentBag atomic.Pointer[ageBag[T]]

	currentSize    atomic.Int64 // items touched into currentBag since it opened
	nextValidCheck atomic.Int64 // unix nano deadline for the next maintenance sweep

	minAge       time.Duration
	maxAge       time.Duration
	timeSlice    time.Duration
	capacity     int64
	bagItemLimit int64

	curCount   util.PaddedAtomicInt64
	totalCount util.PaddedAtomicInt64

	validity func() bool
	clock    Clock
	metrics  Metrics

	indexes []rebuildable[T] // guarded by mu
}

func newManager[T any](opt Options[T]) *manager[T] {
	maxAge := opt.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if maxAge > maxAgeClamp {
		maxAge = maxAgeClamp
	}
	minAge := opt.MinAge
	if minAge <= 0 {
		minAge = defaultMinAge
	}
	if minAge >= maxAge {
		minAge = maxAge / 2
	}

	bagItemLimit := int64(opt.Capacity) / 20
	if bagItemLimit < 1 {
		bagItemLimit = 1
	}

	m := &manager[T]{
		ring:         newBagRing[T](),
		minAge:       minAge,
		maxAge:       maxAge,
		timeSlice:    maxAge / 240,
		capacity:     int64(opt.Capacity),
		bagItemLimit: bagItemLimit,
		validity:     opt.Validity,
		clock:        opt.Clock,
		metrics:      opt.Metrics,
	}
	m.current = -1 // openNewBagLocked will move this to generation 0
	m.mu.Lock()
	m.openNewBagLocked(m.now())
	m.mu.Unlock()
	return m
}

func (m *manager[T]) now() int64 { return m.clock.NowUnixNano() }

// add constructs a new node for v and touches it into the current bag.
// curCount is incremented exactly once, by touch's attach branch — not
// here — resolving the reference implementation's double-count defect.
func (m *manager[T]) add(v T) *node[T] {
	n := newNode(v)
	m.touch(n)
	m.metrics.NodeCreated()
	return n
}

// touch attaches an unmanaged node to the current bag (double-checked
// under the mutex), then unconditionally reassigns its bag pointer to the
// current bag without unlinking it from wherever it is physically
// chained. Physical relocation of "touched-away" nodes happens lazily,
// during the next cleanup sweep of their old bag.
func (m *manager[T]) touch(n *node[T]) {
	if n.bag.Load() == nil {
		m.mu.Lock()
		if n.bag.Load() == nil {
			cb := m.currentBag.Load()
			n.next = cb.first
			cb.first = n
			n.bag.Store(cb)
			m.curCount.Add(1)
		}
		m.mu.Unlock()
	}
	n.bag.Store(m.currentBag.Load())
	m.currentSize.Add(1)
	m.metrics.Touch()
	m.checkValid()
}

// remove marks n as logically removed. It stays in its bag's chain,
// untouched, until the next sweep classifies it as tombstoned.
func (m *manager[T]) remove(n *node[T]) {
	if n.bag.Load() != nil && n.value.Load() != nil {
		m.curCount.Add(-1)
	}
	n.value.Store(nil)
	n.bag.Store(nil)
	m.metrics.NodeRemoved()
}

// checkValid is invoked on every touch. It never blocks: if maintenance
// is due but the mutex is already held, another goroutine is already
// sweeping (or will on its next touch), so this call simply returns.
func (m *manager[T]) checkValid() {
	now := m.now()
	if m.currentSize.Load() <= m.bagItemLimit && now <= m.nextValidCheck.Load() {
		return
	}
	if !m.mu.TryLock() {
		return
	}
	defer m.mu.Unlock()

	// Re-check under the lock: another goroutine may have just swept.
	if m.currentSize.Load() <= m.bagItemLimit && now <= m.nextValidCheck.Load() {
		return
	}

	if m.current > maxGenerationBeforeForcedClear || (m.validity != nil && !m.validity()) {
		m.clearLocked()
		// Rebuilding against the now-empty ring empties every index, so no
		// detached value can still be served through an index entry.
		m.rebuildAllLocked()
		return
	}
	m.cleanUpLocked(now)
}

// cleanUpLocked sweeps bags from oldest forward while any eviction
// condition holds, classifying every node it finds, then always opens a
// fresh current bag and checks whether indexes need rebuilding. Must be
// called with mu held.
func (m *manager[T]) cleanUpLocked(now int64) {
	maxAgeCutoff := now - m.maxAge.Nanoseconds()
	minAgeCutoff := now - m.minAge.Nanoseconds()
	itemsToRemove := m.curCount.Load() - m.capacity

	for m.current != m.oldest {
		bag, err := m.ring.at(m.oldest)
		if err != nil {
			break
		}

		nearlyFull := m.current-m.oldest > ringSize-5
		tooOld := bag.startTime < maxAgeCutoff
		overCapacity := itemsToRemove > 0 && !(bag.stopTime > minAgeCutoff)
		if !nearlyFull && !tooOld && !overCapacity {
			break
		}

		evicted := 0
		n := bag.first
		bag.first = nil
		for n != nil {
			next := n.next
			n.next = nil
			evicted += m.classifyLocked(n, bag, &itemsToRemove)
			n = next
		}
		m.metrics.BagSwept(evicted)
		m.oldest++
	}

	m.openNewBagLocked(now)
	m.checkIndexValidLocked()
}

// classifyLocked handles one node found while sweeping bag. It returns 1
// if the node was evicted as stale, 0 otherwise. Any classification
// anomaly (e.g. a node with a nil bag mid-chain) is defensively tolerated
// by falling into the tombstoned branch.
func (m *manager[T]) classifyLocked(n *node[T], bag *ageBag[T], itemsToRemove *int64) int {
	val := n.value.Load()
	curBag := n.bag.Load()

	switch {
	case val != nil && curBag == bag:
		// stale: not touched since this bag closed.
		n.bag.Store(nil)
		m.curCount.Add(-1)
		*itemsToRemove++
		return 1
	case val != nil && curBag != nil && curBag != bag:
		// migrated: touched into a newer bag; physically catch up now.
		n.next = curBag.first
		curBag.first = n
		return 0
	default:
		// tombstoned: value == nil, or already unmanaged. Drop silently;
		// remove() already accounted for it.
		return 0
	}
}

// openNewBagLocked closes the current bag, opens generation current+1 as
// the new current bag, and resets the per-bag counters. Must be called
// with mu held.
func (m *manager[T]) openNewBagLocked(now int64) {
	if m.current == math.MaxInt64 {
		panic(ErrBagNumberOverflow)
	}
	next := m.current + 1
	bag, err := m.ring.at(next)
	if err != nil {
		panic(err)
	}
	if cb := m.currentBag.Load(); cb != nil {
		cb.stopTime = now
	}
	bag.startTime = now
	bag.stopTime = 0
	bag.first = nil

	m.current = next
	m.currentBag.Store(bag)
	m.currentSize.Store(0)
	m.nextValidCheck.Store(now + m.timeSlice.Nanoseconds())
}

// checkIndexValidLocked rebuilds every registered index once the
// cumulative dead-weak-reference overhead exceeds capacity.
func (m *manager[T]) checkIndexValidLocked() {
	if m.totalCount.Load()-m.curCount.Load() > m.capacity {
		m.rebuildAllLocked()
	}
}

func (m *manager[T]) rebuildAllLocked() {
	for _, ix := range m.indexes {
		n := ix.rebuildLocked(m.enumerateLocked)
		m.metrics.IndexRebuilt(ix.indexName(), n)
	}
	m.totalCount.Store(m.curCount.Load())
}

// clear resets the manager to its initial state: every bag is emptied,
// counters reset, and a fresh generation 0 is opened.
func (m *manager[T]) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *manager[T]) clearLocked() {
	m.ring.empty(func(n *node[T]) {
		n.next = nil
		n.bag.Store(nil)
	})
	m.curCount.Store(0)
	m.totalCount.Store(0)
	m.oldest = 0
	m.current = -1
	m.openNewBagLocked(m.now())
	m.metrics.Cleared()
}

// registerIndex appends ix to the set of indexes the manager rebuilds,
// then immediately rebuilds it against existing content. Lock order:
// manager mutex, then the index's own writer lock (taken inside
// rebuildLocked) — never the reverse.
func (m *manager[T]) registerIndex(ix rebuildable[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes = append(m.indexes, ix)
	n := ix.rebuildLocked(m.enumerateLocked)
	m.metrics.IndexRebuilt(ix.indexName(), n)
}

// enumerateLocked yields every live node, from the current generation
// down to the oldest. Must be called with mu held (either directly, or
// transitively through cleanUpLocked/registerIndex/rebuildAllLocked) so
// the ring's structure is pinned for the duration of the walk.
func (m *manager[T]) enumerateLocked(yield func(*node[T]) bool) {
	for gen := m.current; gen >= m.oldest; gen-- {
		bag, err := m.ring.at(gen)
		if err != nil {
			continue
		}
		for n := bag.first; bag.first != nil && n != nil; n = n.next {
			if n.value.Load() == nil {
				continue
			}
			if !yield(n) {
				return
			}
		}
	}
}
