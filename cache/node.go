package cache

import "sync/atomic"

// node is a cache entry wrapping one value of type T. It is linked into
// exactly one AgeBag's chain at a time (via next, mutated only under the
// manager mutex) and is reachable from indexes only through a weak
// reference; the only strong reference to a node is the chain link that
// holds it.
//
// value and bag are read/written without the manager mutex on the
// touch/get hot paths (see manager.touch), so both are atomic pointers.
type node[T any] struct {
	value atomic.Pointer[T]         // nil means logically removed
	bag   atomic.Pointer[ageBag[T]] // nil iff unmanaged
	next  *node[T]                  // next node in its bag's chain; owned by manager.mu
}

func newNode[T any](v T) *node[T] {
	n := &node[T]{}
	n.value.Store(&v)
	return n
}

// currentValue returns the node's value and whether it is still live
// (i.e. not logically removed).
func (n *node[T]) currentValue() (T, bool) {
	p := n.value.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
