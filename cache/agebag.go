package cache

// ageBag is a generational bucket: a singly-linked chain of nodes touched
// during one time slice, plus the open/close timestamps of that slice.
// All fields are mutated only while the owning manager's mutex is held —
// unlike node.bag, an ageBag's own fields are never read on the touch
// hot path, so they need no atomics.
type ageBag[T any] struct {
	startTime int64 // set when the bag is opened as current
	stopTime  int64 // set when the bag is closed (a newer bag opens)
	first     *node[T]
}
