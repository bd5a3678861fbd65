package cache

// Metrics exposes Lifespan Manager observability hooks. A NoopMetrics
// implementation is provided and used by default; see metrics/prom for a
// Prometheus-backed adapter.
type Metrics interface {
	// Touch is called every time a node is touched (both the fast
	// reassign-only path and the first-attach path).
	Touch()
	// NodeCreated is called when Add constructs a genuinely new node.
	NodeCreated()
	// NodeRemoved is called when a node is explicitly removed via an index.
	NodeRemoved()
	// BagSwept is called once per bag processed by cleanUp, reporting how
	// many nodes it classified as stale (evicted for age or capacity).
	BagSwept(evicted int)
	// Cleared is called when the manager performs a full clear, whether
	// triggered by the cache façade or by a failing validity predicate.
	Cleared()
	// IndexRebuilt is called after an index rebuild completes, reporting
	// its name and the resulting physical size.
	IndexRebuilt(name string, size int)
	// LockTimeout is called when a bounded index lock acquisition times out,
	// tagged with the operation that attempted it (e.g. "get", "add").
	LockTimeout(op string)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Touch()                          {}
func (NoopMetrics) NodeCreated()                    {}
func (NoopMetrics) NodeRemoved()                    {}
func (NoopMetrics) BagSwept(evicted int)            {}
func (NoopMetrics) Cleared()                        {}
func (NoopMetrics) IndexRebuilt(name string, n int) {}
func (NoopMetrics) LockTimeout(op string)           {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
