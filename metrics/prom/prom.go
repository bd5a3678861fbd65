// Package prom adapts the Prometheus client library to fluidcache's
// Metrics interface.
package prom

import (
	"github.com/mkuznets/fluidcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters and
// gauges for a Lifespan Manager. Safe for concurrent use; every Prometheus
// metric type is goroutine-safe.
type Adapter struct {
	touches       prometheus.Counter
	nodesCreated  prometheus.Counter
	nodesRemoved  prometheus.Counter
	bagsSwept     prometheus.Counter
	itemsEvicted  prometheus.Counter
	clears        prometheus.Counter
	indexRebuilds *prometheus.CounterVec
	indexSize     *prometheus.GaugeVec
	lockTimeouts  *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		touches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "touches_total",
			Help:        "Node touches (both attach and reassign paths)",
			ConstLabels: constLabels,
		}),
		nodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "nodes_created_total",
			Help:        "Nodes constructed by Add",
			ConstLabels: constLabels,
		}),
		nodesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "nodes_removed_total",
			Help:        "Nodes removed explicitly via an index",
			ConstLabels: constLabels,
		}),
		bagsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "bags_swept_total",
			Help:        "Age bags processed by a maintenance sweep",
			ConstLabels: constLabels,
		}),
		itemsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "items_evicted_total",
			Help:        "Nodes classified as stale by a maintenance sweep",
			ConstLabels: constLabels,
		}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "clears_total",
			Help:        "Full cache clears",
			ConstLabels: constLabels,
		}),
		indexRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "index_rebuilds_total",
			Help:        "Index rebuilds by index name",
			ConstLabels: constLabels,
		}, []string{"index"}),
		indexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "index_size",
			Help:        "Physical size of an index after its last rebuild",
			ConstLabels: constLabels,
		}, []string{"index"}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "lock_timeouts_total",
			Help:        "Bounded index lock acquisitions that timed out, by operation",
			ConstLabels: constLabels,
		}, []string{"op"}),
	}
	reg.MustRegister(
		a.touches, a.nodesCreated, a.nodesRemoved, a.bagsSwept,
		a.itemsEvicted, a.clears, a.indexRebuilds, a.indexSize, a.lockTimeouts,
	)
	return a
}

func (a *Adapter) Touch()       { a.touches.Inc() }
func (a *Adapter) NodeCreated() { a.nodesCreated.Inc() }
func (a *Adapter) NodeRemoved() { a.nodesRemoved.Inc() }

func (a *Adapter) BagSwept(evicted int) {
	a.bagsSwept.Inc()
	a.itemsEvicted.Add(float64(evicted))
}

func (a *Adapter) Cleared() { a.clears.Inc() }

func (a *Adapter) IndexRebuilt(name string, size int) {
	a.indexRebuilds.WithLabelValues(name).Inc()
	a.indexSize.WithLabelValues(name).Set(float64(size))
}

func (a *Adapter) LockTimeout(op string) { a.lockTimeouts.WithLabelValues(op).Inc() }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
