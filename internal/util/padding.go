// Package util contains internal helpers shared by the cache implementation
// (cache-line padding, bounded lock acquisition).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
// std has runtime/internal/sys.CacheLineSize but it's unexported.
// 64 works well in practice.
const CacheLineSize = 64

// CacheLinePad is a dummy field used to separate hot fields into distinct
// cache lines and reduce false sharing. Place between groups of hot fields.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicInt64 is an atomic int64 padded to exactly one cache line.
// The Lifespan Manager uses one per live-count/total-count counter: both
// are written on nearly every touch/add from any goroutine, so keeping
// them on separate cache lines avoids false sharing between the two.
type PaddedAtomicInt64 struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte // 8 = size of int64; pad to 64 bytes
}

var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicInt64{}))]byte
