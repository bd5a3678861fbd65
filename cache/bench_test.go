package cache

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a GetItem/Add mix against a warm cache with a
// single loader-backed index. RunParallel spawns GOMAXPROCS goroutines.
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[user](Options[user]{Capacity: 100_000})
	ix, err := AddIndex[user, string](c, "key", func(u user) string { return u.Name }, func(_ context.Context, k string) (user, error) {
		return user{Name: k}, nil
	})
	if err != nil {
		b.Fatalf("AddIndex: %v", err)
	}

	for i := 0; i < 50_000; i++ {
		c.Add(user{Name: "k:" + strconv.Itoa(i)})
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		ctx := context.Background()
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				_, _ = ix.GetItem(ctx, k, nil)
			} else {
				c.Add(user{Name: k})
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// benchmarkMixInt is the same workload with int keys, removing strconv
// allocation noise from the read-heavy path.
func benchmarkMixInt(b *testing.B, readsPct int) {
	c := New[user](Options[user]{Capacity: 100_000})
	ix, err := AddIndex[user, int](c, "id", byID, func(_ context.Context, id int) (user, error) {
		return user{ID: id}, nil
	})
	if err != nil {
		b.Fatalf("AddIndex: %v", err)
	}

	for i := 0; i < 50_000; i++ {
		c.Add(user{ID: i})
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		ctx := context.Background()
		i := 0
		for pb.Next() {
			k := i & keyMask
			if r.Intn(100) < readsPct {
				_, _ = ix.GetItem(ctx, k, nil)
			} else {
				c.Add(user{ID: k})
			}
			i++
		}
	})
}

func BenchmarkCache_IntKeys_90r10w(b *testing.B) { benchmarkMixInt(b, 90) }
func BenchmarkCache_IntKeys_50r50w(b *testing.B) { benchmarkMixInt(b, 50) }
