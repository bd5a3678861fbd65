package cache

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// A mixed workload of concurrent Add/Remove on random keys, with Add
// maintaining two indexes at once. Should pass under -race without reports.
func TestRace_Basic(t *testing.T) {
	c := New[user](Options[user]{Capacity: 8_192})
	byIDIx, err := AddIndex[user, int](c, "id", byID, nil)
	if err != nil {
		t.Fatalf("AddIndex id: %v", err)
	}
	if _, err := AddIndex[user, string](c, "name", func(u user) string { return u.Name }, nil); err != nil {
		t.Fatalf("AddIndex name: %v", err)
	}

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 50_000
	deadline := time.Now().Add(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := r.Intn(keyspace)
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4: // ~5% — Remove
					_ = byIDIx.Remove(k)
				default: // ~95% — Add
					c.Add(user{ID: k, Name: "x"})
				}
			}
		}(w)
	}
	wg.Wait()
}

// One hundred goroutines call GetItem for the same missing key concurrently.
// The loader should run at most once (singleflight coalescing).
func TestRace_GetItem(t *testing.T) {
	var calls int64

	c := New[user](Options[user]{Capacity: 1024})
	ix, err := AddIndex[user, int](c, "id", byID, func(_ context.Context, id int) (user, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(2 * time.Millisecond)
		return user{ID: id, Name: "loaded"}, nil
	})
	if err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	const goroutines = 100
	key := 42

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			u, err := ix.GetItem(context.Background(), key, nil)
			if err != nil {
				t.Errorf("GetItem error: %v", err)
				return
			}
			if u.ID != key {
				t.Errorf("unexpected value: %+v", u)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("loader should run at most once, got %d", got)
	}

	u, err := ix.GetItem(context.Background(), key, nil)
	if err != nil || u.ID != key {
		t.Fatalf("second GetItem failed: v=%+v err=%v", u, err)
	}
}
