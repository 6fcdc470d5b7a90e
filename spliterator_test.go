package hmap

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
)

func TestSpliterator_SplitsCoverEverything(t *testing.T) {
	const numEntries = 10000
	m := MustNew[int, int](WithKeyHash(func(k int) uint32 { return uint32(k % 257) }))
	for i := 0; i < numEntries; i++ {
		m.Put(i, i)
	}
	root := m.Spliterator()
	if !root.IsSized() || root.EstimateSize() != numEntries {
		t.Fatalf("root estimate %d sized %v", root.EstimateSize(), root.IsSized())
	}
	parts := []*Spliterator[int, int]{root}
	for i := 0; i < len(parts) && len(parts) < 64; i++ {
		for {
			q := parts[i].TrySplit()
			if q == nil {
				break
			}
			parts = append(parts, q)
			if len(parts) >= 64 {
				break
			}
		}
	}
	if len(parts) < 2 {
		t.Fatalf("no split happened")
	}
	if root.IsSized() {
		t.Fatalf("split spliterator still reports an exact size")
	}
	seen := make([]int, numEntries)
	for _, sp := range parts {
		if err := sp.ForEachRemaining(func(k, _ int) { seen[k]++ }); err != nil {
			t.Fatalf("ForEachRemaining: %v", err)
		}
	}
	for k, c := range seen {
		if c != 1 {
			t.Fatalf("key %d visited %d times", k, c)
		}
	}
}

func TestSpliterator_TryAdvance(t *testing.T) {
	m := MustNew[int, int]()
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	sp := m.Spliterator()
	n := 0
	for {
		ok, err := sp.TryAdvance(func(int, int) { n++ })
		if err != nil {
			t.Fatalf("TryAdvance: %v", err)
		}
		if !ok {
			break
		}
		// Splitting after traversal started inside a bin is refused or
		// hands out only bins not yet visited.
		if q := sp.TrySplit(); q != nil {
			q.ForEachRemaining(func(int, int) { n++ })
		}
	}
	if n != 100 {
		t.Fatalf("visited %d", n)
	}
}

func TestSpliterator_EmptyAndLazy(t *testing.T) {
	m := MustNew[int, int]()
	sp := m.Spliterator()
	if sp.TrySplit() != nil {
		t.Fatalf("empty map split")
	}
	if ok, err := sp.TryAdvance(func(int, int) {}); ok || err != nil {
		t.Fatalf("got %v %v", ok, err)
	}

	// Binding happens on first use, so entries added before it are seen.
	sp = m.Spliterator()
	for i := 0; i < 10; i++ {
		m.Put(i, i)
	}
	n := 0
	if err := sp.ForEachRemaining(func(int, int) { n++ }); err != nil || n != 10 {
		t.Fatalf("visited %d err %v", n, err)
	}
}

func TestSpliterator_DetectsModification(t *testing.T) {
	m := MustNew[int, int]()
	for i := 0; i < 10; i++ {
		m.Put(i, i)
	}
	sp := m.Spliterator()
	_, err := sp.TryAdvance(func(k, _ int) { m.Put(k+100, 0) })
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("TryAdvance got %v", err)
	}

	sp = m.Spliterator()
	sp.EstimateSize()
	m.Remove(0)
	if err := sp.ForEachRemaining(func(int, int) {}); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("ForEachRemaining got %v", err)
	}
}

func TestMap_ParallelRange(t *testing.T) {
	const numEntries = 20000
	m := MustNew[int, int]()
	for i := 0; i < numEntries; i++ {
		m.Put(i, i)
	}
	var sum atomic.Int64
	var mu sync.Mutex
	seen := make(map[int]struct{}, numEntries)
	n, err := m.ParallelRange(context.Background(), 8, func(k, v int) error {
		sum.Add(int64(v))
		mu.Lock()
		seen[k] = struct{}{}
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("ParallelRange: %v", err)
	}
	if n != numEntries || len(seen) != numEntries {
		t.Fatalf("visited %d distinct %d", n, len(seen))
	}
	if want := int64(numEntries) * (numEntries - 1) / 2; sum.Load() != want {
		t.Fatalf("sum %d, want %d", sum.Load(), want)
	}
}

func TestMap_ParallelRange_Error(t *testing.T) {
	m := MustNew[int, int]()
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	boom := errors.New("boom")
	n, err := m.ParallelRange(context.Background(), 4, func(k, _ int) error {
		if k == 500 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if n < 1 || n > 1000 {
		t.Fatalf("visited %d", n)
	}
}

func TestMap_ParallelRange_Canceled(t *testing.T) {
	m := MustNew[int, int]()
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := m.ParallelRange(ctx, 0, func(int, int) error { return nil })
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Fatalf("got %d %v", n, err)
	}
}

func TestCounterStripe_Padding(t *testing.T) {
	if size := unsafe.Sizeof(counterStripe{}); size%CacheLineSize != 0 {
		t.Fatalf("counterStripe size %d is not a multiple of %d", size, CacheLineSize)
	}
}
