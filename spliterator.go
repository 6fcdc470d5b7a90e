package hmap

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Spliterator traverses a range of bins of a Map and can hand half of its
// remaining range to a new Spliterator, so that disjoint parts of one map
// can be walked by different goroutines. The map must not be modified
// while any of them is in use; this is checked, on a best-effort basis,
// through the structural generation.
//
// The bin range is bound lazily, on first use, which lets a Spliterator be
// created before the map is filled.
type Spliterator[K comparable, V any] struct {
	m                *Map[K, V]
	current          Handle
	index            int
	fence            int // one past the last bin; -1 until first use
	est              int
	expectedModCount int
}

// Spliterator returns a Spliterator covering the whole map.
func (m *Map[K, V]) Spliterator() *Spliterator[K, V] {
	return &Spliterator[K, V]{m: m, fence: -1}
}

func (sp *Spliterator[K, V]) getFence() int {
	if sp.fence < 0 {
		m := sp.m
		sp.est = m.size
		sp.expectedModCount = m.modCount
		sp.fence = len(m.table)
	}
	return sp.fence
}

// EstimateSize returns an estimate of the number of entries left.
func (sp *Spliterator[K, V]) EstimateSize() int {
	sp.getFence()
	return sp.est
}

// IsSized reports whether EstimateSize is exact, which is only the case
// until the first split.
func (sp *Spliterator[K, V]) IsSized() bool {
	return sp.fence < 0 || sp.est == sp.m.size
}

// TrySplit gives the lower half of the remaining bins to a new
// Spliterator and keeps the upper half. It returns nil when the range
// cannot be split further or traversal has already started inside a bin.
func (sp *Spliterator[K, V]) TrySplit() *Spliterator[K, V] {
	hi := sp.getFence()
	lo := sp.index
	mid := int(uint(lo+hi) >> 1)
	if lo >= mid || sp.current != 0 {
		return nil
	}
	sp.index = mid
	sp.est >>= 1
	return &Spliterator[K, V]{
		m:                sp.m,
		index:            lo,
		fence:            mid,
		est:              sp.est,
		expectedModCount: sp.expectedModCount,
	}
}

// TryAdvance calls fn with the next entry, if any, and reports whether it
// did.
func (sp *Spliterator[K, V]) TryAdvance(fn func(key K, value V)) (bool, error) {
	m := sp.m
	tab := m.table
	hi := sp.getFence()
	if len(tab) < hi || sp.index < 0 {
		return false, nil
	}
	for sp.current != 0 || sp.index < hi {
		if sp.current == 0 {
			sp.current = tab[sp.index].head
			sp.index++
			continue
		}
		s := m.arena.slots
		e := sp.current
		sp.current = s[e].next
		fn(s[e].key, s[e].value)
		if m.modCount != sp.expectedModCount {
			return true, errors.Wrap(ErrConcurrentModification, "spliterator")
		}
		return true, nil
	}
	return false, nil
}

// ForEachRemaining calls fn for every entry left in the range. The map's
// generation is only compared once the whole range has been visited.
func (sp *Spliterator[K, V]) ForEachRemaining(fn func(key K, value V)) error {
	m := sp.m
	tab := m.table
	var mc int
	hi := sp.fence
	if hi < 0 {
		sp.expectedModCount = m.modCount
		hi = len(tab)
		sp.fence = hi
	}
	mc = sp.expectedModCount
	i := sp.index
	if len(tab) < hi || i < 0 || (i >= hi && sp.current == 0) {
		return nil
	}
	sp.index = hi
	p := sp.current
	sp.current = 0
	for p != 0 || i < hi {
		if p == 0 {
			p = tab[i].head
			i++
			continue
		}
		s := m.arena.slots
		if int(p) >= len(s) {
			break
		}
		next := s[p].next
		fn(s[p].key, s[p].value)
		p = next
	}
	if m.modCount != mc {
		return errors.Wrap(ErrConcurrentModification, "spliterator")
	}
	return nil
}

// ParallelRange calls fn for every entry, spreading the bins over up to
// parallelism goroutines (GOMAXPROCS when parallelism <= 0). fn may be
// called concurrently and must not modify the map. The first error
// returned by fn, or the cancellation of ctx, stops the remaining
// workers. It returns the number of entries visited.
func (m *Map[K, V]) ParallelRange(
	ctx context.Context,
	parallelism int,
	fn func(key K, value V) error,
) (int, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	parts := []*Spliterator[K, V]{m.Spliterator()}
	for len(parts) < parallelism {
		n := len(parts)
		for i := 0; i < n && len(parts) < parallelism; i++ {
			if q := parts[i].TrySplit(); q != nil {
				parts = append(parts, q)
			}
		}
		if len(parts) == n {
			break
		}
	}

	counts := make([]counterStripe, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	for i, sp := range parts {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				var ferr error
				ok, err := sp.TryAdvance(func(k K, v V) {
					ferr = fn(k, v)
				})
				if !ok {
					return err
				}
				counts[i].c++
				if ferr != nil {
					return ferr
				}
				if err != nil {
					return err
				}
			}
		})
	}
	err := g.Wait()

	total := 0
	for i := range counts {
		total += int(counts[i].c)
	}
	return total, err
}
