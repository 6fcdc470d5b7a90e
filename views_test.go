package hmap

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSquares(t *testing.T, n int) *Map[int, int] {
	t.Helper()
	m, err := New[int, int]()
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		m.Put(i, i*i)
	}
	return m
}

func TestKeySet(t *testing.T) {
	m := newSquares(t, 10)
	ks := m.KeySet()
	require.Equal(t, 10, ks.Len())
	require.True(t, ks.Contains(3))
	require.False(t, ks.Contains(30))

	require.True(t, ks.Remove(3))
	require.False(t, ks.Remove(3))
	require.False(t, m.ContainsKey(3))
	require.Equal(t, 9, ks.Len())

	removed, err := ks.RemoveFunc(func(k int) bool { return k%2 == 0 })
	require.NoError(t, err)
	require.Equal(t, 5, removed)
	keys := slices.Sorted(ks.All())
	require.Equal(t, []int{1, 5, 7, 9}, keys)

	// The view is live.
	m.Put(11, 121)
	require.True(t, ks.Contains(11))

	ks.Clear()
	require.True(t, m.IsZero())
	require.Zero(t, ks.Len())
}

func TestValuesView(t *testing.T) {
	m := newSquares(t, 10)
	m.Put(100, 4)
	vs := m.ValuesView()
	require.Equal(t, 11, vs.Len())
	require.True(t, vs.Contains(81))
	require.False(t, vs.Contains(2))

	require.True(t, vs.Remove(4))
	require.Equal(t, 10, m.Size())
	require.True(t, vs.Contains(4), "one of the two entries holding 4 remains")
	require.True(t, vs.Remove(4))
	require.False(t, vs.Contains(4))
	require.False(t, vs.Remove(4))

	removed, err := vs.RemoveFunc(func(v int) bool { return v > 10 })
	require.NoError(t, err)
	require.Equal(t, 6, removed)
	require.ElementsMatch(t, []int{0, 1, 9}, slices.Collect(vs.All()))

	it := vs.Iter()
	count := 0
	for it.Next() {
		count++
	}
	require.NoError(t, it.Err())
	require.Equal(t, 3, count)
}

func TestEntrySet(t *testing.T) {
	m := newSquares(t, 10)
	es := m.EntrySet()
	require.Equal(t, 10, es.Len())
	require.True(t, es.Contains(Entry[int, int]{Key: 3, Value: 9}))
	require.False(t, es.Contains(Entry[int, int]{Key: 3, Value: 10}))
	require.False(t, es.Contains(Entry[int, int]{Key: 30, Value: 900}))

	require.False(t, es.Remove(Entry[int, int]{Key: 3, Value: 10}))
	require.True(t, es.Remove(Entry[int, int]{Key: 3, Value: 9}))
	require.False(t, m.ContainsKey(3))

	removed, err := es.RemoveFunc(func(k, v int) bool { return k < 5 && v >= 0 })
	require.NoError(t, err)
	require.Equal(t, 4, removed)

	got := map[int]int{}
	for k, v := range es.All() {
		got[k] = v
	}
	require.Equal(t, map[int]int{5: 25, 6: 36, 7: 49, 8: 64, 9: 81}, got)

	it := es.Iter()
	for it.Next() {
		require.NoError(t, it.SetValue(-it.Value()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, -25, m.GetOrDefault(5, 0))

	es.Clear()
	require.Zero(t, m.Size())
}

func TestViews_RemoveFuncOnTreeBins(t *testing.T) {
	m, err := New[int, int](WithKeyHash(func(k int) uint32 { return uint32(k % 4) }))
	require.NoError(t, err)
	for i := 0; i < 400; i++ {
		m.Put(i, i)
	}
	require.Positive(t, m.Stats().TreeBins)
	removed, err := m.KeySet().RemoveFunc(func(k int) bool { return k%5 != 0 })
	require.NoError(t, err)
	require.Equal(t, 320, removed)
	require.Equal(t, 80, m.Size())
	verifyAll(t, m)
	for i := 0; i < 400; i += 5 {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
