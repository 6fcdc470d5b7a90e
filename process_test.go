package hmap

import (
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
)

type recordingHooks struct {
	accessed []Handle
	inserted []Handle
	evict    []bool
	removed  []Handle
}

func (h *recordingHooks) AfterAccess(e Handle) { h.accessed = append(h.accessed, e) }
func (h *recordingHooks) AfterRemove(e Handle) { h.removed = append(h.removed, e) }
func (h *recordingHooks) AfterInsert(e Handle, evict bool) {
	h.inserted = append(h.inserted, e)
	h.evict = append(h.evict, evict)
}

func TestMap_Merge(t *testing.T) {
	m := MustNew[string, int]()
	sum := func(old, v int) (int, bool) { return old + v, true }
	if v, ok := m.Merge("a", 5, sum); !ok || v != 5 {
		t.Fatalf("merge absent got %v %v", v, ok)
	}
	if v, ok := m.Merge("a", 3, sum); !ok || v != 8 {
		t.Fatalf("merge present got %v %v", v, ok)
	}
	drop := func(old, v int) (int, bool) { return 0, false }
	if _, ok := m.Merge("a", 1, drop); ok {
		t.Fatalf("merge to no value reported a value")
	}
	if m.ContainsKey("a") || m.Size() != 0 {
		t.Fatalf("merge to no value kept the key")
	}
}

func TestMap_ComputeIfAbsent(t *testing.T) {
	m := MustNew[int, string]()
	calls := 0
	fn := func(k int) (string, bool) {
		calls++
		return strconv.Itoa(k), true
	}
	if v, ok := m.ComputeIfAbsent(1, fn); !ok || v != "1" {
		t.Fatalf("got %q %v", v, ok)
	}
	if v, ok := m.ComputeIfAbsent(1, fn); !ok || v != "1" {
		t.Fatalf("got %q %v", v, ok)
	}
	if calls != 1 {
		t.Fatalf("function called %d times", calls)
	}
	if _, ok := m.ComputeIfAbsent(2, func(int) (string, bool) { return "", false }); ok {
		t.Fatalf("no value reported as present")
	}
	if m.ContainsKey(2) {
		t.Fatalf("no value was stored")
	}
	// A stored zero value is a value.
	if v, ok := m.ComputeIfAbsent(3, func(int) (string, bool) { return "", true }); !ok || v != "" {
		t.Fatalf("got %q %v", v, ok)
	}
	if !m.ContainsKey(3) {
		t.Fatalf("zero value not stored")
	}
}

func TestMap_ComputeIfPresent(t *testing.T) {
	m := MustNew[int, int]()
	inc := func(_ int, v int) (int, bool) { return v + 1, true }
	if _, ok := m.ComputeIfPresent(1, inc); ok || m.ContainsKey(1) {
		t.Fatalf("absent key computed")
	}
	m.Put(1, 10)
	if v, ok := m.ComputeIfPresent(1, inc); !ok || v != 11 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := m.ComputeIfPresent(1, func(int, int) (int, bool) { return 0, false }); ok {
		t.Fatalf("removal reported a value")
	}
	if m.ContainsKey(1) {
		t.Fatalf("key not removed")
	}
}

func TestMap_Compute(t *testing.T) {
	m := MustNew[string, int]()
	count := func(_ string, old int, loaded bool) (int, bool) {
		if !loaded {
			return 1, true
		}
		if old >= 3 {
			return 0, false
		}
		return old + 1, true
	}
	for want := 1; want <= 3; want++ {
		if v, ok := m.Compute("k", count); !ok || v != want {
			t.Fatalf("got %v %v, want %d", v, ok, want)
		}
	}
	if _, ok := m.Compute("k", count); ok || m.ContainsKey("k") {
		t.Fatalf("key not removed")
	}
	if _, ok := m.Compute("absent", func(string, int, bool) (int, bool) { return 0, false }); ok {
		t.Fatalf("absent key reported")
	}
	if m.Size() != 0 {
		t.Fatalf("size got %d", m.Size())
	}
}

func TestMap_PutIfAbsentReplaceRemoveIf(t *testing.T) {
	m := MustNew[int, string]()
	if v, loaded := m.PutIfAbsent(1, "a"); loaded || v != "a" {
		t.Fatalf("PutIfAbsent got %q %v", v, loaded)
	}
	if v, loaded := m.PutIfAbsent(1, "b"); !loaded || v != "a" {
		t.Fatalf("PutIfAbsent got %q %v", v, loaded)
	}
	if _, loaded := m.Replace(2, "x"); loaded || m.ContainsKey(2) {
		t.Fatalf("Replace inserted an absent key")
	}
	if prev, loaded := m.Replace(1, "c"); !loaded || prev != "a" {
		t.Fatalf("Replace got %q %v", prev, loaded)
	}
	if m.ReplaceIf(1, "a", "d") {
		t.Fatalf("ReplaceIf with stale value succeeded")
	}
	if !m.ReplaceIf(1, "c", "d") || m.GetOrDefault(1, "") != "d" {
		t.Fatalf("ReplaceIf failed")
	}
	if m.RemoveIf(1, "c") {
		t.Fatalf("RemoveIf with stale value succeeded")
	}
	if !m.RemoveIf(1, "d") || m.ContainsKey(1) {
		t.Fatalf("RemoveIf failed")
	}
}

func TestMap_Process(t *testing.T) {
	m := MustNew[int, int]()
	const limit = 3
	bump := func(old int, loaded bool) (int, ComputeOp, int, bool) {
		if loaded && old >= limit {
			return old, DeleteOp, old, false
		}
		return old + 1, UpdateOp, old + 1, true
	}
	for i := 1; i <= limit; i++ {
		if v, ok := m.Process(7, bump); !ok || v != i {
			t.Fatalf("got %v %v, want %d", v, ok, i)
		}
	}
	if _, ok := m.Process(7, bump); ok || m.ContainsKey(7) {
		t.Fatalf("expected delete")
	}
	v, ok := m.Process(8, func(old int, loaded bool) (int, ComputeOp, int, bool) {
		return 99, CancelOp, old, loaded
	})
	if ok || v != 0 || m.ContainsKey(8) {
		t.Fatalf("cancel stored a value")
	}
}

func TestMap_ValueOnlyUpdateKeepsGeneration(t *testing.T) {
	m := MustNew[int, int]()
	m.Put(1, 1)
	mc := m.modCount
	m.Put(1, 2)
	m.Replace(1, 3)
	m.Compute(1, func(_ int, v int, _ bool) (int, bool) { return v + 1, true })
	if m.modCount != mc {
		t.Fatalf("value updates changed the generation %d -> %d", mc, m.modCount)
	}
	m.Put(2, 2)
	if m.modCount != mc+1 {
		t.Fatalf("insert did not bump the generation")
	}
}

func TestMap_ReentrantModificationPanics(t *testing.T) {
	m := MustNew[int, int]()
	m.Put(1, 1)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrConcurrentModification) {
			t.Fatalf("unexpected recover %v", r)
		}
		// The map itself stays consistent.
		if m.Size() != 2 || !m.ContainsKey(2) {
			t.Fatalf("size %d", m.Size())
		}
		verifyAll(t, m)
	}()
	m.ComputeIfAbsent(3, func(int) (int, bool) {
		m.Put(2, 2)
		return 3, true
	})
	t.Fatalf("expected panic")
}

func TestMap_ReplaceAll(t *testing.T) {
	m := MustNew[int, int]()
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	if err := m.ReplaceAll(func(k, v int) int { return v * 2 }); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	for i := 0; i < 100; i++ {
		if v, _ := m.Get(i); v != i*2 {
			t.Fatalf("k=%d got %d", i, v)
		}
	}
	err := m.ReplaceAll(func(k, v int) int {
		m.Remove(k)
		return v
	})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("got %v", err)
	}
}

func TestMap_Hooks(t *testing.T) {
	h := &recordingHooks{}
	m := MustNew[string, int](WithHooks(h))
	m.Put("a", 1)
	m.Put("b", 2)
	if len(h.inserted) != 2 || !h.evict[0] || !h.evict[1] {
		t.Fatalf("inserted %v evict %v", h.inserted, h.evict)
	}
	m.Get("a")
	m.Put("a", 3)
	m.Get("missing")
	m.PutIfAbsent("b", 5)
	if len(h.accessed) != 3 {
		t.Fatalf("accessed %v", h.accessed)
	}
	if h.accessed[0] != h.inserted[0] || h.accessed[2] != h.inserted[1] {
		t.Fatalf("accessed %v inserted %v", h.accessed, h.inserted)
	}
	m.Remove("a")
	m.RemoveIf("b", 100)
	if len(h.removed) != 1 || h.removed[0] != h.inserted[0] {
		t.Fatalf("removed %v", h.removed)
	}

	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h2 := &recordingHooks{}
	m2 := MustNew[string, int](WithHooks(h2))
	if err := m2.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(h2.evict) != 1 || h2.evict[0] {
		t.Fatalf("decode must insert without eviction: %v", h2.evict)
	}
}

// liveTracker mirrors the set of live handles of a map from its hooks
// alone, the way an order-tracking wrapper outside the package would.
type liveTracker struct {
	m       *Map[int, string]
	live    map[Handle]int
	removed []int
	stale   int
}

func (tr *liveTracker) AfterAccess(Handle) {}

func (tr *liveTracker) AfterInsert(h Handle, _ bool) {
	k, _, ok := tr.m.EntryAt(h)
	if !ok {
		tr.stale++
	}
	tr.live[h] = k
}

func (tr *liveTracker) AfterRemove(h Handle) {
	k, _, ok := tr.m.EntryAt(h)
	if want, tracked := tr.live[h]; !ok || !tracked || want != k {
		tr.stale++
	}
	delete(tr.live, h)
	tr.removed = append(tr.removed, k)
}

func (tr *liveTracker) check(t *testing.T, stage string) {
	t.Helper()
	if tr.stale != 0 {
		t.Fatalf("%s: %d hook calls saw a stale handle", stage, tr.stale)
	}
	if len(tr.live) != tr.m.Size() {
		t.Fatalf("%s: hooks track %d handles, size is %d", stage, len(tr.live), tr.m.Size())
	}
	for h, k := range tr.live {
		if got, _, ok := tr.m.EntryAt(h); !ok || got != k {
			t.Fatalf("%s: handle %d holds %v %v, tracked %d", stage, h, got, ok, k)
		}
	}
}

func TestMap_HooksTrackLiveHandles(t *testing.T) {
	tr := &liveTracker{live: map[Handle]int{}}
	m := MustNew[int, string](WithHooks(tr))
	tr.m = m
	for i := 0; i < 5; i++ {
		m.Put(i, strconv.Itoa(i))
	}
	tr.check(t, "put")

	m.Remove(3)
	if len(tr.removed) != 1 || tr.removed[0] != 3 {
		t.Fatalf("removed %v", tr.removed)
	}
	tr.check(t, "remove")

	it := m.Iter()
	for it.Next() {
		if it.Key() == 4 {
			if err := it.Remove(); err != nil {
				t.Fatalf("iterator remove: %v", err)
			}
		}
	}
	tr.check(t, "iterator remove")

	m.Clear()
	if len(tr.removed) != 5 {
		t.Fatalf("clear reported %v", tr.removed)
	}
	tr.check(t, "clear")

	m.Put(10, "a")
	m.Put(11, "b")
	tr.check(t, "put after clear")

	src := MustNew[int, string]()
	src.Put(20, "x")
	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := m.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tr.check(t, "decode")
	if v, _ := m.Get(20); v != "x" || m.ContainsKey(10) {
		t.Fatalf("decode result %v", m.ToMap())
	}

	if err := m.UnmarshalBinary([]byte("x")); err == nil {
		t.Fatalf("expected decode error")
	}
	tr.check(t, "failed decode")
}
