package hmap

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
)

// WithRemoveEldest installs the eviction policy of a LinkedMap. After
// every insertion (except while decoding) fn is called with the new size
// and the eldest entry; returning true removes that entry. It is ignored
// by plain Maps.
func WithRemoveEldest[K comparable, V any](fn func(size int, key K, value V) bool) func(*MapConfig) {
	return func(c *MapConfig) {
		c.removeEldest = fn
	}
}

// LinkedMap is a Map that also keeps its entries in a doubly linked list,
// in insertion order or, with access ordering, from least to most
// recently used. Iteration follows that list. Combined with
// WithRemoveEldest it forms an LRU cache.
//
// It is built entirely on the Hooks of Map, which it installs itself;
// a WithHooks option passed to NewLinkedMap is overridden.
type LinkedMap[K comparable, V any] struct {
	m            *Map[K, V]
	links        []link
	head, tail   Handle
	accessOrder  bool
	removeEldest func(size int, key K, value V) bool
}

type link struct {
	before, after Handle
}

// linkedHooks keeps the Hooks methods off the LinkedMap API.
type linkedHooks[K comparable, V any] LinkedMap[K, V]

// NewLinkedMap creates a LinkedMap. With accessOrder set, Get and every
// update of an existing key move that key to the end of the order.
func NewLinkedMap[K comparable, V any](accessOrder bool, options ...func(*MapConfig)) (*LinkedMap[K, V], error) {
	c := newMapConfig(options...)
	lm := &LinkedMap[K, V]{accessOrder: accessOrder, m: &Map[K, V]{}}
	if c.removeEldest != nil {
		fn, ok := c.removeEldest.(func(int, K, V) bool)
		if !ok {
			return nil, errors.Wrapf(ErrIllegalOption, "eviction policy %T for map[%T]%T", c.removeEldest, *new(K), *new(V))
		}
		lm.removeEldest = fn
	}
	c.hooks = (*linkedHooks[K, V])(lm)
	if err := lm.m.init(c); err != nil {
		return nil, err
	}
	return lm, nil
}

func (h *linkedHooks[K, V]) AfterInsert(e Handle, evict bool) {
	lm := (*LinkedMap[K, V])(h)
	if n := int(e) + 1; n > len(lm.links) {
		lm.links = append(lm.links, make([]link, n-len(lm.links))...)
	}
	lm.linkLast(e)
	if !evict || lm.removeEldest == nil || lm.head == 0 {
		return
	}
	first := &lm.m.arena.slots[lm.head]
	if lm.removeEldest(lm.m.size, first.key, first.value) {
		lm.m.Remove(first.key)
	}
}

func (h *linkedHooks[K, V]) AfterAccess(e Handle) {
	lm := (*LinkedMap[K, V])(h)
	if !lm.accessOrder || lm.tail == e {
		return
	}
	lm.unlink(e)
	lm.linkLast(e)
	lm.m.modCount++
}

func (h *linkedHooks[K, V]) AfterRemove(e Handle) {
	(*LinkedMap[K, V])(h).unlink(e)
}

func (lm *LinkedMap[K, V]) linkLast(e Handle) {
	last := lm.tail
	lm.tail = e
	lm.links[e] = link{before: last}
	if last == 0 {
		lm.head = e
	} else {
		lm.links[last].after = e
	}
}

func (lm *LinkedMap[K, V]) unlink(e Handle) {
	l := lm.links[e]
	lm.links[e] = link{}
	if l.before == 0 {
		lm.head = l.after
	} else {
		lm.links[l.before].after = l.after
	}
	if l.after == 0 {
		lm.tail = l.before
	} else {
		lm.links[l.after].before = l.before
	}
}

// Get returns the value stored for key. In access order it also marks
// the key as most recently used.
func (lm *LinkedMap[K, V]) Get(key K) (V, bool) { return lm.m.Get(key) }

// GetOrDefault returns the value stored for key, or defaultValue.
func (lm *LinkedMap[K, V]) GetOrDefault(key K, defaultValue V) V {
	return lm.m.GetOrDefault(key, defaultValue)
}

// ContainsKey reports whether key is present without touching the order.
func (lm *LinkedMap[K, V]) ContainsKey(key K) bool { return lm.m.ContainsKey(key) }

// ContainsValue reports whether any key maps to value.
func (lm *LinkedMap[K, V]) ContainsValue(value V) bool { return lm.m.ContainsValue(value) }

// Put stores value for key. A new key goes to the end of the order and
// may trigger eviction of the eldest entry.
func (lm *LinkedMap[K, V]) Put(key K, value V) (V, bool) { return lm.m.Put(key, value) }

// Remove deletes key and returns its previous value, if any.
func (lm *LinkedMap[K, V]) Remove(key K) (V, bool) { return lm.m.Remove(key) }

// Size returns the number of keys present.
func (lm *LinkedMap[K, V]) Size() int { return lm.m.size }

// IsZero reports whether the map is empty.
func (lm *LinkedMap[K, V]) IsZero() bool { return lm.m.size == 0 }

// PutIfAbsent stores value only if key is absent.
func (lm *LinkedMap[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	return lm.m.PutIfAbsent(key, value)
}

// RemoveIf deletes key only if it is mapped to expected.
func (lm *LinkedMap[K, V]) RemoveIf(key K, expected V) bool {
	return lm.m.RemoveIf(key, expected)
}

// Replace stores value only if key is present.
func (lm *LinkedMap[K, V]) Replace(key K, value V) (V, bool) {
	return lm.m.Replace(key, value)
}

// ReplaceIf stores newValue only if key is mapped to oldValue.
func (lm *LinkedMap[K, V]) ReplaceIf(key K, oldValue, newValue V) bool {
	return lm.m.ReplaceIf(key, oldValue, newValue)
}

// ComputeIfAbsent is Map.ComputeIfAbsent.
func (lm *LinkedMap[K, V]) ComputeIfAbsent(key K, fn func(key K) (V, bool)) (V, bool) {
	return lm.m.ComputeIfAbsent(key, fn)
}

// ComputeIfPresent is Map.ComputeIfPresent.
func (lm *LinkedMap[K, V]) ComputeIfPresent(key K, fn func(key K, old V) (V, bool)) (V, bool) {
	return lm.m.ComputeIfPresent(key, fn)
}

// Compute is Map.Compute.
func (lm *LinkedMap[K, V]) Compute(key K, fn func(key K, old V, loaded bool) (V, bool)) (V, bool) {
	return lm.m.Compute(key, fn)
}

// Merge is Map.Merge.
func (lm *LinkedMap[K, V]) Merge(key K, value V, fn func(old, value V) (V, bool)) (V, bool) {
	return lm.m.Merge(key, value, fn)
}

// Process is Map.Process.
func (lm *LinkedMap[K, V]) Process(key K, fn func(old V, loaded bool) (V, ComputeOp, V, bool)) (V, bool) {
	return lm.m.Process(key, fn)
}

// Clear removes every entry.
func (lm *LinkedMap[K, V]) Clear() {
	lm.m.Clear()
}

// Eldest returns the first entry in iteration order.
func (lm *LinkedMap[K, V]) Eldest() (key K, value V, ok bool) {
	if lm.head == 0 {
		return
	}
	e := &lm.m.arena.slots[lm.head]
	return e.key, e.value, true
}

// Range calls yield for each entry in linked order until it returns
// false. It panics with ErrConcurrentModification if yield changes the
// order or the set of keys.
func (lm *LinkedMap[K, V]) Range(yield func(key K, value V) bool) {
	mc := lm.m.modCount
	for e := lm.head; e != 0; {
		s := lm.m.arena.slots
		k, v, next := s[e].key, s[e].value, lm.links[e].after
		if !yield(k, v) {
			return
		}
		if lm.m.modCount != mc {
			panic(errors.Wrap(ErrConcurrentModification, "linked range"))
		}
		e = next
	}
}

// All returns an iterator over all entries in linked order.
func (lm *LinkedMap[K, V]) All() iter.Seq2[K, V] {
	return lm.Range
}

// Keys returns an iterator over all keys in linked order.
func (lm *LinkedMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		lm.Range(func(k K, _ V) bool { return yield(k) })
	}
}

// Values returns an iterator over all values in linked order.
func (lm *LinkedMap[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		lm.Range(func(_ K, v V) bool { return yield(v) })
	}
}

// LinkedIterator walks a LinkedMap in linked order. It behaves like
// Iterator.
type LinkedIterator[K comparable, V any] struct {
	lm               *LinkedMap[K, V]
	next             Handle
	current          Handle
	expectedModCount int
	key              K
	value            V
	err              error
}

// Iter returns an iterator positioned before the eldest entry.
func (lm *LinkedMap[K, V]) Iter() *LinkedIterator[K, V] {
	return &LinkedIterator[K, V]{lm: lm, next: lm.head, expectedModCount: lm.m.modCount}
}

// Next moves to the following entry in linked order and reports whether
// there is one.
func (it *LinkedIterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	if it.lm.m.modCount != it.expectedModCount {
		it.err = errors.Wrap(ErrConcurrentModification, "linked iterator")
		it.current = 0
		return false
	}
	e := it.next
	if e == 0 {
		it.current = 0
		return false
	}
	s := it.lm.m.arena.slots
	it.current = e
	it.key, it.value = s[e].key, s[e].value
	it.next = it.lm.links[e].after
	return true
}

// Key returns the key of the current entry.
func (it *LinkedIterator[K, V]) Key() K { return it.key }

// Value returns the value of the current entry.
func (it *LinkedIterator[K, V]) Value() V { return it.value }

// Err returns the error that stopped the iteration, if any.
func (it *LinkedIterator[K, V]) Err() error { return it.err }

// Remove deletes the current entry.
func (it *LinkedIterator[K, V]) Remove() error {
	if it.err != nil {
		return it.err
	}
	if it.current == 0 {
		return errors.Wrap(ErrIllegalState, "no current entry")
	}
	m := it.lm.m
	if m.modCount != it.expectedModCount {
		it.err = errors.Wrap(ErrConcurrentModification, "linked iterator")
		return it.err
	}
	e := &m.arena.slots[it.current]
	m.removeFound(m.findEntry(e.hash, e.key), false)
	it.current = 0
	it.expectedModCount = m.modCount
	return nil
}

// ToMap collect all entries and return a map[K]V
func (lm *LinkedMap[K, V]) ToMap() map[K]V {
	return lm.m.ToMap()
}

// String lists the entries in linked order.
func (lm *LinkedMap[K, V]) String() string {
	var sb strings.Builder
	sb.WriteString("LinkedMap[")
	first := true
	lm.Range(func(k K, v V) bool {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		fmt.Fprint(&sb, k, ":", v)
		return true
	})
	sb.WriteByte(']')
	return sb.String()
}

// Encode writes the persisted form with entries in linked order.
func (lm *LinkedMap[K, V]) Encode(w io.Writer) error {
	return lm.m.encode(w, lm.Range)
}

// Decode replaces the contents of lm with a persisted form. The linked
// order becomes the order of the stream and no entry is evicted.
func (lm *LinkedMap[K, V]) Decode(r io.Reader) error {
	return lm.m.Decode(r)
}

// Stats returns statistics of the underlying hash table.
func (lm *LinkedMap[K, V]) Stats() *MapStats {
	return lm.m.Stats()
}
