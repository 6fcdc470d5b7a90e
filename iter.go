package hmap

import (
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// Iterator walks the entries of a Map in bucket order.
//
// It is fail-fast: once the map is structurally modified by anything
// other than the iterator's own Remove, Next returns false and Err
// returns ErrConcurrentModification.
//
//	it := m.Iter()
//	for it.Next() {
//		if it.Value() == 0 {
//			_ = it.Remove()
//		}
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator[K comparable, V any] struct {
	m                *Map[K, V]
	next             Handle
	index            int
	current          Handle
	expectedModCount int
	key              K
	value            V
	err              error
}

// Iter returns an iterator positioned before the first entry.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	it := &Iterator[K, V]{m: m, expectedModCount: m.modCount}
	if m.size > 0 {
		it.advance()
	}
	return it
}

// advance moves next to the head of the next non-empty bin.
func (it *Iterator[K, V]) advance() {
	tab := it.m.table
	for it.next == 0 && it.index < len(tab) {
		it.next = tab[it.index].head
		it.index++
	}
}

// Next moves to the following entry and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	if it.m.modCount != it.expectedModCount {
		it.err = errors.Wrap(ErrConcurrentModification, "iterator")
		it.current = 0
		return false
	}
	e := it.next
	if e == 0 {
		it.current = 0
		return false
	}
	s := it.m.arena.slots
	it.current = e
	it.key, it.value = s[e].key, s[e].value
	it.next = s[e].next
	it.advance()
	return true
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry as of the last call to
// Next or SetValue.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// SetValue replaces the value of the current entry in the map.
func (it *Iterator[K, V]) SetValue(value V) error {
	if err := it.check(); err != nil {
		return err
	}
	it.m.arena.slots[it.current].value = value
	it.value = value
	return nil
}

// Remove deletes the current entry from the map. The iterator stays
// valid and continues with the entry that would have followed.
func (it *Iterator[K, V]) Remove() error {
	if err := it.check(); err != nil {
		return err
	}
	m := it.m
	e := &m.arena.slots[it.current]
	r := m.findEntry(e.hash, e.key)
	if r.h != it.current {
		return errors.Wrap(ErrConcurrentModification, "iterator remove")
	}
	m.removeFound(r, false)
	it.current = 0
	it.expectedModCount = m.modCount
	return nil
}

func (it *Iterator[K, V]) check() error {
	if it.err != nil {
		return it.err
	}
	if it.current == 0 {
		return errors.Wrap(ErrIllegalState, "no current entry")
	}
	if it.m.modCount != it.expectedModCount {
		it.err = errors.Wrap(ErrConcurrentModification, "iterator")
		return it.err
	}
	return nil
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// All returns an iterator over all entries, for use with range.
// It panics with ErrConcurrentModification if the loop body inserts or
// removes keys.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return m.Range
}

// Keys is the iterator version for iterating over all keys.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		m.Range(func(k K, _ V) bool {
			return yield(k)
		})
	}
}

// Values is the iterator version for iterating over all values.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.Range(func(_ K, v V) bool {
			return yield(v)
		})
	}
}

// Range calls yield for each entry until it returns false.
// It panics with ErrConcurrentModification if yield inserts or removes
// keys and the iteration would continue.
func (m *Map[K, V]) Range(yield func(key K, value V) bool) {
	if m.size == 0 {
		return
	}
	mc := m.modCount
	tab := m.table
	for i := range tab {
		for e := tab[i].head; e != 0; {
			s := m.arena.slots
			k, v, next := s[e].key, s[e].value, s[e].next
			if !yield(k, v) {
				return
			}
			if m.modCount != mc {
				panic(errors.Wrap(ErrConcurrentModification, "range"))
			}
			e = next
		}
	}
}

// ForEach calls fn for each entry. It stops at the first error returned
// by fn, and reports ErrConcurrentModification if fn inserted or removed
// keys.
func (m *Map[K, V]) ForEach(fn func(key K, value V) error) error {
	if m.size == 0 {
		return nil
	}
	mc := m.modCount
	tab := m.table
	for i := range tab {
		for e := tab[i].head; e != 0; {
			s := m.arena.slots
			if err := fn(s[e].key, s[e].value); err != nil {
				return err
			}
			if m.modCount != mc {
				return errors.Wrap(ErrConcurrentModification, "for each")
			}
			e = s[e].next
		}
	}
	return nil
}

// ToMap collect all entries and return a map[K]V
func (m *Map[K, V]) ToMap() map[K]V {
	a := make(map[K]V, m.size)
	m.Range(func(k K, v V) bool {
		a[k] = v
		return true
	})
	return a
}

// ToMapWithLimit collect up to limit entries into a map[K]V, limit < 0 is no limit
func (m *Map[K, V]) ToMapWithLimit(limit int) map[K]V {
	if limit == 0 {
		return map[K]V{}
	}
	if limit < 0 {
		limit = math.MaxInt
	}
	a := make(map[K]V, min(m.size, limit))
	m.Range(func(k K, v V) bool {
		a[k] = v
		limit--
		return limit > 0
	})
	return a
}

// String implement the formatting output interface fmt.Stringer
func (m *Map[K, V]) String() string {
	const limit = 1024
	return strings.Replace(fmt.Sprint(m.ToMapWithLimit(limit)), "map[", "Map[", 1)
}
