package hmap

import (
	"iter"
)

// KeySet is a live view of the keys of a Map. Removing through the view
// removes from the map; the view never inserts.
type KeySet[K comparable, V any] struct {
	m *Map[K, V]
}

// KeySet returns a view of the keys of m.
func (m *Map[K, V]) KeySet() KeySet[K, V] {
	return KeySet[K, V]{m: m}
}

// Len returns the number of keys.
func (ks KeySet[K, V]) Len() int { return ks.m.size }

// Contains reports whether key is present.
func (ks KeySet[K, V]) Contains(key K) bool { return ks.m.ContainsKey(key) }

// Clear removes every entry of the map.
func (ks KeySet[K, V]) Clear() { ks.m.Clear() }

// All returns an iterator over the keys.
func (ks KeySet[K, V]) All() iter.Seq[K] { return ks.m.Keys() }

// Iter returns an iterator over the entries of the map. Its Remove
// deletes the current key.
func (ks KeySet[K, V]) Iter() *Iterator[K, V] { return ks.m.Iter() }

// Remove deletes key and reports whether it was present.
func (ks KeySet[K, V]) Remove(key K) bool {
	_, ok := ks.m.Remove(key)
	return ok
}

// RemoveFunc deletes every key for which fn returns true and returns how
// many were removed.
func (ks KeySet[K, V]) RemoveFunc(fn func(key K) bool) (int, error) {
	return ks.m.removeFunc(func(k K, _ V) bool { return fn(k) })
}

// ValuesView is a live view of the values of a Map. The same value may
// appear once per key holding it.
type ValuesView[K comparable, V any] struct {
	m *Map[K, V]
}

// ValuesView returns a view of the values of m.
func (m *Map[K, V]) ValuesView() ValuesView[K, V] {
	return ValuesView[K, V]{m: m}
}

// Len returns the number of entries, counting duplicate values.
func (vs ValuesView[K, V]) Len() int { return vs.m.size }

// Contains reports whether any key maps to value.
func (vs ValuesView[K, V]) Contains(value V) bool { return vs.m.ContainsValue(value) }

// Clear removes every entry of the map.
func (vs ValuesView[K, V]) Clear() { vs.m.Clear() }

// All returns an iterator over the values.
func (vs ValuesView[K, V]) All() iter.Seq[V] { return vs.m.Values() }

// Iter returns an iterator over the entries of the map.
func (vs ValuesView[K, V]) Iter() *Iterator[K, V] { return vs.m.Iter() }

// Remove deletes one entry holding value, if any.
func (vs ValuesView[K, V]) Remove(value V) bool {
	it := vs.m.Iter()
	for it.Next() {
		if vs.m.valEqual(it.Value(), value) {
			return it.Remove() == nil
		}
	}
	return false
}

// RemoveFunc deletes every entry whose value satisfies fn.
func (vs ValuesView[K, V]) RemoveFunc(fn func(value V) bool) (int, error) {
	return vs.m.removeFunc(func(_ K, v V) bool { return fn(v) })
}

// Entry is a key/value pair as seen through an EntrySet.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// EntrySet is a live view of the entries of a Map.
type EntrySet[K comparable, V any] struct {
	m *Map[K, V]
}

// EntrySet returns a view of the entries of m.
func (m *Map[K, V]) EntrySet() EntrySet[K, V] {
	return EntrySet[K, V]{m: m}
}

// Len returns the number of entries.
func (es EntrySet[K, V]) Len() int { return es.m.size }

// Clear removes every entry of the map.
func (es EntrySet[K, V]) Clear() { es.m.Clear() }

// All returns an iterator over the entries.
func (es EntrySet[K, V]) All() iter.Seq2[K, V] { return es.m.All() }

// Iter returns an iterator whose SetValue and Remove write through.
func (es EntrySet[K, V]) Iter() *Iterator[K, V] { return es.m.Iter() }

// Contains reports whether e.Key is present and mapped to e.Value.
func (es EntrySet[K, V]) Contains(e Entry[K, V]) bool {
	r := es.m.findEntry(es.m.hash(e.Key), e.Key)
	return r.h != 0 && es.m.valEqual(es.m.arena.slots[r.h].value, e.Value)
}

// Remove deletes e.Key if it is mapped to e.Value.
func (es EntrySet[K, V]) Remove(e Entry[K, V]) bool {
	return es.m.RemoveIf(e.Key, e.Value)
}

// RemoveFunc deletes every entry for which fn returns true.
func (es EntrySet[K, V]) RemoveFunc(fn func(key K, value V) bool) (int, error) {
	return es.m.removeFunc(fn)
}

// removeFunc removes through an iterator, so the remaining entries keep
// their relative order.
func (m *Map[K, V]) removeFunc(fn func(key K, value V) bool) (int, error) {
	n := 0
	it := m.Iter()
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			continue
		}
		if err := it.Remove(); err != nil {
			return n, err
		}
		n++
	}
	return n, it.Err()
}
