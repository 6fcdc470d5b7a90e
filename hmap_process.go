package hmap

import (
	"github.com/cockroachdb/errors"
)

// ComputeOp tells Process what to do with the entry once the callback
// has returned.
type ComputeOp int

const (
	// CancelOp leaves the map as it is: a missing entry is not
	// created and an existing one keeps its value.
	CancelOp ComputeOp = iota
	// UpdateOp stores the new value, creating the entry if necessary.
	UpdateOp
	// DeleteOp removes the entry if it exists.
	DeleteOp

	// accessOp is CancelOp that reports a read of an existing entry to
	// the hooks.
	accessOp
)

// Process is the single entry point for every keyed mutation. It locates
// key once, calls fn with the current value (zero when absent) and the
// presence flag, then applies the returned op with the returned new value.
// The last two results of fn are passed through as the results of Process.
//
// fn must not structurally modify the map (insert or remove keys). If it
// does, Process panics with ErrConcurrentModification after fn returns;
// the map itself stays consistent.
//
// Example:
//
//	m.Process(key, func(old int, loaded bool) (int, hmap.ComputeOp, int, bool) {
//		if loaded && old >= limit {
//			return old, hmap.DeleteOp, old, false
//		}
//		return old + 1, hmap.UpdateOp, old + 1, true
//	})
func (m *Map[K, V]) Process(
	key K,
	fn func(old V, loaded bool) (V, ComputeOp, V, bool),
) (V, bool) {
	hash := m.hash(key)
	r := m.findEntry(hash, key)
	var old V
	loaded := r.h != 0
	if loaded {
		old = m.arena.slots[r.h].value
	}

	mc := m.modCount
	newV, op, value, status := fn(old, loaded)
	if m.modCount != mc {
		panic(errors.Wrapf(ErrConcurrentModification, "map modified by the callback for key %v", key))
	}

	switch op {
	case CancelOp:
	case accessOp:
		if loaded {
			m.hooks.AfterAccess(r.h)
		}
	case UpdateOp:
		if loaded {
			m.arena.slots[r.h].value = newV
			m.hooks.AfterAccess(r.h)
		} else {
			m.insert(hash, key, newV, r, true)
		}
	case DeleteOp:
		if loaded {
			m.removeFound(r, true)
		}
	default:
		panic(errors.Newf("hmap: invalid compute op %d", op))
	}
	return value, status
}

// insert links a new entry for key, which must be absent, into the bin
// described by r. It returns the handle of the new entry.
func (m *Map[K, V]) insert(hash uint32, key K, value V, r lookup, evict bool) Handle {
	if r.index < 0 {
		m.resize()
		r = m.findEntry(hash, key)
	}
	h := m.arena.alloc(hash, key, value)
	s := m.arena.slots
	switch b := &m.table[r.index]; b.kind {
	case emptyBin:
		*b = bin{kind: chainBin, head: h}
	case chainBin:
		s[r.tail].next = h
		if r.count+1 >= TreeifyThreshold {
			m.treeifyBin(r.index)
		}
	case treeBin:
		m.treeInsert(r.index, h)
	default:
		panic("hmap: invalid bin kind " + b.kind.String())
	}
	m.modCount++
	m.size++
	if m.size > m.threshold {
		m.resize()
	}
	m.hooks.AfterInsert(h, evict)
	return h
}

// removeFound unlinks the entry located by r and returns its value.
func (m *Map[K, V]) removeFound(r lookup, movable bool) V {
	s := m.arena.slots
	switch b := &m.table[r.index]; b.kind {
	case chainBin:
		next := s[r.h].next
		switch {
		case r.pred != 0:
			s[r.pred].next = next
		case next != 0:
			b.head = next
		default:
			*b = bin{}
		}
	case treeBin:
		m.removeTreeNode(r.index, r.h, movable)
	default:
		panic("hmap: invalid bin kind " + b.kind.String())
	}
	v := s[r.h].value
	m.modCount++
	m.size--
	m.hooks.AfterRemove(r.h)
	m.arena.release(r.h)
	return v
}

// Put stores value for key and returns the previous value, if any.
func (m *Map[K, V]) Put(key K, value V) (previous V, loaded bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		return value, UpdateOp, old, loaded
	})
}

// PutIfAbsent stores value only if key is absent. It returns the value
// now associated with key and whether it was already present.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (actual V, loaded bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if loaded {
			return old, accessOp, old, true
		}
		return value, UpdateOp, value, false
	})
}

// Remove deletes key and returns its previous value, if any.
func (m *Map[K, V]) Remove(key K) (previous V, loaded bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		return old, DeleteOp, old, loaded
	})
}

// RemoveIf deletes key only if it is currently mapped to expected.
func (m *Map[K, V]) RemoveIf(key K, expected V) bool {
	_, ok := m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if loaded && m.valEqual(old, expected) {
			return old, DeleteOp, old, true
		}
		return old, CancelOp, old, false
	})
	return ok
}

// Replace stores value only if key is present, returning the value it
// replaced.
func (m *Map[K, V]) Replace(key K, value V) (previous V, loaded bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if !loaded {
			return old, CancelOp, old, false
		}
		return value, UpdateOp, old, true
	})
}

// ReplaceIf stores newValue only if key is currently mapped to oldValue.
func (m *Map[K, V]) ReplaceIf(key K, oldValue, newValue V) bool {
	_, ok := m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if loaded && m.valEqual(old, oldValue) {
			return newValue, UpdateOp, newValue, true
		}
		return old, CancelOp, old, false
	})
	return ok
}

// ComputeIfAbsent returns the value of key if present. Otherwise it calls
// fn and, unless fn reports no value, stores and returns its result.
func (m *Map[K, V]) ComputeIfAbsent(key K, fn func(key K) (V, bool)) (V, bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if loaded {
			return old, accessOp, old, true
		}
		v, ok := fn(key)
		if !ok {
			return old, CancelOp, old, false
		}
		return v, UpdateOp, v, true
	})
}

// ComputeIfPresent calls fn with the current value of key, if present.
// The result replaces the value, or removes the key when fn reports no
// value.
func (m *Map[K, V]) ComputeIfPresent(key K, fn func(key K, old V) (V, bool)) (V, bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if !loaded {
			return old, CancelOp, old, false
		}
		v, ok := fn(key, old)
		if !ok {
			var zero V
			return zero, DeleteOp, zero, false
		}
		return v, UpdateOp, v, true
	})
}

// Compute calls fn with the current value of key and its presence. The
// result becomes the new value, or the key is removed when fn reports no
// value.
func (m *Map[K, V]) Compute(key K, fn func(key K, old V, loaded bool) (V, bool)) (V, bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		v, ok := fn(key, old, loaded)
		if !ok {
			var zero V
			if loaded {
				return zero, DeleteOp, zero, false
			}
			return zero, CancelOp, zero, false
		}
		return v, UpdateOp, v, true
	})
}

// Merge stores value if key is absent. Otherwise it combines the current
// value with value through fn, removing the key when fn reports no value.
func (m *Map[K, V]) Merge(key K, value V, fn func(old, value V) (V, bool)) (V, bool) {
	return m.Process(key, func(old V, loaded bool) (V, ComputeOp, V, bool) {
		if !loaded {
			return value, UpdateOp, value, true
		}
		v, ok := fn(old, value)
		if !ok {
			var zero V
			return zero, DeleteOp, zero, false
		}
		return v, UpdateOp, v, true
	})
}

// PutAll copies every entry of src into m.
func (m *Map[K, V]) PutAll(src *Map[K, V]) {
	if src == nil || src.size == 0 {
		return
	}
	m.presize(m.size + src.size)
	s := src.arena.slots
	for _, b := range src.table {
		for e := b.head; e != 0; e = s[e].next {
			m.Put(s[e].key, s[e].value)
		}
	}
}

// FromMap copies every entry of src into m.
func (m *Map[K, V]) FromMap(src map[K]V) {
	if len(src) == 0 {
		return
	}
	m.presize(m.size + len(src))
	for k, v := range src {
		m.Put(k, v)
	}
}

// ReplaceAll replaces every value with the result of fn. It returns
// ErrConcurrentModification if fn changed the set of keys.
func (m *Map[K, V]) ReplaceAll(fn func(key K, value V) V) error {
	if m.size == 0 {
		return nil
	}
	mc := m.modCount
	tab := m.table
	for _, b := range tab {
		for e := b.head; e != 0; {
			s := m.arena.slots
			s[e].value = fn(s[e].key, s[e].value)
			if m.modCount != mc {
				return errors.Wrap(ErrConcurrentModification, "replace all")
			}
			e = s[e].next
		}
	}
	return nil
}
