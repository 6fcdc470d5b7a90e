package hmap

import (
	"math"
)

// Handle identifies an entry stored in a Map. A handle stays valid from the
// insertion of its entry until the entry is removed; resizes and bin
// conversions never change it. The zero Handle refers to no entry.
type Handle int32

// entry is one key/value pair. Chain bins only use next; tree bins also
// maintain parent/left/right/red and the prev back-link of the linked view.
type entry[K comparable, V any] struct {
	hash   uint32
	red    bool
	inUse  bool
	next   Handle
	prev   Handle
	parent Handle
	left   Handle
	right  Handle
	key    K
	value  V
}

// arena is the backing storage of all entries of a Map.
// Slot 0 is reserved so that the zero Handle means "none".
type arena[K comparable, V any] struct {
	slots []entry[K, V]
	free  []Handle
}

func (a *arena[K, V]) grow(n int) {
	if cap(a.slots)-len(a.slots) >= n {
		return
	}
	slots := make([]entry[K, V], len(a.slots), len(a.slots)+n+1)
	copy(slots, a.slots)
	a.slots = slots
}

func (a *arena[K, V]) alloc(hash uint32, key K, value V) Handle {
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = entry[K, V]{hash: hash, inUse: true, key: key, value: value}
		return h
	}
	if len(a.slots) == 0 {
		a.slots = append(a.slots, entry[K, V]{})
	}
	if len(a.slots) > math.MaxInt32 {
		panic("hmap: entry arena exhausted")
	}
	a.slots = append(a.slots, entry[K, V]{hash: hash, inUse: true, key: key, value: value})
	return Handle(len(a.slots) - 1)
}

// release zeroes the slot so its key and value become unreachable.
func (a *arena[K, V]) release(h Handle) {
	a.slots[h] = entry[K, V]{}
	a.free = append(a.free, h)
}

func (a *arena[K, V]) reset() {
	clear(a.slots)
	if len(a.slots) > 0 {
		a.slots = a.slots[:1]
	}
	a.free = a.free[:0]
}

func (a *arena[K, V]) live() int {
	if len(a.slots) == 0 {
		return 0
	}
	return len(a.slots) - 1 - len(a.free)
}
