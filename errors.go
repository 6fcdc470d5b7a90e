package hmap

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrIllegalCapacity is returned by New when the initial capacity is negative.
	ErrIllegalCapacity = errors.New("hmap: illegal initial capacity")
	// ErrIllegalLoadFactor is returned by New when the load factor is not
	// a number in (0, MaxLoadFactor].
	ErrIllegalLoadFactor = errors.New("hmap: illegal load factor")
	// ErrIllegalOption is returned by New when a key or value function was
	// configured for a different type than the map's, or when a value
	// type that is not comparable has no WithValueEqual.
	ErrIllegalOption = errors.New("hmap: illegal option")
	// ErrConcurrentModification reports that the map was structurally
	// modified while an iterator, view or bulk traversal was using it.
	// Detection is best effort.
	ErrConcurrentModification = errors.New("hmap: concurrent modification")
	// ErrIllegalState is returned by Iterator.Remove when there is no
	// current entry to remove.
	ErrIllegalState = errors.New("hmap: illegal iterator state")
	// ErrCorruptStream is returned by Decode when the persisted form is
	// malformed.
	ErrCorruptStream = errors.New("hmap: corrupt stream")
)
