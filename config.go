package hmap

import (
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
)

// MapConfig defines configurable Map options.
type MapConfig struct {
	initialCapacity int
	hasCapacity     bool
	loadFactor      float64
	sizeHint        int
	keyHash         any // func(K) uint32
	keyEqual        any // func(K, K) bool
	keyCompare      any // func(K, K) int
	valEqual        any // func(V, V) bool
	hooks           Hooks
	logger          *zap.Logger
	removeEldest    any // func(size int, key K, value V) bool
}

// WithInitialCapacity configures the number of buckets allocated on the
// first insertion. It is rounded up to a power of two and clamped at
// MaximumCapacity. A negative capacity makes New fail with
// ErrIllegalCapacity.
func WithInitialCapacity(capacity int) func(*MapConfig) {
	return func(c *MapConfig) {
		c.initialCapacity = capacity
		c.hasCapacity = true
	}
}

// WithLoadFactor configures the ratio of entries to buckets that triggers
// a resize. It must be in (0, MaxLoadFactor]; the default is
// DefaultLoadFactor.
func WithLoadFactor(loadFactor float64) func(*MapConfig) {
	return func(c *MapConfig) {
		c.loadFactor = loadFactor
	}
}

// WithPresize configures new Map instance with capacity enough
// to hold sizeHint entries without resizing. If sizeHint is zero or
// negative, the value is ignored.
func WithPresize(sizeHint int) func(*MapConfig) {
	return func(c *MapConfig) {
		c.sizeHint = sizeHint
	}
}

// WithKeyHash replaces the built-in key hasher. Keys that are equal
// according to the key equality must produce the same hash.
func WithKeyHash[K any](keyHash func(key K) uint32) func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyHash = keyHash
	}
}

// WithKeyEqual replaces the == key equality.
func WithKeyEqual[K any](keyEqual func(a, b K) bool) func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyEqual = keyEqual
	}
}

// WithKeyCompare supplies a total order on keys. Tree bins use it to order
// keys with equal hashes, which keeps lookups in heavily colliding bins
// logarithmic. Without it, equal hashes are ordered by entry identity.
func WithKeyCompare[K any](keyCompare func(a, b K) int) func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyCompare = keyCompare
	}
}

// WithOrderedKeys is WithKeyCompare(OrderedCompare[K]).
func WithOrderedKeys[K constraints.Ordered]() func(*MapConfig) {
	return WithKeyCompare(OrderedCompare[K])
}

// WithValueEqual replaces the value equality used by RemoveIf, ReplaceIf
// and ContainsValue. The default is ==; New fails with ErrIllegalOption
// when V is not comparable and no equality was given.
func WithValueEqual[V any](valEqual func(a, b V) bool) func(*MapConfig) {
	return func(c *MapConfig) {
		c.valEqual = valEqual
	}
}

// WithHooks installs extension callbacks invoked after entries are
// accessed, inserted and removed.
func WithHooks(hooks Hooks) func(*MapConfig) {
	return func(c *MapConfig) {
		c.hooks = hooks
	}
}

// WithLogger sets the logger that receives debug events about resizes and
// bin conversions. The default logger discards everything.
func WithLogger(logger *zap.Logger) func(*MapConfig) {
	return func(c *MapConfig) {
		c.logger = logger
	}
}

// OrderedCompare only operates on constraints.Ordered.
func OrderedCompare[K constraints.Ordered](a, b K) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// Hooks are callbacks invoked by a Map at fixed points of its operations.
// They let an order-tracking variant (see LinkedMap) be layered on top of
// Map without changing its core logic. Handles passed to the callbacks are
// valid until AfterRemove returns for them.
type Hooks interface {
	// AfterAccess is called after Get finds an entry and after an
	// existing entry's value is replaced.
	AfterAccess(h Handle)
	// AfterInsert is called after a new entry was linked and any resize
	// it caused has completed. evict is false while a map is being
	// bulk-loaded from its persisted form.
	AfterInsert(h Handle, evict bool)
	// AfterRemove is called after an entry left the map, before its
	// handle is released; EntryAt still reads it during the call. Clear
	// and Decode call it for every entry they discard.
	AfterRemove(h Handle)
}

// NopHooks implements Hooks with no-ops.
type NopHooks struct{}

func (NopHooks) AfterAccess(Handle)       {}
func (NopHooks) AfterInsert(Handle, bool) {}
func (NopHooks) AfterRemove(Handle)       {}
