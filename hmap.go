package hmap

import (
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// DefaultInitialCapacity is the table length allocated on first use
	// when no capacity was requested.
	DefaultInitialCapacity = 1 << 4
	// MaximumCapacity bounds the table length. Growth beyond it is
	// clamped, and the threshold is pinned to math.MaxInt32.
	MaximumCapacity = 1 << 30
	// DefaultLoadFactor is used when no load factor was configured.
	DefaultLoadFactor = 0.75
	// MaxLoadFactor is the largest accepted load factor.
	MaxLoadFactor = 4.0

	// TreeifyThreshold is the chain length at which a bin is converted
	// into a tree, provided the table has at least MinTreeifyCapacity
	// buckets.
	TreeifyThreshold = 8
	// UntreeifyThreshold is the size at or below which a tree bin that
	// was split by a resize is converted back into a chain.
	UntreeifyThreshold = 6
	// MinTreeifyCapacity is the smallest table length on which bins are
	// treeified. Smaller tables are resized instead.
	MinTreeifyCapacity = 64
)

// binKind tags the representation of one bucket.
type binKind uint8

const (
	emptyBin binKind = iota
	chainBin
	treeBin
)

func (k binKind) String() string {
	switch k {
	case emptyBin:
		return "empty"
	case chainBin:
		return "chain"
	case treeBin:
		return "tree"
	}
	return "invalid"
}

// bin is one bucket of the table: Empty, Chain(head) or Tree(head).
// For tree bins head is the first entry of the linked view; after any
// movable tree operation it is also the tree root.
type bin struct {
	kind binKind
	head Handle
}

// Map is a hash map with chained buckets that convert into red-black
// trees when they grow past TreeifyThreshold entries.
//
// A Map must not be copied after first use and must not be modified
// concurrently. Iterators, views and bulk traversals detect concurrent
// structural modification on a best-effort basis and report it as
// ErrConcurrentModification.
type Map[K comparable, V any] struct {
	table []bin
	arena arena[K, V]
	size  int
	// modCount is the structural generation: bumped on every key
	// insertion or removal, never on value-only updates.
	modCount int
	// threshold is capacity*loadFactor once the table exists; before
	// that it holds the requested initial capacity (0 for default).
	threshold  int
	loadFactor float64

	keyHash    func(K) uint32
	keyEqual   func(K, K) bool
	keyCompare func(K, K) int
	valEqual   func(V, V) bool
	ifaceKey   bool
	hooks      Hooks
	logger     *zap.Logger

	totalGrowths     uint32
	totalTreeifies   uint32
	totalUntreeifies uint32
}

// New creates a Map configured by options. It fails with
// ErrIllegalCapacity, ErrIllegalLoadFactor or ErrIllegalOption, in which
// case no map is created.
//
// Parameters:
//   - WithInitialCapacity, WithLoadFactor, WithPresize for sizing
//   - WithKeyHash, WithKeyEqual, WithKeyCompare, WithValueEqual for the key contract
//   - WithHooks, WithLogger for extension and diagnostics
func New[K comparable, V any](options ...func(*MapConfig)) (*Map[K, V], error) {
	m := &Map[K, V]{}
	if err := m.init(newMapConfig(options...)); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew[K comparable, V any](options ...func(*MapConfig)) *Map[K, V] {
	m, err := New[K, V](options...)
	if err != nil {
		panic(err)
	}
	return m
}

// NewFromMap creates a Map holding the entries of src, sized up front so
// that loading does not resize repeatedly.
func NewFromMap[K comparable, V any](src map[K]V, options ...func(*MapConfig)) (*Map[K, V], error) {
	m, err := New[K, V](options...)
	if err != nil {
		return nil, err
	}
	m.FromMap(src)
	return m, nil
}

func newMapConfig(options ...func(*MapConfig)) *MapConfig {
	c := &MapConfig{loadFactor: DefaultLoadFactor}
	for _, o := range options {
		o(c)
	}
	return c
}

func (m *Map[K, V]) init(c *MapConfig) error {
	if c.hasCapacity && c.initialCapacity < 0 {
		return errors.Wrapf(ErrIllegalCapacity, "capacity %d", c.initialCapacity)
	}
	lf := c.loadFactor
	if math.IsNaN(lf) || math.IsInf(lf, 0) || lf <= 0 || lf > MaxLoadFactor {
		return errors.Wrapf(ErrIllegalLoadFactor, "load factor %v", lf)
	}

	var (
		keyHash    func(K) uint32
		keyEqual   func(K, K) bool
		keyCompare func(K, K) int
		valEqual   func(V, V) bool
		ok         bool
	)
	if c.keyHash != nil {
		if keyHash, ok = c.keyHash.(func(K) uint32); !ok {
			return errors.Wrapf(ErrIllegalOption, "key hash %T for key type %T", c.keyHash, *new(K))
		}
	}
	if c.keyEqual != nil {
		if keyEqual, ok = c.keyEqual.(func(K, K) bool); !ok {
			return errors.Wrapf(ErrIllegalOption, "key equality %T for key type %T", c.keyEqual, *new(K))
		}
	}
	if c.keyCompare != nil {
		if keyCompare, ok = c.keyCompare.(func(K, K) int); !ok {
			return errors.Wrapf(ErrIllegalOption, "key comparator %T for key type %T", c.keyCompare, *new(K))
		}
	}
	if c.valEqual != nil {
		if valEqual, ok = c.valEqual.(func(V, V) bool); !ok {
			return errors.Wrapf(ErrIllegalOption, "value equality %T for value type %T", c.valEqual, *new(V))
		}
	}

	if valEqual == nil && !reflect.TypeFor[V]().Comparable() {
		return errors.Wrapf(ErrIllegalOption, "value type %T is not comparable and needs WithValueEqual", *new(V))
	}

	m.loadFactor = lf
	m.keyHash = keyHash
	m.keyEqual = keyEqual
	m.keyCompare = keyCompare
	m.valEqual = valEqual
	m.hooks = c.hooks
	m.logger = c.logger
	m.initDefaults()

	if c.hasCapacity {
		m.threshold = tableSizeFor(c.initialCapacity)
	}
	if c.sizeHint > 0 {
		m.presize(c.sizeHint)
	}
	return nil
}

// initDefaults fills in every unset collaborator. It is what makes the
// zero Map usable.
func (m *Map[K, V]) initDefaults() {
	if m.loadFactor == 0 {
		m.loadFactor = DefaultLoadFactor
	}
	if m.keyHash == nil {
		m.keyHash = defaultHasher[K]()
	}
	if m.keyEqual == nil {
		m.keyEqual = func(a, b K) bool { return a == b }
	}
	if m.valEqual == nil {
		if reflect.TypeFor[V]().Comparable() {
			m.valEqual = func(a, b V) bool { return any(a) == any(b) }
		} else {
			// Only reachable through the zero Map; New rejects this.
			m.valEqual = func(V, V) bool {
				panic(errors.Wrapf(ErrIllegalOption, "value type %T is not comparable", *new(V)))
			}
		}
	}
	if m.hooks == nil {
		m.hooks = NopHooks{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.ifaceKey = reflect.TypeFor[K]().Kind() == reflect.Interface
}

// hash computes the spread hash of key. A nil interface key hashes to 0.
func (m *Map[K, V]) hash(key K) uint32 {
	if m.keyHash == nil {
		m.initDefaults()
	}
	if m.ifaceKey && any(key) == nil {
		return 0
	}
	return spread(m.keyHash(key))
}

// capacity reports the current table length, or the length the table
// will have once allocated.
func (m *Map[K, V]) capacity() int {
	if len(m.table) > 0 {
		return len(m.table)
	}
	if m.threshold > 0 {
		return m.threshold
	}
	return DefaultInitialCapacity
}

// presize prepares the map to receive n more entries.
func (m *Map[K, V]) presize(n int) {
	if n <= 0 {
		return
	}
	if m.loadFactor == 0 {
		m.initDefaults()
	}
	if len(m.table) == 0 {
		ft := float64(n)/m.loadFactor + 1
		t := MaximumCapacity
		if ft < float64(MaximumCapacity) {
			t = int(ft)
		}
		if t > m.threshold {
			m.threshold = tableSizeFor(t)
		}
		return
	}
	for n > m.threshold && len(m.table) < MaximumCapacity {
		m.resize()
	}
}

// lookup is the result of locating a key: the bin it hashes to and the
// entry holding it, if any. For chain bins it also records the
// predecessor of the match, or the tail and length when there is none.
type lookup struct {
	index int // -1 while the table is unallocated
	h     Handle
	pred  Handle
	tail  Handle
	count int
}

func (m *Map[K, V]) findEntry(hash uint32, key K) lookup {
	r := lookup{index: -1}
	n := len(m.table)
	if n == 0 {
		return r
	}
	r.index = int(hash & uint32(n-1))
	b := m.table[r.index]
	switch b.kind {
	case emptyBin:
	case chainBin:
		s := m.arena.slots
		var pred Handle
		for e := b.head; e != 0; e = s[e].next {
			if s[e].hash == hash && m.keyEqual(s[e].key, key) {
				r.h, r.pred = e, pred
				return r
			}
			pred = e
			r.count++
		}
		r.tail = pred
	case treeBin:
		r.h = m.findTreeNode(m.treeRoot(b.head), hash, key)
	default:
		panic("hmap: invalid bin kind " + b.kind.String())
	}
	return r
}

// Get returns the value stored for key. The second result reports whether
// the key is present, which distinguishes a stored zero value from absence.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	r := m.findEntry(m.hash(key), key)
	if r.h == 0 {
		return
	}
	value = m.arena.slots[r.h].value
	m.hooks.AfterAccess(r.h)
	return value, true
}

// GetOrDefault returns the value stored for key, or defaultValue when the
// key is absent.
func (m *Map[K, V]) GetOrDefault(key K, defaultValue V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	return defaultValue
}

// ContainsKey reports whether key is present.
func (m *Map[K, V]) ContainsKey(key K) bool {
	return m.findEntry(m.hash(key), key).h != 0
}

// ContainsValue reports whether any key maps to value. It is O(n).
func (m *Map[K, V]) ContainsValue(value V) bool {
	if m.size == 0 {
		return false
	}
	s := m.arena.slots
	for _, b := range m.table {
		for e := b.head; e != 0; e = s[e].next {
			if m.valEqual(s[e].value, value) {
				return true
			}
		}
	}
	return false
}

// EntryAt returns the key and value of the entry behind h. It is meant for
// Hooks implementations and stays valid for a removed entry until its
// AfterRemove call returns. ok is false for released handles.
func (m *Map[K, V]) EntryAt(h Handle) (key K, value V, ok bool) {
	if h <= 0 || int(h) >= len(m.arena.slots) {
		return
	}
	e := &m.arena.slots[h]
	if !e.inUse {
		return
	}
	return e.key, e.value, true
}

// Size returns the number of keys present.
// This is an O(1) operation.
func (m *Map[K, V]) Size() int {
	return m.size
}

// IsZero reports whether the map is empty.
func (m *Map[K, V]) IsZero() bool {
	return m.size == 0
}

// Clear removes every entry. The table keeps its capacity. AfterRemove
// is called for each entry before the storage is reset.
func (m *Map[K, V]) Clear() {
	if m.size == 0 {
		return
	}
	m.modCount++
	m.removeAllHooks()
	m.size = 0
	clear(m.table)
	m.arena.reset()
}

// removeAllHooks reports every linked entry to AfterRemove ahead of a
// bulk reset. Hooks must not modify the map from these calls.
func (m *Map[K, V]) removeAllHooks() {
	if m.size == 0 {
		return
	}
	if _, nop := m.hooks.(NopHooks); nop {
		return
	}
	s := m.arena.slots
	for _, b := range m.table {
		for e := b.head; e != 0; e = s[e].next {
			m.hooks.AfterRemove(e)
		}
	}
}

// Clone returns a copy of the map holding the same keys and values, with
// the same configuration and bin layout. Hooks are bound to a single map
// and are not carried over; the clone uses NopHooks.
func (m *Map[K, V]) Clone() *Map[K, V] {
	if m.keyHash == nil {
		m.initDefaults()
	}
	c := &Map[K, V]{
		size:             m.size,
		threshold:        m.threshold,
		loadFactor:       m.loadFactor,
		keyHash:          m.keyHash,
		keyEqual:         m.keyEqual,
		keyCompare:       m.keyCompare,
		valEqual:         m.valEqual,
		ifaceKey:         m.ifaceKey,
		hooks:            NopHooks{},
		logger:           m.logger,
		totalGrowths:     m.totalGrowths,
		totalTreeifies:   m.totalTreeifies,
		totalUntreeifies: m.totalUntreeifies,
	}
	if m.table != nil {
		c.table = append([]bin(nil), m.table...)
	}
	if m.arena.slots != nil {
		c.arena.slots = append([]entry[K, V](nil), m.arena.slots...)
		c.arena.free = append([]Handle(nil), m.arena.free...)
	}
	return c
}
