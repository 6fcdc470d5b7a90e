package hmap

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"io"
	"math"

	"github.com/cockroachdb/errors"
)

// persistHeader starts the persisted form. Capacity is informational;
// decoding sizes the table from Size and the receiving map's load factor.
type persistHeader struct {
	Capacity int
	Size     int
}

type persistPair[K comparable, V any] struct {
	Key   K
	Value V
}

// Encode writes the persisted form of m to w as a gob stream: a header
// holding the current capacity and size, followed by exactly Size
// key/value pairs in bucket order. Tree structure is never written.
//
// Keys and values must be encodable by encoding/gob; interface types
// need gob.Register.
func (m *Map[K, V]) Encode(w io.Writer) error {
	return m.encode(w, m.Range)
}

// encode writes the header of m and the pairs produced by walk.
func (m *Map[K, V]) encode(w io.Writer, walk func(func(K, V) bool)) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(persistHeader{Capacity: m.capacity(), Size: m.size}); err != nil {
		return errors.Wrap(err, "hmap: encode header")
	}
	var err error
	walk(func(k K, v V) bool {
		err = enc.Encode(persistPair[K, V]{Key: k, Value: v})
		return err == nil
	})
	return errors.Wrap(err, "hmap: encode entry")
}

// Decode replaces the contents of m with the persisted form read from r.
// The configuration of m (hash, equality, load factor, hooks) is kept.
// Existing entries are reported to AfterRemove, then the decoded ones
// are inserted without eviction. On error m is left unchanged
// and the error matches ErrCorruptStream.
func (m *Map[K, V]) Decode(r io.Reader) error {
	pairs, err := m.decodePairs(r)
	if err != nil {
		return err
	}
	m.load(pairs)
	return nil
}

// decodePairs reads and validates a whole persisted form.
func (m *Map[K, V]) decodePairs(r io.Reader) ([]persistPair[K, V], error) {
	dec := gob.NewDecoder(r)
	var hdr persistHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, decodeError(err, "header")
	}
	if hdr.Size < 0 {
		return nil, errors.Wrapf(ErrCorruptStream, "illegal mappings count %d", hdr.Size)
	}
	if hdr.Capacity < 0 {
		return nil, errors.Wrapf(ErrCorruptStream, "illegal capacity %d", hdr.Capacity)
	}
	pairs := make([]persistPair[K, V], 0, min(hdr.Size, 1<<16))
	for i := 0; i < hdr.Size; i++ {
		var p persistPair[K, V]
		if err := dec.Decode(&p); err != nil {
			return nil, decodeError(err, "entry %d of %d", i, hdr.Size)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func decodeError(err error, format string, args ...any) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrCorruptStream, "truncated "+format, args...)
	}
	return errors.Wrapf(errors.Mark(err, ErrCorruptStream), "hmap: decode "+format, args...)
}

// load rebuilds m from decoded pairs.
func (m *Map[K, V]) load(pairs []persistPair[K, V]) {
	if m.keyHash == nil {
		m.initDefaults()
	}
	m.removeAllHooks()
	m.table = nil
	m.arena = arena[K, V]{}
	m.size = 0
	m.modCount++
	m.threshold = 0
	if len(pairs) == 0 {
		return
	}

	lf := min(max(0.25, m.loadFactor), MaxLoadFactor)
	fc := float64(len(pairs))/lf + 1.0
	var capacity int
	switch {
	case fc < DefaultInitialCapacity:
		capacity = DefaultInitialCapacity
	case fc >= MaximumCapacity:
		capacity = MaximumCapacity
	default:
		capacity = tableSizeFor(int(fc))
	}
	ft := float64(capacity) * lf
	if capacity < MaximumCapacity && ft < MaximumCapacity {
		m.threshold = int(ft)
	} else {
		m.threshold = math.MaxInt32
	}
	m.table = make([]bin, capacity)
	m.arena.grow(len(pairs))

	for _, p := range pairs {
		hash := m.hash(p.Key)
		r := m.findEntry(hash, p.Key)
		if r.h != 0 {
			m.arena.slots[r.h].value = p.Value
			continue
		}
		m.insert(hash, p.Key, p.Value, r, false)
	}
}

// MarshalBinary implements encoding.BinaryMarshaler with the persisted
// form written by Encode.
func (m *Map[K, V]) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Map[K, V]) UnmarshalBinary(data []byte) error {
	return m.Decode(bytes.NewReader(data))
}

var (
	jsonMarshal   func(v any) ([]byte, error)
	jsonUnmarshal func(data []byte, v any) error
)

// SetDefaultJSONMarshal sets the default JSON serialization and deserialization functions.
// If not set, the standard library is used by default.
func SetDefaultJSONMarshal(marshal func(v any) ([]byte, error), unmarshal func(data []byte, v any) error) {
	jsonMarshal, jsonUnmarshal = marshal, unmarshal
}

// MarshalJSON JSON serialization
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	if jsonMarshal != nil {
		return jsonMarshal(m.ToMap())
	}
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON JSON deserialization. Entries are added to the existing
// ones.
func (m *Map[K, V]) UnmarshalJSON(data []byte) error {
	var a map[K]V
	if jsonUnmarshal != nil {
		if err := jsonUnmarshal(data, &a); err != nil {
			return err
		}
	} else {
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
	}
	m.FromMap(a)
	return nil
}
