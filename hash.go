package hmap

import (
	"math/bits"
	"unsafe"

	"github.com/dolthub/maphash"
)

// spread folds the high half of a hash into the low half.
// Bucket indices only use the low bits of the hash, so keys whose hash
// codes differ mainly in the upper bits would otherwise all collide.
func spread(h uint32) uint32 {
	return h ^ (h >> 16)
}

// fold64 reduces a 64-bit hash to 32 bits keeping entropy from both halves.
func fold64(h uint64) uint32 {
	return uint32(h ^ (h >> 32))
}

// defaultHasher returns the native hash for K.
// Integer keys hash to their own value (folded to 32 bits), which keeps
// sequential keys in sequential buckets. All other comparable types go
// through the runtime hasher via maphash.
func defaultHasher[K comparable]() func(K) uint32 {
	switch any(*new(K)).(type) {
	case int, uint, uintptr:
		if bits.UintSize == 32 {
			return func(key K) uint32 {
				return uint32(*(*uintptr)(unsafe.Pointer(&key)))
			}
		}
		return func(key K) uint32 {
			return fold64(uint64(*(*uintptr)(unsafe.Pointer(&key))))
		}

	case int64, uint64:
		return func(key K) uint32 {
			return fold64(*(*uint64)(unsafe.Pointer(&key)))
		}

	case int32, uint32:
		return func(key K) uint32 {
			return *(*uint32)(unsafe.Pointer(&key))
		}

	case int16, uint16:
		return func(key K) uint32 {
			return uint32(*(*uint16)(unsafe.Pointer(&key)))
		}

	case int8, uint8:
		return func(key K) uint32 {
			return uint32(*(*uint8)(unsafe.Pointer(&key)))
		}

	default:
		h := maphash.NewHasher[K]()
		return func(key K) uint32 {
			return fold64(h.Hash(key))
		}
	}
}

// tableSizeFor calculates the smallest power of 2 that is greater than or
// equal to n, clamped to [1, MaximumCapacity].
func tableSizeFor(n int) int {
	if n <= 1 {
		return 1
	}
	if n >= MaximumCapacity {
		return MaximumCapacity
	}
	return 1 << bits.Len(uint(n-1))
}
