package hmap

import (
	"math"

	"go.uber.org/zap"
)

// resize allocates the table on first use, or doubles it. Entries are
// redistributed by the single hash bit the new mask adds: each old bin
// splits into a lo part that keeps its index and a hi part at
// index+oldCap, both preserving their relative order. Returns the new
// table length.
func (m *Map[K, V]) resize() int {
	if m.loadFactor == 0 {
		m.initDefaults()
	}
	oldTab := m.table
	oldCap := len(oldTab)
	oldThr := m.threshold
	var newCap, newThr int
	switch {
	case oldCap > 0:
		if oldCap >= MaximumCapacity {
			m.threshold = math.MaxInt32
			return oldCap
		}
		newCap = oldCap << 1
		if newCap < MaximumCapacity && oldCap >= DefaultInitialCapacity {
			newThr = oldThr << 1
		}
	case oldThr > 0:
		// Initial capacity was placed in threshold.
		newCap = oldThr
	default:
		newCap = DefaultInitialCapacity
	}
	if newThr == 0 {
		ft := float64(newCap) * m.loadFactor
		if newCap < MaximumCapacity && ft < float64(MaximumCapacity) {
			newThr = int(ft)
		} else {
			newThr = math.MaxInt32
		}
	}
	m.threshold = newThr

	newTab := make([]bin, newCap)
	m.table = newTab
	if oldTab != nil {
		s := m.arena.slots
		for j, b := range oldTab {
			switch b.kind {
			case emptyBin:
				continue
			case treeBin:
				m.splitTree(b.head, j, oldCap)
				continue
			case chainBin:
			default:
				panic("hmap: invalid bin kind " + b.kind.String())
			}
			e := b.head
			if s[e].next == 0 {
				newTab[s[e].hash&uint32(newCap-1)] = b
				continue
			}
			var loHead, loTail, hiHead, hiTail Handle
			for e != 0 {
				next := s[e].next
				if s[e].hash&uint32(oldCap) == 0 {
					if loTail == 0 {
						loHead = e
					} else {
						s[loTail].next = e
					}
					loTail = e
				} else {
					if hiTail == 0 {
						hiHead = e
					} else {
						s[hiTail].next = e
					}
					hiTail = e
				}
				e = next
			}
			if loTail != 0 {
				s[loTail].next = 0
				newTab[j] = bin{kind: chainBin, head: loHead}
			}
			if hiTail != 0 {
				s[hiTail].next = 0
				newTab[j+oldCap] = bin{kind: chainBin, head: hiHead}
			}
		}
		clear(oldTab)
		m.totalGrowths++
	}
	if ce := m.logger.Check(zap.DebugLevel, "hmap: resize"); ce != nil {
		ce.Write(
			zap.Int("oldCapacity", oldCap),
			zap.Int("newCapacity", newCap),
			zap.Int("threshold", newThr),
			zap.Int("size", m.size),
		)
	}
	return newCap
}
