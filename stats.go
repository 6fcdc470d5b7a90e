package hmap

import (
	"fmt"
	"strings"
)

// Stats returns statistics for the Map. It is an O(N) operation, so it
// should be used only for diagnostics or debugging purposes.
func (m *Map[K, V]) Stats() *MapStats {
	stats := &MapStats{
		Capacity:         len(m.table),
		Threshold:        m.threshold,
		Counter:          m.size,
		LoadFactor:       m.loadFactor,
		ArenaSlots:       max(len(m.arena.slots)-1, 0),
		FreeSlots:        len(m.arena.free),
		TotalGrowths:     m.totalGrowths,
		TotalTreeifies:   m.totalTreeifies,
		TotalUntreeifies: m.totalUntreeifies,
	}
	s := m.arena.slots
	for _, b := range m.table {
		n := 0
		for e := b.head; e != 0; e = s[e].next {
			n++
		}
		stats.Size += n
		switch b.kind {
		case emptyBin:
			stats.EmptyBins++
		case chainBin:
			stats.ChainBins++
			stats.MaxChainLen = max(stats.MaxChainLen, n)
		case treeBin:
			stats.TreeBins++
			stats.MaxTreeSize = max(stats.MaxTreeSize, n)
		}
	}
	return stats
}

// MapStats is Map statistics.
//
// Warning: map statistics are intented to be used for diagnostic
// purposes, not for production code. This means that breaking changes
// may be introduced into this struct even between minor releases.
type MapStats struct {
	// Capacity is the number of bins of the table, 0 before the
	// first insertion.
	Capacity int
	// Threshold is the size above which the next insertion resizes.
	Threshold int
	// Size is the number of entries found by walking every bin.
	Size int
	// Counter is the maintained entry count. It always equals Size
	// unless the map is corrupt.
	Counter int
	// EmptyBins, ChainBins and TreeBins count bins by representation.
	EmptyBins int
	ChainBins int
	TreeBins  int
	// MaxChainLen is the length of the longest chain bin.
	MaxChainLen int
	// MaxTreeSize is the number of entries of the largest tree bin.
	MaxTreeSize int
	// ArenaSlots is the number of entry slots ever allocated;
	// FreeSlots of them are waiting to be reused.
	ArenaSlots int
	FreeSlots  int
	LoadFactor float64
	// TotalGrowths is the number of times the table was doubled.
	TotalGrowths uint32
	// TotalTreeifies is the number of chain bins converted to trees.
	TotalTreeifies uint32
	// TotalUntreeifies is the number of tree bins converted back
	// into chains.
	TotalUntreeifies uint32
}

// ToString returns string representation of map stats.
func (s *MapStats) ToString() string {
	var sb strings.Builder
	sb.WriteString("MapStats{\n")
	sb.WriteString(fmt.Sprintf("Capacity:         %d\n", s.Capacity))
	sb.WriteString(fmt.Sprintf("Threshold:        %d\n", s.Threshold))
	sb.WriteString(fmt.Sprintf("Size:             %d\n", s.Size))
	sb.WriteString(fmt.Sprintf("Counter:          %d\n", s.Counter))
	sb.WriteString(fmt.Sprintf("EmptyBins:        %d\n", s.EmptyBins))
	sb.WriteString(fmt.Sprintf("ChainBins:        %d\n", s.ChainBins))
	sb.WriteString(fmt.Sprintf("TreeBins:         %d\n", s.TreeBins))
	sb.WriteString(fmt.Sprintf("MaxChainLen:      %d\n", s.MaxChainLen))
	sb.WriteString(fmt.Sprintf("MaxTreeSize:      %d\n", s.MaxTreeSize))
	sb.WriteString(fmt.Sprintf("ArenaSlots:       %d\n", s.ArenaSlots))
	sb.WriteString(fmt.Sprintf("FreeSlots:        %d\n", s.FreeSlots))
	sb.WriteString(fmt.Sprintf("LoadFactor:       %g\n", s.LoadFactor))
	sb.WriteString(fmt.Sprintf("TotalGrowths:     %d\n", s.TotalGrowths))
	sb.WriteString(fmt.Sprintf("TotalTreeifies:   %d\n", s.TotalTreeifies))
	sb.WriteString(fmt.Sprintf("TotalUntreeifies: %d\n", s.TotalUntreeifies))
	sb.WriteString("}\n")
	return sb.String()
}
