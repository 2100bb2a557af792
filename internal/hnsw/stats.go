package hnsw

import "unsafe"

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level          int
	Nodes          int
	Edges          int
	MaxEdges       int
	AllocatedBytes int64
}

// Stats aggregates the whole graph.
type Stats struct {
	Nodes          int
	Removed        int
	Edges          int
	MaxEdges       int
	AllocatedBytes int64
	Levels         []LevelStats
}

// LevelStats reports the nodes present on level and their links there.
func (h *HNSW) LevelStats(level int) LevelStats {
	if level < 0 || level > h.MaxLevel() {
		return LevelStats{Level: level}
	}
	return h.Stats().Levels[level]
}

// Stats walks every node. Tombstoned nodes count as removed, not as nodes.
func (h *HNSW) Stats() Stats {
	top := max(h.MaxLevel(), 0)
	levels := make([]LevelStats, top+1)
	for l := range levels {
		levels[l].Level = l
	}

	var st Stats
	slots := h.Slots()
	for slot := uint32(0); slot < slots; slot++ {
		n := h.getNode(slot)
		if n == nil {
			continue
		}
		if h.tombstones.Test(slot) {
			st.Removed++
			continue
		}
		st.Nodes++
		st.AllocatedBytes += int64(unsafe.Sizeof(*n)) + int64(len(n.links))*int64(unsafe.Sizeof(n.links[0]))
		for l := 0; l <= n.level && l < len(levels); l++ {
			edges := len(n.neighbors(l))
			levels[l].Nodes++
			levels[l].Edges += edges
			levels[l].MaxEdges += h.maxConns(l)
			levels[l].AllocatedBytes += int64(edges) * 4
		}
	}

	for _, ls := range levels {
		st.Edges += ls.Edges
		st.MaxEdges += ls.MaxEdges
		st.AllocatedBytes += ls.AllocatedBytes
	}
	st.Levels = levels
	return st
}

// MemoryUsage estimates the bytes held by nodes, links and the node table.
func (h *HNSW) MemoryUsage() int64 {
	segs := int64(len(*h.nodes.Load()))
	return h.Stats().AllocatedBytes + segs*nodeSegmentSize*int64(unsafe.Sizeof(uintptr(0)))
}
