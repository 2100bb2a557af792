package hnsw

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrInconsistent is returned when restored graph state contradicts itself.
var ErrInconsistent = errors.New("hnsw: inconsistent graph state")

// Snapshot is the persisted form of a graph.
type Snapshot struct {
	// Levels holds one level per slot; -1 marks an empty slot.
	Levels []int32

	// Links returns the neighbors of slot on level.
	Links func(slot uint32, level int) []uint32

	// Removed lists tombstoned slots.
	Removed *roaring.Bitmap

	Entry    uint32
	MaxLevel int
}

// Export captures the graph for persistence. Callers must keep mutations out
// while the snapshot is used.
func (h *HNSW) Export() Snapshot {
	slots := h.Slots()
	levels := make([]int32, slots)
	for slot := uint32(0); slot < slots; slot++ {
		levels[slot] = int32(h.Level(slot))
	}
	entry, _ := h.EntryPoint()
	return Snapshot{
		Levels:   levels,
		Links:    h.Neighbors,
		Removed:  h.tombstones.ToRoaring(),
		Entry:    entry,
		MaxLevel: h.MaxLevel(),
	}
}

// Restore replaces the graph with snap. Links are validated against the
// slot range and the levels of their targets.
func (h *HNSW) Restore(snap Snapshot) error {
	slots := uint32(len(snap.Levels))
	nodes := make([]*node, slots)
	for slot, level := range snap.Levels {
		if level < 0 {
			continue
		}
		if int(level) > maxLevel {
			return fmt.Errorf("%w: slot %d has level %d", ErrInconsistent, slot, level)
		}
		nodes[slot] = newNode(int(level))
	}

	for slot, n := range nodes {
		if n == nil {
			continue
		}
		for l := 0; l <= n.level; l++ {
			links := snap.Links(uint32(slot), l)
			if len(links) > h.maxConns(l) {
				return fmt.Errorf("%w: slot %d holds %d links on level %d", ErrInconsistent, slot, len(links), l)
			}
			for _, id := range links {
				if id >= slots || nodes[id] == nil || nodes[id].level < l {
					return fmt.Errorf("%w: slot %d links to %d on level %d", ErrInconsistent, slot, id, l)
				}
			}
			n.setNeighbors(l, links)
		}
	}

	if snap.MaxLevel >= 0 {
		if snap.Entry >= slots || nodes[snap.Entry] == nil || nodes[snap.Entry].level != snap.MaxLevel {
			return fmt.Errorf("%w: entry point %d at level %d", ErrInconsistent, snap.Entry, snap.MaxLevel)
		}
	}

	removed := snap.Removed
	if removed == nil {
		removed = roaring.New()
	}

	h.top.Lock()
	defer h.top.Unlock()
	h.slotsMu.Lock()
	defer h.slotsMu.Unlock()

	h.resetNodes()
	live := int64(0)
	for slot, n := range nodes {
		s := uint32(slot)
		if n == nil {
			h.free.Add(s)
			continue
		}
		h.setNode(s, n)
		if removed.Contains(s) {
			h.tombstones.Set(s)
			h.free.Add(s)
			continue
		}
		live++
	}
	h.next = slots
	h.live.Store(live)
	h.entry.Store(snap.Entry)
	h.maxLevel.Store(int32(snap.MaxLevel))
	return nil
}
