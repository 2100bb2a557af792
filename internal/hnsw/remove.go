package hnsw

import (
	"context"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/searcher"
)

// Remove tombstones slot and queues it for reuse. Its links stay in place
// and keep routing traversals until the slot is isolated or reused.
func (h *HNSW) Remove(slot uint32) (bool, error) {
	if h.readOnly.Load() {
		return false, ErrReadOnly
	}
	if h.getNode(slot) == nil || !h.tombstones.Set(slot) {
		return false, nil
	}
	h.live.Add(-1)

	h.slotsMu.Lock()
	h.free.Add(slot)
	h.slotsMu.Unlock()
	return true, nil
}

// Isolate removes every link pointing at a tombstoned slot. A node that loses
// neighbors is relinked with the selection heuristic over its live neighbors
// and the live neighbors of the removed ones. Tombstoned nodes lose their own
// links. Callers must not run Isolate concurrently with other mutations.
func (h *HNSW) Isolate(ctx context.Context, threads int) error {
	if h.readOnly.Load() {
		return ErrReadOnly
	}
	removed := h.tombstones.ToRoaring()
	if removed.IsEmpty() {
		return nil
	}

	slots := int(h.Slots())
	err := resource.ForEach(ctx, threads, slots, func(_ context.Context, i int) error {
		slot := uint32(i)
		if removed.Contains(slot) {
			return nil
		}
		h.repair(slot, removed)
		return nil
	})
	if err != nil {
		return err
	}

	it := removed.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if n := h.getNode(slot); n != nil {
			for l := 0; l <= n.level; l++ {
				n.setNeighbors(l, nil)
			}
		}
	}

	h.pickEntry(removed)
	return nil
}

// repair rewrites the links of slot that reference removed slots.
func (h *HNSW) repair(slot uint32, removed *roaring.Bitmap) {
	n := h.getNode(slot)
	if n == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for l := 0; l <= n.level; l++ {
		links := n.neighbors(l)
		if !slices.ContainsFunc(links, removed.Contains) {
			continue
		}

		seen := map[uint32]struct{}{slot: {}}
		var candidates []searcher.Item
		add := func(id uint32) {
			if removed.Contains(id) {
				return
			}
			if _, ok := seen[id]; ok {
				return
			}
			seen[id] = struct{}{}
			candidates = append(candidates, searcher.Item{Node: id, Distance: h.distance(slot, id)})
		}

		for _, id := range links {
			if !removed.Contains(id) {
				add(id)
				continue
			}
			for _, hop := range h.Neighbors(id, l) {
				add(hop)
			}
		}

		slices.SortFunc(candidates, compareItems)
		kept := h.selectNeighbors(candidates, h.maxConns(l))
		next := make([]uint32, len(kept))
		for i, it := range kept {
			next[i] = it.Node
		}
		n.setNeighbors(l, next)
	}
}

// pickEntry moves the entry point off a removed slot onto the highest live node.
func (h *HNSW) pickEntry(removed *roaring.Bitmap) {
	h.top.Lock()
	defer h.top.Unlock()

	if h.maxLevel.Load() < 0 || !removed.Contains(h.entry.Load()) {
		return
	}

	best, bestLevel := uint32(0), -1
	slots := h.Slots()
	for slot := uint32(0); slot < slots; slot++ {
		n := h.getNode(slot)
		if n == nil || removed.Contains(slot) {
			continue
		}
		if n.level > bestLevel {
			best, bestLevel = slot, n.level
		}
	}
	h.entry.Store(best)
	h.maxLevel.Store(int32(bestLevel))
}

// Drop forgets the nodes of removed slots after Isolate; the slots stay queued for reuse.
func (h *HNSW) Drop(removed *roaring.Bitmap) {
	it := removed.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if h.getNode(slot) != nil {
			h.setNode(slot, nil)
		}
		h.tombstones.Unset(slot)
	}
}
