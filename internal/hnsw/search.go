package hnsw

import (
	"math"

	"github.com/dluc/usearch/internal/searcher"
)

const (
	maxDistance = math.MaxFloat32

	// noSlot marks the absence of a slot to exclude.
	noSlot = math.MaxUint32
)

// DistFunc computes the distance from the current query to a slot.
type DistFunc func(slot uint32) float32

// SearchOptions tunes a single query.
type SearchOptions struct {
	// EFSearch overrides the default candidate list width.
	EFSearch int

	// Filter rejects slots from the results; rejected slots are still traversed.
	Filter func(slot uint32) bool
}

// SearchStats reports the work done by one query.
type SearchStats struct {
	Visited  int
	Computed int
}

// Search returns up to k live slots nearest to query, nearest first.
// query must be in the stored scalar kind.
func (h *HNSW) Search(s *searcher.Searcher, query []byte, k int, opts SearchOptions) ([]searcher.Item, SearchStats) {
	if k <= 0 {
		return nil, SearchStats{}
	}
	entry, ok := h.EntryPoint()
	if !ok {
		return nil, SearchStats{}
	}

	s.Visited.EnsureCapacity(int(h.Slots()))
	distTo := h.queryDistance(s, query)

	ef := opts.EFSearch
	if ef <= 0 {
		ef = int(h.efSearch.Load())
	}
	ef = max(ef, k)

	hops := 0
	curr, currDist := entry, distTo(entry)
	for l := int(h.maxLevel.Load()); l > 0; l-- {
		var moved int
		curr, currDist, moved = h.greedyCount(curr, currDist, l, noSlot, distTo)
		hops += moved
	}

	h.searchLayer(s, curr, currDist, 0, ef, noSlot, opts.Filter, distTo)
	s.Sorted = s.Results.Drain(s.Sorted[:0])
	if len(s.Sorted) > k {
		s.Sorted = s.Sorted[:k]
	}
	return s.Sorted, SearchStats{Visited: s.Visited.Len() + hops, Computed: s.Computed}
}

// Descend walks greedily from the entry point down to level and returns the
// closest node found there. Tombstoned nodes are traversed but never returned
// unless nothing else is reachable.
func (h *HNSW) Descend(s *searcher.Searcher, query []byte, level int) (uint32, float32, bool) {
	entry, ok := h.EntryPoint()
	if !ok || level > h.MaxLevel() {
		return 0, 0, false
	}
	distTo := h.queryDistance(s, query)

	curr, currDist := entry, distTo(entry)
	for l := int(h.maxLevel.Load()); l > level; l-- {
		curr, currDist = h.greedy(curr, currDist, l, noSlot, distTo)
	}
	curr, currDist = h.greedy(curr, currDist, level, noSlot, distTo)
	if !h.tombstones.Test(curr) {
		return curr, currDist, true
	}

	best, bestDist, found := uint32(0), float32(maxDistance), false
	for _, id := range h.Neighbors(curr, level) {
		if h.tombstones.Test(id) {
			continue
		}
		if d := distTo(id); !found || d < bestDist {
			best, bestDist, found = id, d, true
		}
	}
	return best, bestDist, found
}

func (h *HNSW) queryDistance(s *searcher.Searcher, query []byte) DistFunc {
	dist := *h.dist.Load()
	return func(slot uint32) float32 {
		v, ok := h.vectors.Get(slot)
		if !ok {
			return maxDistance
		}
		s.Computed++
		return dist(query, v)
	}
}

func (h *HNSW) greedy(curr uint32, currDist float32, level int, exclude uint32, distTo DistFunc) (uint32, float32) {
	curr, currDist, _ = h.greedyCount(curr, currDist, level, exclude, distTo)
	return curr, currDist
}

// greedyCount steps to closer neighbors on one level until no neighbor improves.
func (h *HNSW) greedyCount(curr uint32, currDist float32, level int, exclude uint32, distTo DistFunc) (uint32, float32, int) {
	hops := 0
	for changed := true; changed; {
		changed = false
		hops++
		for _, next := range h.Neighbors(curr, level) {
			if next == exclude {
				continue
			}
			if d := distTo(next); d < currDist {
				curr, currDist = next, d
				changed = true
			}
		}
	}
	return curr, currDist, hops
}

// searchLayer runs a best-first search on one level, leaving up to ef live
// slots accepted by filter in s.Results.
func (h *HNSW) searchLayer(s *searcher.Searcher, entry uint32, entryDist float32, level, ef int, exclude uint32, filter func(uint32) bool, distTo DistFunc) {
	s.Visited.Reset()
	s.Frontier.Reset()
	s.Results.Reset()

	accept := func(slot uint32) bool {
		return slot != exclude && !h.tombstones.Test(slot) && (filter == nil || filter(slot))
	}

	s.Visited.Visit(entry)
	s.Frontier.Push(searcher.Item{Node: entry, Distance: entryDist})
	if accept(entry) {
		s.Results.Push(searcher.Item{Node: entry, Distance: entryDist})
	}

	for s.Frontier.Len() > 0 {
		curr, _ := s.Frontier.Pop()
		if worst, ok := s.Results.Top(); ok && s.Results.Len() >= ef && curr.Distance > worst.Distance {
			break
		}

		for _, next := range h.Neighbors(curr.Node, level) {
			if next == exclude || !s.Visited.Visit(next) {
				continue
			}
			d := distTo(next)
			if s.Results.Len() >= ef {
				if worst, _ := s.Results.Top(); d > worst.Distance {
					continue
				}
			}
			s.Frontier.Push(searcher.Item{Node: next, Distance: d})
			if accept(next) {
				s.Results.PushBounded(searcher.Item{Node: next, Distance: d}, ef)
			}
		}
	}
}
