package hnsw

import (
	"slices"

	"github.com/dluc/usearch/internal/searcher"
)

// Insert links the vector already stored at slot into the graph.
// A slot that held a node before keeps at least its previous level, so
// links other nodes still hold to it stay valid on their layer.
func (h *HNSW) Insert(s *searcher.Searcher, slot uint32) error {
	if h.readOnly.Load() {
		return ErrReadOnly
	}
	query, ok := h.vectors.Get(slot)
	if !ok {
		return ErrMissingVector
	}

	level := h.randomLevel()
	if prev := h.getNode(slot); prev != nil {
		level = max(level, prev.level)
	}
	n := newNode(level)

	if h.insertFirst(slot, n) {
		return nil
	}

	dist := *h.dist.Load()
	distTo := func(id uint32) float32 {
		v, ok := h.vectors.Get(id)
		if !ok {
			return maxDistance
		}
		s.Computed++
		return dist(query, v)
	}

	entry, top := h.entry.Load(), int(h.maxLevel.Load())
	curr, currDist := entry, distTo(entry)
	for l := top; l > level; l-- {
		curr, currDist = h.greedy(curr, currDist, l, slot, distTo)
	}

	ef := int(h.efAdd.Load())
	selected := make([][]searcher.Item, min(level, top)+1)
	for l := min(level, top); l >= 0; l-- {
		h.searchLayer(s, curr, currDist, l, ef, slot, nil, distTo)
		s.Sorted = s.Results.Drain(s.Sorted[:0])
		if len(s.Sorted) > 0 {
			curr, currDist = s.Sorted[0].Node, s.Sorted[0].Distance
		}
		selected[l] = h.selectNeighbors(s.Sorted, h.maxConns(l))

		ids := make([]uint32, len(selected[l]))
		for i, it := range selected[l] {
			ids[i] = it.Node
		}
		n.setNeighbors(l, ids)
	}

	h.setNode(slot, n)
	h.tombstones.Unset(slot)
	h.live.Add(1)

	for l, items := range selected {
		for _, it := range items {
			h.addBackLink(it.Node, slot, l, it.Distance)
		}
	}

	if level > top {
		h.top.Lock()
		if int32(level) > h.maxLevel.Load() {
			h.entry.Store(slot)
			h.maxLevel.Store(int32(level))
		}
		h.top.Unlock()
	}
	return nil
}

// insertFirst publishes n as the entry point of an empty graph.
func (h *HNSW) insertFirst(slot uint32, n *node) bool {
	h.top.Lock()
	defer h.top.Unlock()
	if h.maxLevel.Load() >= 0 {
		return false
	}
	h.setNode(slot, n)
	h.tombstones.Unset(slot)
	h.live.Add(1)
	h.entry.Store(slot)
	h.maxLevel.Store(int32(n.level))
	return true
}

// selectNeighbors keeps candidates that are closer to the base than to any
// already kept neighbor, then fills remaining room nearest-first.
// candidates must be sorted by ascending distance to the base.
func (h *HNSW) selectNeighbors(candidates []searcher.Item, m int) []searcher.Item {
	if len(candidates) <= m {
		return slices.Clone(candidates)
	}

	result := make([]searcher.Item, 0, m)
	skipped := make([]bool, len(candidates))
	for i, cand := range candidates {
		if len(result) >= m {
			break
		}
		good := true
		for _, kept := range result {
			if h.distance(cand.Node, kept.Node) < cand.Distance {
				good = false
				break
			}
		}
		if good {
			result = append(result, cand)
		} else {
			skipped[i] = true
		}
	}

	for i, cand := range candidates {
		if len(result) >= m {
			break
		}
		if skipped[i] {
			result = append(result, cand)
		}
	}
	slices.SortFunc(result, compareItems)
	return result
}

func compareItems(a, b searcher.Item) int {
	switch {
	case searcher.Closer(a, b):
		return -1
	case searcher.Closer(b, a):
		return 1
	default:
		return 0
	}
}

// addBackLink adds from to the neighbors of target on level, keeping the
// list sorted and pruning it with the selection heuristic when full.
func (h *HNSW) addBackLink(target, from uint32, level int, dist float32) {
	n := h.getNode(target)
	if n == nil || level > n.level {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	links := n.neighbors(level)
	if slices.Contains(links, from) {
		return
	}

	limit := h.maxConns(level)
	if len(links) < limit {
		pos, _ := slices.BinarySearchFunc(links, dist, func(id uint32, d float32) int {
			switch other := h.distance(target, id); {
			case other < d:
				return -1
			case other > d:
				return 1
			default:
				return 0
			}
		})
		next := make([]uint32, 0, len(links)+1)
		next = append(next, links[:pos]...)
		next = append(next, from)
		next = append(next, links[pos:]...)
		n.setNeighbors(level, next)
		return
	}

	candidates := make([]searcher.Item, 0, len(links)+1)
	candidates = append(candidates, searcher.Item{Node: from, Distance: dist})
	for _, id := range links {
		if h.tombstones.Test(id) {
			continue
		}
		candidates = append(candidates, searcher.Item{Node: id, Distance: h.distance(target, id)})
	}
	slices.SortFunc(candidates, compareItems)

	kept := h.selectNeighbors(candidates, limit)
	next := make([]uint32, len(kept))
	for i, it := range kept {
		next[i] = it.Node
	}
	n.setNeighbors(level, next)
}
