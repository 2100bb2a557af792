package usearch

import (
	"context"
	"time"

	"github.com/dluc/usearch/internal/hnsw"
	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/searcher"
	"github.com/dluc/usearch/scalar"
)

// SearchOptions tunes a query.
type SearchOptions struct {
	// Count is the number of neighbors wanted.
	Count int

	// Radius drops results farther than it; 0 keeps every result.
	Radius float32

	// Expansion overrides the candidate list width of approximate search.
	Expansion int

	// Threads bounds the worker count of SearchBatch; 0 uses the index default.
	Threads int

	// Exact scans every vector instead of walking the graph.
	Exact bool

	// Filter rejects keys from the results when it returns false.
	Filter func(Key) bool
}

// SearchStats counts the work done by searches.
type SearchStats struct {
	VisitedMembers    int
	ComputedDistances int
}

func (s *SearchStats) add(o SearchStats) {
	s.VisitedMembers += o.VisitedMembers
	s.ComputedDistances += o.ComputedDistances
}

// Matches holds the neighbors of one query, nearest first.
type Matches struct {
	Keys      []Key
	Distances []float32
	SearchStats
}

// Len returns the number of neighbors.
func (m *Matches) Len() int { return len(m.Keys) }

// BatchMatches holds the results of SearchBatch in query order.
type BatchMatches struct {
	Results []*Matches

	// Errors holds the failure of each query, nil on success.
	Errors []error

	SearchStats
}

// Search returns the count nearest neighbors of vec.
func (b *base) Search(vec []float32, count int) (*Matches, error) {
	return b.SearchBuffer(scalar.F32s(vec), SearchOptions{Count: count})
}

// SearchBuffer runs one query.
func (b *base) SearchBuffer(query scalar.Buffer, opts SearchOptions) (*Matches, error) {
	start := time.Now()
	s := searcher.Get()
	defer searcher.Put(s)

	m, err := b.searchOne(s, query, opts)
	var stats SearchStats
	if m != nil {
		stats = m.SearchStats
	}
	b.opts.logger.LogSearch(context.Background(), 1, opts.Count, stats, err)
	b.opts.metrics.RecordSearch(1, stats, time.Since(start), err)
	return m, err
}

// SearchBatch answers queries in parallel. Each query is independent; a
// query that fails leaves a nil result and its error in Errors.
func (b *base) SearchBatch(ctx context.Context, queries []scalar.Buffer, opts SearchOptions) (*BatchMatches, error) {
	start := time.Now()
	out := &BatchMatches{
		Results: make([]*Matches, len(queries)),
		Errors:  make([]error, len(queries)),
	}
	err := resource.ForEach(ctx, b.threads(opts.Threads, &b.threadsSearch), len(queries), func(_ context.Context, i int) error {
		s := searcher.Get()
		defer searcher.Put(s)
		out.Results[i], out.Errors[i] = b.searchOne(s, queries[i], opts)
		return nil
	})
	for _, m := range out.Results {
		if m != nil {
			out.SearchStats.add(m.SearchStats)
		}
	}
	b.opts.logger.LogSearch(ctx, len(queries), opts.Count, out.SearchStats, err)
	b.opts.metrics.RecordSearch(len(queries), out.SearchStats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *base) searchOne(s *searcher.Searcher, query scalar.Buffer, opts SearchOptions) (*Matches, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if opts.Count <= 0 {
		return nil, ErrInvalidCount
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.prepareQuery(s, query)
	if err != nil {
		return nil, err
	}

	var filter func(uint32) bool
	if opts.Filter != nil {
		filter = func(slot uint32) bool { return opts.Filter(b.keys.KeyOf(slot)) }
	}

	var items []searcher.Item
	var stats SearchStats
	if opts.Exact {
		items, stats = b.scan(s, q, opts.Count, filter)
	} else {
		var st hnsw.SearchStats
		items, st = b.graph.Search(s, q, opts.Count, hnsw.SearchOptions{EFSearch: opts.Expansion, Filter: filter})
		stats = SearchStats{VisitedMembers: st.Visited, ComputedDistances: st.Computed}
	}

	m := &Matches{
		Keys:        make([]Key, 0, len(items)),
		Distances:   make([]float32, 0, len(items)),
		SearchStats: stats,
	}
	for _, it := range items {
		if opts.Radius > 0 && it.Distance > opts.Radius {
			break
		}
		m.Keys = append(m.Keys, b.keys.KeyOf(it.Node))
		m.Distances = append(m.Distances, it.Distance)
	}
	return m, nil
}

// scan compares q with every live vector. The returned items alias s.Sorted.
func (b *base) scan(s *searcher.Searcher, q []byte, k int, filter func(uint32) bool) ([]searcher.Item, SearchStats) {
	s.Results.Reset()
	var stats SearchStats
	slots := b.graph.Slots()
	for slot := uint32(0); slot < slots; slot++ {
		if !b.graph.Live(slot) || (filter != nil && !filter(slot)) {
			continue
		}
		v, ok := b.vectors.Get(slot)
		if !ok {
			continue
		}
		stats.VisitedMembers++
		stats.ComputedDistances++
		s.Results.PushBounded(searcher.Item{Node: slot, Distance: b.dist(q, v)}, k)
	}
	s.Sorted = s.Results.Drain(s.Sorted[:0])
	return s.Sorted, stats
}
