package searcher

import "sync"

// Searcher is a reusable execution context for one traversal at a time.
// It is not safe for concurrent use.
type Searcher struct {
	// Visited tracks slots reached during traversal.
	Visited *VisitedSet

	// Results is a max-heap keeping the best ef items found so far.
	Results *PriorityQueue

	// Frontier is a min-heap of slots still to expand.
	Frontier *PriorityQueue

	// Sorted receives drained results in ascending distance order.
	Sorted []Item

	// Links is scratch for copying a neighbor list.
	Links []uint32

	// Query holds the query cast to the stored scalar kind.
	Query []byte

	// Computed counts distance evaluations.
	Computed int
}

var pool = sync.Pool{
	New: func() any {
		return NewSearcher(1024, 128)
	},
}

// NewSearcher creates a searcher with initial capacities.
func NewSearcher(visitedCap, queueCap int) *Searcher {
	return &Searcher{
		Visited:  NewVisitedSet(visitedCap),
		Results:  NewPriorityQueue(true),
		Frontier: NewPriorityQueue(false),
		Sorted:   make([]Item, 0, queueCap),
		Links:    make([]uint32, 0, 64),
	}
}

// Get returns a reset Searcher from the pool.
func Get() *Searcher {
	s := pool.Get().(*Searcher)
	s.Reset()
	return s
}

// Put returns a Searcher to the pool.
func Put(s *Searcher) {
	pool.Put(s)
}

// Reset clears all traversal state and counters.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Results.Reset()
	s.Frontier.Reset()
	s.Sorted = s.Sorted[:0]
	s.Links = s.Links[:0]
	s.Computed = 0
}
