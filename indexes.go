package usearch

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dluc/usearch/scalar"
)

// Indexes searches several indexes as one. Keys are reported as stored in
// the member that holds them, so members should use disjoint key ranges.
type Indexes struct {
	mu      sync.RWMutex
	members []Reader
	owned   []*View
	opts    []Option
	threads int
}

// NewIndexes groups readers. opts apply to views opened by MergePath.
func NewIndexes(opts ...Option) *Indexes {
	return &Indexes{opts: opts}
}

// SetThreads bounds how many members are searched at once; 0 means all.
func (f *Indexes) SetThreads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = n
}

// Add appends r to the group.
func (f *Indexes) Add(r Reader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = append(f.members, r)
}

// MergePath opens the snapshot at path as a view and adds it. The view is
// closed by Close.
func (f *Indexes) MergePath(path string) error {
	v, err := OpenView(path, f.opts...)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = append(f.members, v)
	f.owned = append(f.owned, v)
	return nil
}

// Len returns the number of vectors across members.
func (f *Indexes) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, r := range f.members {
		n += r.Len()
	}
	return n
}

// Members returns the number of grouped indexes.
func (f *Indexes) Members() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.members)
}

// Search queries every member and merges their results by distance.
func (f *Indexes) Search(ctx context.Context, query scalar.Buffer, count int) (*Matches, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	f.mu.RLock()
	members := slices.Clone(f.members)
	threads := f.threads
	f.mu.RUnlock()

	parts := make([]*Matches, len(members))
	g, gctx := errgroup.WithContext(ctx)
	if threads > 0 {
		g.SetLimit(threads)
	}
	for i, r := range members {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := r.SearchBuffer(query, SearchOptions{Count: count})
			if err != nil {
				return err
			}
			parts[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type hit struct {
		key  Key
		dist float32
	}
	var (
		hits  []hit
		stats SearchStats
	)
	for _, m := range parts {
		stats.add(m.SearchStats)
		for i, k := range m.Keys {
			hits = append(hits, hit{key: k, dist: m.Distances[i]})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })
	hits = hits[:min(count, len(hits))]

	out := &Matches{
		Keys:        make([]Key, len(hits)),
		Distances:   make([]float32, len(hits)),
		SearchStats: stats,
	}
	for i, h := range hits {
		out.Keys[i], out.Distances[i] = h.key, h.dist
	}
	return out, nil
}

// Close closes the views opened by MergePath and empties the group.
func (f *Indexes) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, v := range f.owned {
		errs = append(errs, v.Close())
	}
	f.members, f.owned = nil, nil
	return errors.Join(errs...)
}
