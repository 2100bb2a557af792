package usearch

import (
	"context"
	"fmt"

	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/searcher"
	"github.com/dluc/usearch/scalar"
)

// ExactOptions tunes ExactSearch.
type ExactOptions struct {
	Metric distance.Kind

	// Compiled replaces Metric when set.
	Compiled *distance.CompiledMetric

	Count   int
	Threads int
}

// ExactSearch compares every query with every dataset vector without building
// an index. Result keys are dataset ordinals. Vectors are compared in the
// kind of dataset[0], or b1 for bitwise metrics.
func ExactSearch(ctx context.Context, dataset, queries []scalar.Buffer, opts ExactOptions) (*BatchMatches, error) {
	if opts.Count <= 0 {
		return nil, ErrInvalidCount
	}
	out := &BatchMatches{
		Results: make([]*Matches, len(queries)),
		Errors:  make([]error, len(queries)),
	}
	if len(dataset) == 0 {
		for i := range out.Results {
			out.Results[i] = &Matches{}
		}
		return out, nil
	}

	dims, kind := dataset[0].Dims, dataset[0].Kind
	if opts.Metric.Bitwise() {
		kind = scalar.B1
	}
	var (
		dist distance.Func
		err  error
	)
	if opts.Compiled != nil {
		dist, err = distance.ResolveCompiled(*opts.Compiled, dims)
	} else {
		dist, err = distance.Resolve(opts.Metric, kind, dims)
	}
	if err != nil {
		return nil, translateError(err)
	}

	data := make([][]byte, len(dataset))
	for i, v := range dataset {
		if v.Dims != dims {
			return nil, &ErrDimensionMismatch{Expected: dims, Actual: v.Dims}
		}
		if v.Kind == kind && isAligned(v.Data) {
			if err := v.Validate(); err != nil {
				return nil, err
			}
			data[i] = v.Data
			continue
		}
		c, err := scalar.Convert(kind, v)
		if err != nil {
			return nil, err
		}
		data[i] = c.Data
	}

	err = resource.ForEach(ctx, opts.Threads, len(queries), func(_ context.Context, i int) error {
		q := queries[i]
		if q.Dims != dims {
			out.Errors[i] = &ErrDimensionMismatch{Expected: dims, Actual: q.Dims}
			return nil
		}
		c, err := scalar.Convert(kind, q)
		if err != nil {
			out.Errors[i] = fmt.Errorf("query %d: %w", i, err)
			return nil
		}

		s := searcher.Get()
		defer searcher.Put(s)
		for j, v := range data {
			s.Results.PushBounded(searcher.Item{Node: uint32(j), Distance: dist(c.Data, v)}, opts.Count)
		}
		s.Sorted = s.Results.Drain(s.Sorted[:0])

		m := &Matches{
			Keys:      make([]Key, len(s.Sorted)),
			Distances: make([]float32, len(s.Sorted)),
			SearchStats: SearchStats{
				VisitedMembers:    len(data),
				ComputedDistances: len(data),
			},
		}
		for k, it := range s.Sorted {
			m.Keys[k], m.Distances[k] = Key(it.Node), it.Distance
		}
		out.Results[i] = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range out.Results {
		if m != nil {
			out.SearchStats.add(m.SearchStats)
		}
	}
	return out, nil
}
