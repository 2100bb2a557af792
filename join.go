package usearch

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/dluc/usearch/internal/resource"
)

// JoinOptions tunes Join.
type JoinOptions struct {
	// MaxProposals bounds the candidates each key may propose to. 0 means
	// min(other.ExpansionSearch(), other.Len()).
	MaxProposals int

	// Exact fetches candidates by exhaustive scan.
	Exact bool

	// Threads bounds the candidate search workers; 0 uses the search default.
	Threads int
}

// proposer is a key of the receiver with its ranked candidates in the other index.
type proposer struct {
	key        Key
	candidates *Matches
	next       int
}

type engagement struct {
	proposer int
	distance float32
}

// Join matches keys of b with keys of other one to one by stable marriage.
// Each key of b proposes to its candidates in other, nearest first; a key of
// other keeps the nearest proposer it has seen. Keys that run out of
// candidates stay unmatched, so the result may be smaller than both sides.
//
// Candidate lists are capped by MaxProposals, which bounds the work but means
// a pair can be missed when a preferred partner lies outside the cap.
func (b *base) Join(ctx context.Context, other Reader, opts JoinOptions) (map[Key]Key, error) {
	start := time.Now()
	out, err := b.join(ctx, other, opts)
	b.opts.logger.LogJoin(ctx, b.Len(), other.Len(), len(out), err)
	b.opts.metrics.RecordJoin(len(out), time.Since(start), err)
	return out, err
}

func (b *base) join(ctx context.Context, other Reader, opts JoinOptions) (map[Key]Key, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if b.Dimensions() != other.Dimensions() {
		return nil, &ErrDimensionMismatch{Expected: b.Dimensions(), Actual: other.Dimensions()}
	}
	keys := b.Keys()
	size := other.Len()
	if len(keys) == 0 || size == 0 {
		return map[Key]Key{}, nil
	}
	limit := opts.MaxProposals
	if limit <= 0 {
		limit = min(other.ExpansionSearch(), size)
	}

	props := make([]proposer, len(keys))
	kind := other.ScalarKind()
	err := resource.ForEach(ctx, b.threads(opts.Threads, &b.threadsSearch), len(keys), func(_ context.Context, i int) error {
		props[i].key = keys[i]
		vecs, err := b.GetAs(keys[i], kind)
		if err != nil || len(vecs) == 0 {
			return err
		}
		m, err := other.SearchBuffer(vecs[0], SearchOptions{Count: limit, Exact: opts.Exact})
		if err != nil {
			return err
		}
		props[i].candidates = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	engaged := roaring64.New()
	partner := make(map[Key]engagement)
	free := make([]int, 0, len(props))
	for i := range props {
		if props[i].candidates != nil {
			free = append(free, i)
		}
	}

	for len(free) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rejected []int
		for _, i := range free {
			p := &props[i]
			for p.next < p.candidates.Len() {
				target, dist := p.candidates.Keys[p.next], p.candidates.Distances[p.next]
				p.next++
				if !engaged.Contains(target) {
					engaged.Add(target)
					partner[target] = engagement{proposer: i, distance: dist}
					break
				}
				cur := partner[target]
				if dist < cur.distance {
					partner[target] = engagement{proposer: i, distance: dist}
					rejected = append(rejected, cur.proposer)
					break
				}
			}
		}
		free = free[:0]
		for _, i := range rejected {
			if props[i].next < props[i].candidates.Len() {
				free = append(free, i)
			}
		}
	}

	out := make(map[Key]Key, len(partner))
	for target, e := range partner {
		out[props[e.proposer].key] = target
	}
	return out, nil
}
