package usearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/searcher"
	"github.com/dluc/usearch/scalar"
)

// AddOptions tunes AddBatch.
type AddOptions struct {
	// Threads bounds the worker count; 0 uses the index default.
	Threads int

	// NoCopy stores references to the caller buffers instead of copies when
	// their kind matches the index. The caller must keep them unchanged for
	// the life of the index.
	NoCopy bool
}

// AddResult reports a batch insertion item by item.
type AddResult struct {
	// Keys holds the key used for every input, including assigned ones.
	Keys []Key

	// Errors holds the failure of each input, nil on success.
	Errors []error

	// Added counts successful inputs.
	Added int
}

// Failed returns the number of inputs that were not added.
func (r *AddResult) Failed() int { return len(r.Keys) - r.Added }

// Err joins the per-item failures.
func (r *AddResult) Err() error { return errors.Join(r.Errors...) }

// Add stores vec under key.
func (x *Index) Add(key Key, vec []float32) error {
	return x.AddBuffer(key, scalar.F32s(vec))
}

// AddBuffer stores buf under key, converting it to the index precision.
func (x *Index) AddBuffer(key Key, buf scalar.Buffer) error {
	start := time.Now()
	s := searcher.Get()
	defer searcher.Put(s)

	x.mu.RLock()
	err := x.add(s, key, buf, false)
	x.mu.RUnlock()

	failed := 0
	if err != nil {
		failed = 1
	}
	x.opts.logger.LogAdd(context.Background(), key, err)
	x.opts.metrics.RecordAdd(1, failed, time.Since(start))
	return err
}

// AddBatch stores vectors in parallel. A nil keys slice assigns Len() onward.
// Item failures are reported in the result and do not stop the batch.
func (x *Index) AddBatch(ctx context.Context, keys []Key, vectors []scalar.Buffer, opts AddOptions) (*AddResult, error) {
	if keys != nil && len(keys) != len(vectors) {
		return nil, fmt.Errorf("usearch: %d keys for %d vectors", len(keys), len(vectors))
	}
	start := time.Now()

	x.mu.RLock()
	defer x.mu.RUnlock()

	res := &AddResult{Keys: keys, Errors: make([]error, len(vectors))}
	if keys == nil {
		res.Keys = make([]Key, len(vectors))
		next := Key(x.graph.Len())
		for i := range res.Keys {
			res.Keys[i] = next + Key(i)
		}
	}

	attempted := make([]bool, len(vectors))
	err := resource.ForEach(ctx, x.threads(opts.Threads, &x.threadsAdd), len(vectors), func(_ context.Context, i int) error {
		s := searcher.Get()
		defer searcher.Put(s)
		attempted[i] = true
		res.Errors[i] = x.add(s, res.Keys[i], vectors[i], opts.NoCopy)
		return nil
	})

	for i, e := range res.Errors {
		switch {
		case !attempted[i]:
			res.Errors[i] = err
		case e == nil:
			res.Added++
		}
	}
	x.opts.logger.LogBatchAdd(ctx, len(vectors), res.Failed())
	x.opts.metrics.RecordAdd(len(vectors), res.Failed(), time.Since(start))
	return res, err
}

// add inserts one vector. Callers hold mu shared.
func (b *base) add(s *searcher.Searcher, key Key, buf scalar.Buffer, noCopy bool) error {
	if b.readOnly {
		return ErrConcurrencyViolation
	}
	if err := b.checkDims(buf); err != nil {
		return err
	}

	slot, err := b.graph.Acquire()
	if err != nil {
		return translateError(err)
	}
	if err := b.keys.Insert(key, slot); err != nil {
		b.graph.Release(slot)
		return translateError(err)
	}

	if noCopy && buf.Kind == b.cfg.Scalar && isAligned(buf.Data) {
		err = b.vectors.Alias(slot, buf)
	} else {
		err = b.vectors.Set(slot, buf)
	}
	if err == nil {
		err = b.graph.Insert(s, slot)
	}
	if err != nil {
		b.keys.Delete(key, slot)
		b.graph.Release(slot)
		return translateError(err)
	}
	// A concurrent Remove may have taken the key before the node was linked.
	if !b.keys.Bound(slot) {
		if _, err := b.graph.Remove(slot); err != nil {
			return translateError(err)
		}
	}
	return nil
}
