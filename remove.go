package usearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dluc/usearch/internal/resource"
)

// RemoveOptions tunes RemoveBatch.
type RemoveOptions struct {
	// Compact repairs the links around removed vectors before returning.
	Compact bool

	// Threads bounds the worker count; 0 uses the index default.
	Threads int
}

// Remove deletes every vector of key and returns how many were removed.
// An absent key removes nothing and is not an error.
func (x *Index) Remove(key Key) (int, error) {
	start := time.Now()
	x.mu.RLock()
	n, err := x.remove(key)
	x.mu.RUnlock()

	x.opts.logger.LogRemove(context.Background(), 1, n, false, err)
	x.opts.metrics.RecordRemove(n, time.Since(start), err)
	return n, err
}

// RemoveBatch deletes keys and returns the count removed per key.
func (x *Index) RemoveBatch(ctx context.Context, keys []Key, opts RemoveOptions) ([]int, error) {
	start := time.Now()
	counts := make([]int, len(keys))

	x.mu.RLock()
	err := resource.ForEach(ctx, x.threads(opts.Threads, &x.threadsAdd), len(keys), func(_ context.Context, i int) error {
		n, err := x.remove(keys[i])
		counts[i] = n
		return err
	})
	x.mu.RUnlock()

	if err == nil && opts.Compact {
		err = x.Compact(ctx)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	x.opts.logger.LogRemove(ctx, len(keys), total, opts.Compact, err)
	x.opts.metrics.RecordRemove(total, time.Since(start), err)
	return counts, err
}

// remove tombstones the vectors of key. Callers hold mu shared.
func (b *base) remove(key Key) (int, error) {
	if b.readOnly {
		return 0, ErrConcurrencyViolation
	}
	n := 0
	for _, slot := range b.keys.Remove(key) {
		ok, err := b.graph.Remove(slot)
		if err != nil {
			return n, translateError(err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Rename moves the vectors of from to to and returns how many moved.
// Outside multi mode renaming onto an existing key fails with ErrDuplicateKey.
func (x *Index) Rename(from, to Key) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.rename(from, to)
}

// RenameBatch renames from[i] to to[i], or every from key to to[0] when to
// has one element. Failed items are skipped and joined into the error.
func (x *Index) RenameBatch(from, to []Key) (int, error) {
	if len(to) != len(from) && len(to) != 1 {
		return 0, fmt.Errorf("usearch: cannot rename %d keys onto %d", len(from), len(to))
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	total := 0
	var errs []error
	for i, key := range from {
		target := to[0]
		if len(to) > 1 {
			target = to[i]
		}
		n, err := x.rename(key, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("rename %d to %d: %w", key, target, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

func (b *base) rename(from, to Key) (int, error) {
	if b.readOnly {
		return 0, ErrConcurrencyViolation
	}
	n, err := b.keys.Rename(from, to)
	return n, translateError(err)
}
