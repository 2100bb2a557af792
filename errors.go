package usearch

import (
	"errors"
	"fmt"

	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/internal/hnsw"
	"github.com/dluc/usearch/internal/keytable"
	"github.com/dluc/usearch/internal/mmap"
	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/vectorstore"
	"github.com/dluc/usearch/persistence"
)

var (
	// ErrInvalidConfiguration is returned for unusable dimension, metric or
	// scalar combinations, at construction or when the metric changes.
	ErrInvalidConfiguration = errors.New("usearch: invalid configuration")

	// ErrKeyNotFound is returned when a key has no vectors.
	ErrKeyNotFound = errors.New("usearch: key not found")

	// ErrDuplicateKey is returned when a key is added or renamed onto an
	// existing key outside multi mode.
	ErrDuplicateKey = errors.New("usearch: duplicate key")

	// ErrCapacityExceeded is returned when storage cannot grow.
	ErrCapacityExceeded = errors.New("usearch: capacity exceeded")

	// ErrCorruptPersistedState is returned when a snapshot is inconsistent.
	ErrCorruptPersistedState = errors.New("usearch: corrupt persisted state")

	// ErrConcurrencyViolation is returned when a read-only view is asked to mutate.
	ErrConcurrencyViolation = errors.New("usearch: mutation of a read-only view")

	// ErrClosed is returned by a view after Close.
	ErrClosed = errors.New("usearch: index closed")

	// ErrInvalidCount is returned when a search asks for no results.
	ErrInvalidCount = errors.New("usearch: count must be positive")
)

// ErrDimensionMismatch indicates a vector whose length differs from the index.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("usearch: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// translateError maps errors from internal packages onto the public taxonomy.
// The original error stays reachable through errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, hnsw.ErrReadOnly):
		return fmt.Errorf("%w: %w", ErrConcurrencyViolation, err)
	case errors.Is(err, keytable.ErrDuplicateKey):
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case errors.Is(err, resource.ErrMemoryLimitExceeded), errors.Is(err, hnsw.ErrSlotOverflow):
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	case errors.Is(err, persistence.ErrCorrupt), errors.Is(err, hnsw.ErrInconsistent):
		return fmt.Errorf("%w: %w", ErrCorruptPersistedState, err)
	case errors.Is(err, distance.ErrIncompatible), errors.Is(err, vectorstore.ErrWrongKind):
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	case errors.Is(err, mmap.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
