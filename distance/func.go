package distance

import (
	"errors"
	"fmt"

	"github.com/dluc/usearch/scalar"
)

// ErrIncompatible is returned when a metric cannot run over a scalar kind or dimensionality.
var ErrIncompatible = errors.New("distance: incompatible metric configuration")

// Func computes the distance between two stored vectors.
// Both slices hold at least scalar.Kind.VectorBytes(dims) bytes.
type Func func(a, b []byte) float32

// Validate reports whether kind can run over vectors of the given scalar kind and dimensionality.
func Validate(kind Kind, sk scalar.Kind, dims int) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown metric %d", ErrIncompatible, kind)
	}
	if !sk.Valid() {
		return fmt.Errorf("%w: unknown scalar kind %d", ErrIncompatible, sk)
	}
	if dims <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrIncompatible, dims)
	}
	if kind == External {
		return nil
	}
	if kind.Bitwise() != (sk == scalar.B1) {
		return fmt.Errorf("%w: metric %s cannot run over %s vectors", ErrIncompatible, kind, sk)
	}
	if kind == Haversine && dims != 2 {
		return fmt.Errorf("%w: haversine expects 2 dimensions, got %d", ErrIncompatible, dims)
	}
	return nil
}

// Resolve returns the distance function for a built-in metric.
func Resolve(kind Kind, sk scalar.Kind, dims int) (Func, error) {
	if kind == External {
		return nil, fmt.Errorf("%w: external metrics resolve through ResolveCompiled", ErrIncompatible)
	}
	if err := Validate(kind, sk, dims); err != nil {
		return nil, err
	}

	if kind.Bitwise() {
		n := sk.VectorBytes(dims)
		switch kind {
		case Hamming:
			return func(a, b []byte) float32 { return hamming(a[:n], b[:n]) }, nil
		case Tanimoto:
			return func(a, b []byte) float32 { return tanimoto(a[:n], b[:n]) }, nil
		default:
			return func(a, b []byte) float32 { return sorensen(a[:n], b[:n]) }, nil
		}
	}

	switch kind {
	case Haversine:
		return widened(sk, dims, haversine), nil
	case Divergence:
		return widened(sk, dims, divergence), nil
	case Pearson:
		return widened(sk, dims, pearson), nil
	}

	switch sk {
	case scalar.F32:
		return f32Kernel(kind, dims), nil
	case scalar.F64:
		return f64Kernel(kind, dims), nil
	case scalar.I8:
		return i8Kernel(kind, dims), nil
	case scalar.F16, scalar.BF16:
		return halfKernel(kind, sk, dims), nil
	}
	return nil, fmt.Errorf("%w: no kernel for %s over %s", ErrIncompatible, kind, sk)
}

// Distance evaluates kind over two caller buffers, casting b to a's kind when they differ.
func Distance(a, b scalar.Buffer, kind Kind) (float32, error) {
	if a.Dims != b.Dims {
		return 0, fmt.Errorf("%w: dimensions differ (%d vs %d)", ErrIncompatible, a.Dims, b.Dims)
	}
	sk := a.Kind
	if kind.Bitwise() {
		sk = scalar.B1
	}
	fn, err := Resolve(kind, sk, a.Dims)
	if err != nil {
		return 0, err
	}
	left, err := scalar.Convert(sk, a)
	if err != nil {
		return 0, err
	}
	right, err := scalar.Convert(sk, b)
	if err != nil {
		return 0, err
	}
	return fn(left.Data, right.Data), nil
}
