package distance

import (
	"fmt"
	"unsafe"
)

// Signature is the calling convention of a compiled metric.
type Signature uint8

const (
	// ArrayArray functions receive two vector pointers.
	ArrayArray Signature = iota
	// ArrayArraySize functions receive two vector pointers and the dimensionality.
	ArrayArraySize
	// ArraySizeArraySize functions receive each pointer followed by its dimensionality.
	ArraySizeArraySize
)

func (s Signature) String() string {
	switch s {
	case ArrayArray:
		return "array_array"
	case ArrayArraySize:
		return "array_array_size"
	case ArraySizeArraySize:
		return "array_size_array_size"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Go shapes of the three calling conventions.
type (
	ArrayArrayFunc         = func(a, b unsafe.Pointer) float32
	ArrayArraySizeFunc     = func(a, b unsafe.Pointer, dims uintptr) float32
	ArraySizeArraySizeFunc = func(a unsafe.Pointer, adims uintptr, b unsafe.Pointer, bdims uintptr) float32
)

// CompiledMetric is an externally supplied distance function. Func must have the
// Go shape matching Signature.
type CompiledMetric struct {
	Signature Signature
	Func      any
}

// ResolveCompiled adapts m into a Func over vectors of the given dimensionality.
func ResolveCompiled(m CompiledMetric, dims int) (Func, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrIncompatible, dims)
	}
	n := uintptr(dims)
	switch m.Signature {
	case ArrayArray:
		fn, ok := m.Func.(ArrayArrayFunc)
		if !ok || fn == nil {
			return nil, signatureMismatch(m)
		}
		return func(a, b []byte) float32 {
			return fn(unsafe.Pointer(unsafe.SliceData(a)), unsafe.Pointer(unsafe.SliceData(b)))
		}, nil
	case ArrayArraySize:
		fn, ok := m.Func.(ArrayArraySizeFunc)
		if !ok || fn == nil {
			return nil, signatureMismatch(m)
		}
		return func(a, b []byte) float32 {
			return fn(unsafe.Pointer(unsafe.SliceData(a)), unsafe.Pointer(unsafe.SliceData(b)), n)
		}, nil
	case ArraySizeArraySize:
		fn, ok := m.Func.(ArraySizeArraySizeFunc)
		if !ok || fn == nil {
			return nil, signatureMismatch(m)
		}
		return func(a, b []byte) float32 {
			return fn(unsafe.Pointer(unsafe.SliceData(a)), n, unsafe.Pointer(unsafe.SliceData(b)), n)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown compiled signature %d", ErrIncompatible, m.Signature)
	}
}

func signatureMismatch(m CompiledMetric) error {
	return fmt.Errorf("%w: compiled metric %T does not match signature %s", ErrIncompatible, m.Func, m.Signature)
}
