package scalar

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/x448/float16"
)

// Buffer is a single vector in caller precision. Data holds Kind.VectorBytes(Dims)
// bytes in host byte order.
type Buffer struct {
	Kind Kind
	Dims int
	Data []byte
}

// F32s wraps v without copying.
func F32s(v []float32) Buffer {
	return Buffer{Kind: F32, Dims: len(v), Data: bytesOf(unsafe.Pointer(unsafe.SliceData(v)), len(v)*4)}
}

// F64s wraps v without copying.
func F64s(v []float64) Buffer {
	return Buffer{Kind: F64, Dims: len(v), Data: bytesOf(unsafe.Pointer(unsafe.SliceData(v)), len(v)*8)}
}

// F16s wraps v without copying.
func F16s(v []float16.Float16) Buffer {
	return Buffer{Kind: F16, Dims: len(v), Data: bytesOf(unsafe.Pointer(unsafe.SliceData(v)), len(v)*2)}
}

// BF16s wraps raw bfloat16 bit patterns without copying.
func BF16s(v []uint16) Buffer {
	return Buffer{Kind: BF16, Dims: len(v), Data: bytesOf(unsafe.Pointer(unsafe.SliceData(v)), len(v)*2)}
}

// I8s wraps v without copying.
func I8s(v []int8) Buffer {
	return Buffer{Kind: I8, Dims: len(v), Data: bytesOf(unsafe.Pointer(unsafe.SliceData(v)), len(v))}
}

// Bits wraps a packed bit vector of dims dimensions without copying.
func Bits(packed []byte, dims int) Buffer {
	return Buffer{Kind: B1, Dims: dims, Data: packed}
}

func bytesOf(p unsafe.Pointer, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Validate checks that the buffer holds enough bytes for its dimensionality.
func (b Buffer) Validate() error {
	if !b.Kind.Valid() {
		return fmt.Errorf("scalar: unknown kind %d", b.Kind)
	}
	if b.Dims <= 0 {
		return fmt.Errorf("scalar: invalid dimensions %d", b.Dims)
	}
	if need := b.Kind.VectorBytes(b.Dims); len(b.Data) < need {
		return fmt.Errorf("scalar: %s buffer of %d dims needs %d bytes, got %d", b.Kind, b.Dims, need, len(b.Data))
	}
	return nil
}

// At returns dimension i upcast to float64.
func (b Buffer) At(i int) float64 {
	switch b.Kind {
	case F64:
		return AsFloat64(b.Data)[i]
	case F32:
		return float64(AsFloat32(b.Data)[i])
	case F16:
		return float64(float16.Frombits(AsUint16(b.Data)[i]).Float32())
	case BF16:
		return float64(BF16ToFloat32(AsUint16(b.Data)[i]))
	case I8:
		return float64(AsInt8(b.Data)[i]) / I8Scale
	case B1:
		if b.Data[i>>3]&(0x80>>(i&7)) != 0 {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// Float32s returns a freshly allocated float32 copy of the vector.
func (b Buffer) Float32s() []float32 {
	out := make([]float32, b.Dims)
	if b.Kind == F32 {
		copy(out, AsFloat32(b.Data))
		return out
	}
	for i := range out {
		out[i] = float32(b.At(i))
	}
	return out
}

// Float64s returns a freshly allocated float64 copy of the vector.
func (b Buffer) Float64s() []float64 {
	out := make([]float64, b.Dims)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Clone returns a buffer that owns a copy of the data.
func (b Buffer) Clone() Buffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return Buffer{Kind: b.Kind, Dims: b.Dims, Data: data}
}

// AsFloat32 reinterprets 4-byte aligned data as float32 values.
func AsFloat32(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(data))), len(data)/4)
}

// AsFloat64 reinterprets 8-byte aligned data as float64 values.
func AsFloat64(data []byte) []float64 {
	if len(data) < 8 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(unsafe.SliceData(data))), len(data)/8)
}

// AsUint16 reinterprets 2-byte aligned data as uint16 values.
func AsUint16(data []byte) []uint16 {
	if len(data) < 2 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(unsafe.SliceData(data))), len(data)/2)
}

// AsInt8 reinterprets data as int8 values.
func AsInt8(data []byte) []int8 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(unsafe.SliceData(data))), len(data))
}

// BF16ToFloat32 widens a bfloat16 bit pattern.
func BF16ToFloat32(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// Float32ToBF16 narrows f with round-to-nearest-even.
func Float32ToBF16(f float32) uint16 {
	bits := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return uint16(bits>>16) | 0x40
	}
	bits += 0x7FFF + (bits>>16)&1
	return uint16(bits >> 16)
}

// Float64ToI8 quantizes v from [-1, 1] to [-127, 127], saturating outside the range.
func Float64ToI8(v float64) int8 {
	q := math.Round(v * I8Scale)
	switch {
	case math.IsNaN(q):
		return 0
	case q > I8Scale:
		return I8Scale
	case q < -I8Scale:
		return -I8Scale
	default:
		return int8(q)
	}
}
