package scalar

import (
	"fmt"

	"github.com/x448/float16"
)

// Cast converts src into dst, which must hold at least dstKind.VectorBytes(src.Dims) bytes.
func Cast(dst []byte, dstKind Kind, src Buffer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	n := dstKind.VectorBytes(src.Dims)
	if len(dst) < n {
		return fmt.Errorf("scalar: destination holds %d bytes, need %d", len(dst), n)
	}
	if src.Kind == dstKind {
		copy(dst[:n], src.Data[:n])
		return nil
	}

	dims := src.Dims
	switch dstKind {
	case F64:
		out := AsFloat64(dst)
		for i := 0; i < dims; i++ {
			out[i] = src.At(i)
		}
	case F32:
		out := AsFloat32(dst)
		if src.Kind == F16 {
			in := AsUint16(src.Data)
			for i := 0; i < dims; i++ {
				out[i] = float16.Frombits(in[i]).Float32()
			}
			return nil
		}
		for i := 0; i < dims; i++ {
			out[i] = float32(src.At(i))
		}
	case F16:
		out := AsUint16(dst)
		if src.Kind == F32 {
			in := AsFloat32(src.Data)
			for i := 0; i < dims; i++ {
				out[i] = float16.Fromfloat32(in[i]).Bits()
			}
			return nil
		}
		for i := 0; i < dims; i++ {
			out[i] = float16.Fromfloat32(float32(src.At(i))).Bits()
		}
	case BF16:
		out := AsUint16(dst)
		for i := 0; i < dims; i++ {
			out[i] = Float32ToBF16(float32(src.At(i)))
		}
	case I8:
		out := AsInt8(dst)
		for i := 0; i < dims; i++ {
			out[i] = Float64ToI8(src.At(i))
		}
	case B1:
		clear(dst[:n])
		for i := 0; i < dims; i++ {
			if src.At(i) > 0 {
				dst[i>>3] |= 0x80 >> (i & 7)
			}
		}
	default:
		return fmt.Errorf("scalar: unknown kind %d", dstKind)
	}
	return nil
}

// Convert allocates a buffer of kind dst holding src.
func Convert(dst Kind, src Buffer) (Buffer, error) {
	data := make([]byte, dst.Stride(src.Dims))
	if err := Cast(data, dst, src); err != nil {
		return Buffer{}, err
	}
	return Buffer{Kind: dst, Dims: src.Dims, Data: data[:dst.VectorBytes(src.Dims)]}, nil
}
