package scalar

import (
	"fmt"
	"strings"
)

// Kind identifies the precision vectors are stored in.
type Kind uint8

const (
	F32 Kind = iota
	BF16
	F16
	F64
	I8
	B1
)

// I8Scale maps [-1, 1] onto the int8 range used by I8 storage.
const I8Scale = 127

func (k Kind) String() string {
	switch k {
	case F32:
		return "f32"
	case BF16:
		return "bf16"
	case F16:
		return "f16"
	case F64:
		return "f64"
	case I8:
		return "i8"
	case B1:
		return "b1"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k <= B1
}

// BitsPerScalar returns the storage width of one dimension.
func (k Kind) BitsPerScalar() int {
	switch k {
	case F64:
		return 64
	case F32:
		return 32
	case F16, BF16:
		return 16
	case I8:
		return 8
	case B1:
		return 1
	default:
		return 0
	}
}

// VectorBytes returns the number of bytes one vector of dims dimensions occupies.
func (k Kind) VectorBytes(dims int) int {
	if k == B1 {
		return (dims + 7) / 8
	}
	return dims * k.BitsPerScalar() / 8
}

// Stride returns VectorBytes rounded up to a multiple of 8, so that every stored
// vector can be reinterpreted as a slice of its element type.
func (k Kind) Stride(dims int) int {
	return (k.VectorBytes(dims) + 7) &^ 7
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("scalar: unknown kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a scalar kind from its name or one of its common aliases.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "f32", "float32", "float":
		return F32, nil
	case "f64", "float64", "double":
		return F64, nil
	case "f16", "float16", "half":
		return F16, nil
	case "bf16", "bfloat16":
		return BF16, nil
	case "i8", "int8":
		return I8, nil
	case "b1", "b1x8", "bits", "binary":
		return B1, nil
	default:
		return 0, fmt.Errorf("scalar: unknown kind %q", name)
	}
}
