package distance

import (
	"fmt"
	"strings"
)

// Kind is a built-in distance family.
type Kind uint8

const (
	InnerProduct Kind = iota
	Cosine
	L2sq
	Haversine
	Divergence
	Pearson
	Hamming
	Tanimoto
	Sorensen

	// External marks a metric supplied as a CompiledMetric.
	External Kind = 0xFF
)

func (k Kind) String() string {
	switch k {
	case InnerProduct:
		return "ip"
	case Cosine:
		return "cos"
	case L2sq:
		return "l2sq"
	case Haversine:
		return "haversine"
	case Divergence:
		return "divergence"
	case Pearson:
		return "pearson"
	case Hamming:
		return "hamming"
	case Tanimoto:
		return "tanimoto"
	case Sorensen:
		return "sorensen"
	case External:
		return "external"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Valid reports whether k names a built-in metric or External.
func (k Kind) Valid() bool {
	return k <= Sorensen || k == External
}

// Bitwise reports whether k operates on packed bits.
func (k Kind) Bitwise() bool {
	return k == Hamming || k == Tanimoto || k == Sorensen
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("distance: unknown metric %d", k)
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

// ParseKind resolves a metric from its name or a common alias.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ip", "dot", "inner_product", "innerproduct":
		return InnerProduct, nil
	case "cos", "cosine", "angular":
		return Cosine, nil
	case "l2sq", "l2_sq", "euclidean_sq", "sqeuclidean":
		return L2sq, nil
	case "haversine":
		return Haversine, nil
	case "divergence", "jensen_shannon", "js":
		return Divergence, nil
	case "pearson":
		return Pearson, nil
	case "hamming":
		return Hamming, nil
	case "tanimoto", "jaccard":
		return Tanimoto, nil
	case "sorensen", "dice":
		return Sorensen, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %q", name)
	}
}
