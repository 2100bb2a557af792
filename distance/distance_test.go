package distance

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch/scalar"
)

func TestParseKindAliases(t *testing.T) {
	cases := map[string]Kind{
		"ip": InnerProduct, "dot": InnerProduct, "cos": Cosine, "angular": Cosine,
		"l2sq": L2sq, "euclidean_sq": L2sq, "haversine": Haversine, "jaccard": Tanimoto,
		"dice": Sorensen, "hamming": Hamming, "pearson": Pearson, "js": Divergence,
	}
	for name, want := range cases {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseKind("manhattan")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Cosine, scalar.F32, 4))
	assert.NoError(t, Validate(Hamming, scalar.B1, 64))
	assert.ErrorIs(t, Validate(Hamming, scalar.F32, 64), ErrIncompatible)
	assert.ErrorIs(t, Validate(L2sq, scalar.B1, 64), ErrIncompatible)
	assert.ErrorIs(t, Validate(Haversine, scalar.F32, 3), ErrIncompatible)
	assert.ErrorIs(t, Validate(Cosine, scalar.F32, 0), ErrIncompatible)
}

func TestContinuousMetricsAcrossKinds(t *testing.T) {
	a := []float64{0.5, -0.25, 0.125, 0.75}
	b := []float64{0.25, 0.5, -0.5, 0.25}

	want := map[Kind]float64{
		InnerProduct: 1 - (0.125 - 0.125 - 0.0625 + 0.1875),
		L2sq:         0.0625 + 0.5625 + 0.390625 + 0.25,
	}
	na := math.Sqrt(0.25 + 0.0625 + 0.015625 + 0.5625)
	nb := math.Sqrt(0.0625 + 0.25 + 0.25 + 0.0625)
	want[Cosine] = 1 - 0.125/(na*nb)

	for _, sk := range []scalar.Kind{scalar.F64, scalar.F32, scalar.F16, scalar.BF16, scalar.I8} {
		tol := 1e-5
		if sk == scalar.I8 || sk == scalar.BF16 {
			tol = 3e-2
		}
		for kind, expected := range want {
			got, err := Distance(mustConvert(t, sk, a), mustConvert(t, sk, b), kind)
			require.NoError(t, err)
			assert.InDelta(t, expected, got, tol, "%s over %s", kind, sk)
		}
	}
}

func TestCosineZeroVectors(t *testing.T) {
	zero := scalar.F32s([]float32{0, 0})
	one := scalar.F32s([]float32{1, 0})

	d, err := Distance(zero, zero, Cosine)
	require.NoError(t, err)
	assert.Equal(t, float32(0), d)

	d, err = Distance(zero, one, Cosine)
	require.NoError(t, err)
	assert.Equal(t, float32(1), d)
}

func TestHaversine(t *testing.T) {
	// Quarter of a great circle along the equator.
	d, err := Distance(scalar.F64s([]float64{0, 0}), scalar.F64s([]float64{0, math.Pi / 2}), Haversine)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, d, 1e-6)
}

func TestPearson(t *testing.T) {
	d, err := Distance(scalar.F32s([]float32{1, 2, 3}), scalar.F32s([]float32{2, 4, 6}), Pearson)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)

	d, err = Distance(scalar.F32s([]float32{1, 2, 3}), scalar.F32s([]float32{3, 2, 1}), Pearson)
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-6)

	d, err = Distance(scalar.F32s([]float32{1, 1, 1}), scalar.F32s([]float32{3, 2, 1}), Pearson)
	require.NoError(t, err)
	assert.Equal(t, float32(1), d)
}

func TestDivergence(t *testing.T) {
	p := scalar.F64s([]float64{0.5, 0.5})
	d, err := Distance(p, p, Divergence)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-5)

	d, err = Distance(scalar.F64s([]float64{1, 0}), scalar.F64s([]float64{0, 1}), Divergence)
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, d, 1e-4)
}

func TestBitwise(t *testing.T) {
	a := scalar.Bits([]byte{0b11110000}, 8)
	b := scalar.Bits([]byte{0b11001100}, 8)

	d, err := Distance(a, b, Hamming)
	require.NoError(t, err)
	assert.Equal(t, float32(4), d)

	d, err = Distance(a, b, Tanimoto)
	require.NoError(t, err)
	assert.InDelta(t, 1-2.0/6.0, d, 1e-6)

	d, err = Distance(a, b, Sorensen)
	require.NoError(t, err)
	assert.InDelta(t, 1-4.0/8.0, d, 1e-6)

	empty := scalar.Bits([]byte{0}, 8)
	d, err = Distance(empty, empty, Tanimoto)
	require.NoError(t, err)
	assert.Equal(t, float32(0), d)
}

func TestDistanceDimensionMismatch(t *testing.T) {
	_, err := Distance(scalar.F32s([]float32{1, 2}), scalar.F32s([]float32{1, 2, 3}), L2sq)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestResolveCompiled(t *testing.T) {
	l1 := func(a, b unsafe.Pointer, dims uintptr) float32 {
		x := unsafe.Slice((*float32)(a), dims)
		y := unsafe.Slice((*float32)(b), dims)
		var sum float32
		for i := range x {
			sum += float32(math.Abs(float64(x[i] - y[i])))
		}
		return sum
	}

	fn, err := ResolveCompiled(CompiledMetric{Signature: ArrayArraySize, Func: l1}, 3)
	require.NoError(t, err)
	a := scalar.F32s([]float32{1, 2, 3})
	b := scalar.F32s([]float32{0, 0, 0})
	assert.Equal(t, float32(6), fn(a.Data, b.Data))

	_, err = ResolveCompiled(CompiledMetric{Signature: ArrayArray, Func: l1}, 3)
	assert.ErrorIs(t, err, ErrIncompatible)

	_, err = ResolveCompiled(CompiledMetric{Signature: ArraySizeArraySize, Func: "nope"}, 3)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestResolveRejectsExternal(t *testing.T) {
	_, err := Resolve(External, scalar.F32, 4)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestHardwareAcceleration(t *testing.T) {
	assert.NotEmpty(t, HardwareAcceleration())
}

func mustConvert(t *testing.T, sk scalar.Kind, v []float64) scalar.Buffer {
	t.Helper()
	buf, err := scalar.Convert(sk, scalar.F64s(v))
	require.NoError(t, err)
	return buf
}
