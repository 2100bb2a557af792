package distance

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/blas/gonum"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dluc/usearch/scalar"
	"github.com/x448/float16"
)

var blas32 = gonum.Implementation{}

// jsEpsilon keeps the divergence logarithms finite on zero bins.
const jsEpsilon = 1e-7

func f32Kernel(kind Kind, dims int) Func {
	switch kind {
	case InnerProduct:
		return func(a, b []byte) float32 {
			x, y := scalar.AsFloat32(a)[:dims], scalar.AsFloat32(b)[:dims]
			return 1 - blas32.Sdot(dims, x, 1, y, 1)
		}
	case Cosine:
		return func(a, b []byte) float32 {
			x, y := scalar.AsFloat32(a)[:dims], scalar.AsFloat32(b)[:dims]
			return cosineFromParts(
				float64(blas32.Sdot(dims, x, 1, y, 1)),
				float64(blas32.Sdot(dims, x, 1, x, 1)),
				float64(blas32.Sdot(dims, y, 1, y, 1)),
			)
		}
	default:
		return func(a, b []byte) float32 {
			return l2sq32(scalar.AsFloat32(a)[:dims], scalar.AsFloat32(b)[:dims])
		}
	}
}

func f64Kernel(kind Kind, dims int) Func {
	switch kind {
	case InnerProduct:
		return func(a, b []byte) float32 {
			return float32(1 - floats.Dot(scalar.AsFloat64(a)[:dims], scalar.AsFloat64(b)[:dims]))
		}
	case Cosine:
		return func(a, b []byte) float32 {
			x, y := scalar.AsFloat64(a)[:dims], scalar.AsFloat64(b)[:dims]
			return cosineFromParts(floats.Dot(x, y), floats.Dot(x, x), floats.Dot(y, y))
		}
	default:
		return func(a, b []byte) float32 {
			d := floats.Distance(scalar.AsFloat64(a)[:dims], scalar.AsFloat64(b)[:dims], 2)
			return float32(d * d)
		}
	}
}

// i8 vectors hold round(v*127); integer sums are rescaled so results match the float metrics.
func i8Kernel(kind Kind, dims int) Func {
	const scale2 = scalar.I8Scale * scalar.I8Scale
	switch kind {
	case InnerProduct:
		return func(a, b []byte) float32 {
			x, y := scalar.AsInt8(a)[:dims], scalar.AsInt8(b)[:dims]
			var ab int64
			for i := range x {
				ab += int64(x[i]) * int64(y[i])
			}
			return float32(1 - float64(ab)/scale2)
		}
	case Cosine:
		return func(a, b []byte) float32 {
			x, y := scalar.AsInt8(a)[:dims], scalar.AsInt8(b)[:dims]
			var ab, aa, bb int64
			for i := range x {
				xi, yi := int64(x[i]), int64(y[i])
				ab += xi * yi
				aa += xi * xi
				bb += yi * yi
			}
			return cosineFromParts(float64(ab), float64(aa), float64(bb))
		}
	default:
		return func(a, b []byte) float32 {
			x, y := scalar.AsInt8(a)[:dims], scalar.AsInt8(b)[:dims]
			var sum int64
			for i := range x {
				d := int64(x[i]) - int64(y[i])
				sum += d * d
			}
			return float32(float64(sum) / scale2)
		}
	}
}

// halfKernel widens f16 and bf16 vectors into pooled f32 scratch and reuses the f32 kernels.
func halfKernel(kind Kind, sk scalar.Kind, dims int) Func {
	inner := f32Kernel(kind, dims)
	pool := &sync.Pool{New: func() any {
		buf := make([]float32, 2*dims)
		return &buf
	}}
	widen := func(dst []float32, src []byte) {
		in := scalar.AsUint16(src)[:dims]
		if sk == scalar.F16 {
			for i, v := range in {
				dst[i] = float16.Frombits(v).Float32()
			}
			return
		}
		for i, v := range in {
			dst[i] = scalar.BF16ToFloat32(v)
		}
	}
	return func(a, b []byte) float32 {
		bufp := pool.Get().(*[]float32)
		buf := *bufp
		x, y := buf[:dims], buf[dims:2*dims]
		widen(x, a)
		widen(y, b)
		d := inner(f32Bytes(x), f32Bytes(y))
		pool.Put(bufp)
		return d
	}
}

func f32Bytes(v []float32) []byte {
	return scalar.F32s(v).Data
}

// widened runs a float64 kernel over any continuous scalar kind.
func widened(sk scalar.Kind, dims int, fn func(x, y []float64) float32) Func {
	if sk == scalar.F64 {
		return func(a, b []byte) float32 {
			return fn(scalar.AsFloat64(a)[:dims], scalar.AsFloat64(b)[:dims])
		}
	}
	pool := &sync.Pool{New: func() any {
		buf := make([]float64, 2*dims)
		return &buf
	}}
	return func(a, b []byte) float32 {
		bufp := pool.Get().(*[]float64)
		buf := *bufp
		x, y := buf[:dims], buf[dims:2*dims]
		av := scalar.Buffer{Kind: sk, Dims: dims, Data: a}
		bv := scalar.Buffer{Kind: sk, Dims: dims, Data: b}
		for i := 0; i < dims; i++ {
			x[i] = av.At(i)
			y[i] = bv.At(i)
		}
		d := fn(x, y)
		pool.Put(bufp)
		return d
	}
}

func cosineFromParts(ab, aa, bb float64) float32 {
	if aa == 0 && bb == 0 {
		return 0
	}
	if aa == 0 || bb == 0 {
		return 1
	}
	d := 1 - ab/math.Sqrt(aa*bb)
	if d < 0 {
		return 0
	}
	return float32(d)
}

func l2sq32(x, y []float32) float32 {
	var sum float32
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return sum
}

// haversine returns the central angle between two (latitude, longitude) points in radians.
func haversine(x, y []float64) float32 {
	dlat := y[0] - x[0]
	dlon := y[1] - x[1]
	s := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(x[0])*math.Cos(y[0])*math.Sin(dlon/2)*math.Sin(dlon/2)
	s = math.Min(math.Max(s, 0), 1)
	return float32(2 * math.Asin(math.Sqrt(s)))
}

// divergence is the Jensen-Shannon divergence of two probability distributions.
func divergence(x, y []float64) float32 {
	var sum float64
	for i := range x {
		p, q := x[i], y[i]
		m := (p+q)/2 + jsEpsilon
		if p > 0 {
			sum += p * math.Log(p/m+jsEpsilon)
		}
		if q > 0 {
			sum += q * math.Log(q/m+jsEpsilon)
		}
	}
	d := sum / 2
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	return float32(d)
}

// pearson is one minus the correlation coefficient; constant inputs have no correlation.
func pearson(x, y []float64) float32 {
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 1
	}
	return float32(1 - r)
}
