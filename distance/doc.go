// Package distance resolves metric kinds into distance functions over stored vector bytes.
//
// # Supported Metrics
//
//   - InnerProduct: 1 - <a, b>
//   - Cosine: 1 - <a, b> / (|a| |b|)
//   - L2sq: squared Euclidean distance
//   - Haversine: great-circle angle between two (latitude, longitude) pairs in radians
//   - Divergence: Jensen-Shannon divergence
//   - Pearson: 1 - Pearson correlation
//   - Hamming, Tanimoto, Sorensen: bitwise metrics over scalar.B1 vectors
//
// A metric may also be supplied as an externally compiled function (see CompiledMetric).
// Dot products and norms for f32 and f64 storage run on gonum's BLAS kernels.
package distance
