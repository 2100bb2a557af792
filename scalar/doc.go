// Package scalar defines the storage precisions an index can hold vectors in and the
// conversions between them.
//
// # Supported Kinds
//
//   - F64, F32: IEEE-754 binary64 and binary32
//   - F16: IEEE-754 binary16 (via github.com/x448/float16)
//   - BF16: bfloat16, the upper half of a binary32
//   - I8: symmetric 8-bit integers, value = q / 127
//   - B1: one bit per dimension, packed most-significant bit first
//
// Downcasting never rejects a value: out-of-range inputs saturate and values between
// representable points are rounded to nearest.
package scalar
