package distance

import "math/bits"

func hamming(a, b []byte) float32 {
	var n int
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return float32(n)
}

func tanimoto(a, b []byte) float32 {
	var and, or int
	for i := range a {
		and += bits.OnesCount8(a[i] & b[i])
		or += bits.OnesCount8(a[i] | b[i])
	}
	if or == 0 {
		return 0
	}
	return 1 - float32(and)/float32(or)
}

func sorensen(a, b []byte) float32 {
	var and, total int
	for i := range a {
		and += bits.OnesCount8(a[i] & b[i])
		total += bits.OnesCount8(a[i]) + bits.OnesCount8(b[i])
	}
	if total == 0 {
		return 0
	}
	return 1 - 2*float32(and)/float32(total)
}
