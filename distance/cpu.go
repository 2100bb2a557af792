package distance

import "github.com/klauspost/cpuid/v2"

// HardwareAcceleration names the widest vector extension the CPU offers.
// Kernels are portable Go; the report describes the host for diagnostics.
func HardwareAcceleration() string {
	switch {
	case cpuid.CPU.Has(cpuid.AVX512F) && cpuid.CPU.Has(cpuid.AVX512BW):
		return "avx512"
	case cpuid.CPU.Has(cpuid.AVX2) && cpuid.CPU.Has(cpuid.FMA3):
		return "avx2"
	case cpuid.CPU.Has(cpuid.SVE):
		return "sve"
	case cpuid.CPU.Has(cpuid.ASIMD):
		return "neon"
	default:
		return "serial"
	}
}
