package parallel

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Workers returns n when positive, otherwise the number of physical cores.
// Hyperthreads are not counted since tokenization is CPU bound.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	if cores := cpuid.CPU.PhysicalCores; cores > 0 {
		return cores
	}
	return runtime.NumCPU()
}
