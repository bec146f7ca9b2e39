// Package sampler decides which dataset indices an epoch visits and in which order
package sampler

import (
	"math/rand"
)

// Sampler produces the dataset indices of one epoch
type Sampler interface {
	// Indices returns the visiting order of epoch (counted from 0)
	Indices(epoch int) []int

	// Len is the number of indices per epoch
	Len() int
}

// Sequential visits 0..N-1 in order every epoch
type Sequential int

// Indices returns 0..N-1
func (s Sequential) Indices(int) []int {
	out := make([]int, int(s))
	for i := range out {
		out[i] = i
	}
	return out
}

// Len returns N
func (s Sequential) Len() int {
	return int(s)
}

// Random draws indices uniformly from [0, N)
type Random struct {
	N int

	// NumSamples per epoch; zero means N
	NumSamples int

	// Replacement draws independently; otherwise a permutation is truncated to NumSamples
	Replacement bool

	// Seed makes the order reproducible. Each epoch derives its own stream.
	Seed int64
}

// Len is the number of samples per epoch
func (r Random) Len() int {
	if r.N <= 0 {
		return 0
	}
	if r.NumSamples > 0 {
		if !r.Replacement && r.NumSamples > r.N {
			return r.N
		}
		return r.NumSamples
	}
	return r.N
}

// Indices draws the epoch's indices
func (r Random) Indices(epoch int) []int {
	n := r.Len()
	if n == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(r.Seed + int64(epoch)*0x9E3779B9))
	if r.Replacement {
		out := make([]int, n)
		for i := range out {
			out[i] = rng.Intn(r.N)
		}
		return out
	}
	return rng.Perm(r.N)[:n]
}

// Fraction returns the number of samples that is frac of n, at least 1 for a non-empty dataset
func Fraction(n int, frac float64) int {
	if n <= 0 {
		return 0
	}
	if frac <= 0 || frac >= 1 {
		return n
	}
	return max(1, int(float64(n)*frac))
}

// Batches splits indices into consecutive groups of size. The last group may be
// shorter unless dropLast is set, in which case it is discarded.
func Batches(indices []int, size int, dropLast bool) [][]int {
	if size <= 0 {
		size = 1
	}
	var out [][]int
	for start := 0; start < len(indices); start += size {
		end := min(start+size, len(indices))
		if end-start < size && dropLast {
			break
		}
		out = append(out, indices[start:end:end])
	}
	return out
}

// NumBatches is the number of groups Batches returns for n indices
func NumBatches(n, size int, dropLast bool) int {
	if size <= 0 {
		size = 1
	}
	if dropLast {
		return n / size
	}
	return (n + size - 1) / size
}
