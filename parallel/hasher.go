package parallel

import (
	"crypto/sha256"
	"hash"
	"sync"
)

// Fingerprint hashes a sequence of 32 byte digests in index order while the
// digests themselves arrive from concurrent goroutines in any order.
// Digests are buffered only until the gap before them is filled.
type Fingerprint struct {
	mut     sync.Mutex
	sha     hash.Hash
	ate     int
	pending map[int][32]byte
}

// NewFingerprint creates an empty fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{
		sha:     sha256.New(),
		pending: make(map[int][32]byte),
	}
}

// MustPut records the digest at position n. It panics on a duplicate position.
func (f *Fingerprint) MustPut(n int, value [32]byte) {
	f.mut.Lock()
	defer f.mut.Unlock()

	if n < f.ate {
		panic("already consumed position")
	}
	if _, ok := f.pending[n]; ok {
		panic("duplicate write")
	}
	f.pending[n] = value

	for {
		v, ok := f.pending[f.ate]
		if !ok {
			return
		}
		f.sha.Write(v[:])
		delete(f.pending, f.ate)
		f.ate++
	}
}

// Len is the number of digests consumed in order so far.
func (f *Fingerprint) Len() int {
	f.mut.Lock()
	defer f.mut.Unlock()
	return f.ate
}

// Sum returns the hash of the consumed prefix. Positions after a gap are ignored.
func (f *Fingerprint) Sum() (ret [32]byte) {
	f.mut.Lock()
	copy(ret[:], f.sha.Sum(nil))
	f.mut.Unlock()
	return
}
