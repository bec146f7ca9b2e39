package loader

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/parallel"
)

// Moment is a sample mean and standard deviation
type Moment struct {
	Mean, StdDev float64
}

func (m Moment) String() string {
	return fmt.Sprintf("%.2f±%.2f", m.Mean, m.StdDev)
}

// Stats summarizes the batches of one epoch
type Stats struct {
	Batches  int
	Examples int

	// SourceWidth and TargetWidth are the padded widths per batch
	SourceWidth, TargetWidth Moment

	// Padding is the fraction of pad positions per batch, both sides together
	Padding Moment

	// Fingerprint identifies the epoch's batch order and content
	Fingerprint [32]byte
}

// Summary accumulates Stats from the batches of an epoch. Add may be called
// from several goroutines.
type Summary struct {
	fp       *parallel.Fingerprint
	mu       sync.Mutex
	examples int
	src, trg []float64
	padding  []float64
}

// NewSummary starts an empty summary
func NewSummary() *Summary {
	return &Summary{
		fp: parallel.NewFingerprint(),
	}
}

// Add records one batch
func (s *Summary) Add(b Batch) {
	s.fp.MustPut(b.Index, Digest(b))

	total := float64(b.Source.IDs.Len() + b.Target.IDs.Len())
	valid := float64(sum(b.Source.Lengths()) + sum(b.Target.Lengths()))
	ratio := 0.0
	if total > 0 {
		ratio = 1 - valid/total
	}

	s.mu.Lock()
	s.examples += b.Source.Size()
	s.src = append(s.src, float64(b.Source.Width()))
	s.trg = append(s.trg, float64(b.Target.Width()))
	s.padding = append(s.padding, ratio)
	s.mu.Unlock()
}

// Stats returns the summary so far
func (s *Summary) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Batches:     len(s.src),
		Examples:    s.examples,
		SourceWidth: moment(s.src),
		TargetWidth: moment(s.trg),
		Padding:     moment(s.padding),
		Fingerprint: s.fp.Sum(),
	}
}

// Digest hashes the dataset indices and padded ids of a batch
func Digest(b Batch) [32]byte {
	h := sha256.New()
	var buf [8]byte
	for _, idx := range b.Indices {
		binary.LittleEndian.PutUint64(buf[:], uint64(idx))
		h.Write(buf[:])
	}
	for _, side := range []collate.Tokens{b.Source, b.Target} {
		binary.LittleEndian.PutUint64(buf[:], uint64(side.Width()))
		h.Write(buf[:])
		for _, id := range side.IDs.Data() {
			binary.LittleEndian.PutUint64(buf[:], uint64(id))
			h.Write(buf[:])
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func moment(x []float64) Moment {
	switch len(x) {
	case 0:
		return Moment{}
	case 1:
		return Moment{Mean: x[0]}
	}
	mean, std := stat.MeanStdDev(x, nil)
	return Moment{Mean: mean, StdDev: std}
}

func sum(x []int) (s int) {
	for _, v := range x {
		s += v
	}
	return
}
