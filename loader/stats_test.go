package loader

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/datasets"
)

func batchOf(index int, pad collate.Pad, pairs ...datasets.Pair) Batch {
	src, trg := pad.Collate(pairs)
	indices := make([]int, len(pairs))
	for i := range indices {
		indices[i] = index*len(pairs) + i
	}
	return Batch{Index: index, Indices: indices, Source: src, Target: trg}
}

func TestSummary(t *testing.T) {
	pad := collate.Pad{}
	s := NewSummary()
	// source 2x2 fully used, target 2x2 with one pad: 1/8 padding
	s.Add(batchOf(0, pad,
		datasets.Pair{Source: []int64{1, 2}, Target: []int64{3, 4}},
		datasets.Pair{Source: []int64{5, 6}, Target: []int64{7}},
	))
	// source 2x4 with 2 pads, target 2x2 full: 2/12 padding
	s.Add(batchOf(1, pad,
		datasets.Pair{Source: []int64{1, 2, 3, 4}, Target: []int64{3, 4}},
		datasets.Pair{Source: []int64{5, 6}, Target: []int64{7, 8}},
	))

	st := s.Stats()
	assert.Equal(t, 2, st.Batches)
	assert.Equal(t, 4, st.Examples)
	assert.InDelta(t, 3, st.SourceWidth.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt2, st.SourceWidth.StdDev, 1e-9)
	assert.InDelta(t, 2, st.TargetWidth.Mean, 1e-9)
	assert.Zero(t, st.TargetWidth.StdDev)
	assert.InDelta(t, (1.0/8+2.0/12)/2, st.Padding.Mean, 1e-9)
}

func TestSummaryOrderIndependent(t *testing.T) {
	pad := collate.Pad{}
	batches := make([]Batch, 20)
	for i := range batches {
		batches[i] = batchOf(i, pad, datasets.Pair{Source: []int64{int64(i)}, Target: []int64{int64(i), 1}})
	}

	inOrder := NewSummary()
	for _, b := range batches {
		inOrder.Add(b)
	}

	concurrent := NewSummary()
	var wg sync.WaitGroup
	for i := len(batches) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(b Batch) {
			defer wg.Done()
			concurrent.Add(b)
		}(batches[i])
	}
	wg.Wait()

	assert.Equal(t, inOrder.Stats().Fingerprint, concurrent.Stats().Fingerprint)
}

func TestSummaryEmpty(t *testing.T) {
	st := NewSummary().Stats()
	assert.Zero(t, st.Batches)
	assert.Equal(t, Moment{}, st.Padding)
}

func TestDigestSeesContent(t *testing.T) {
	pad := collate.Pad{}
	a := batchOf(0, pad, datasets.Pair{Source: []int64{1}, Target: []int64{2}})
	b := batchOf(0, pad, datasets.Pair{Source: []int64{1}, Target: []int64{3}})
	assert.NotEqual(t, Digest(a), Digest(b))
	assert.Equal(t, Digest(a), Digest(a))
}
