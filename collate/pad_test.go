package collate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstzwj/DeepT/datasets"
)

func TestMergeExample(t *testing.T) {
	tok := Pad{PadID: 0}.Tokens([][]int64{{1, 2, 3}, {4, 5}}, 0)

	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 0}}, tok.IDs.Rows())
	assert.Equal(t, [][]bool{{true, true, true}, {true, true, false}}, tok.Mask.Rows())
	assert.Equal(t, []int{3, 2}, tok.Lengths())
}

func TestMergePadValue(t *testing.T) {
	ids, lengths := Pad{PadID: 7}.Merge([][]int64{{1}, {}, {2, 3, 4, 5}}, 0)

	assert.Equal(t, []int{1, 0, 4}, lengths)
	assert.Equal(t, [][]int64{{1, 7, 7, 7}, {7, 7, 7, 7}, {2, 3, 4, 5}}, ids.Rows())
}

func TestMergeFixedSize(t *testing.T) {
	tok := Pad{PadID: 0}.Tokens([][]int64{{1, 2, 3}, {4}}, 2)

	assert.Equal(t, [][]int64{{1, 2}, {4, 0}}, tok.IDs.Rows())
	assert.Equal(t, [][]bool{{true, true}, {true, false}}, tok.Mask.Rows())
}

func TestCollateIndependentWidths(t *testing.T) {
	batch := []datasets.Pair{
		{Source: []int64{1, 2}, Target: []int64{5, 6, 7, 8, 9}},
		{Source: []int64{3}, Target: []int64{5, 6}},
	}
	src, trg := Pad{PadID: 0}.Collate(batch)

	assert.Equal(t, 2, src.Width())
	assert.Equal(t, 5, trg.Width())
	assert.Equal(t, 2, src.Size())
	assert.Equal(t, 2, trg.Size())
	assert.Equal(t, [][]int64{{1, 2}, {3, 0}}, src.IDs.Rows())
	assert.Equal(t, [][]int64{{5, 6, 7, 8, 9}, {5, 6, 0, 0, 0}}, trg.IDs.Rows())
}

func TestCollateJoint(t *testing.T) {
	batch := []datasets.Pair{
		{Source: []int64{1, 2}, Target: []int64{5, 6, 7}},
		{Source: []int64{3}, Target: []int64{5}},
	}
	src, trg := Pad{PadID: 0, Joint: true}.Collate(batch)

	assert.Equal(t, 3, src.Width())
	assert.Equal(t, 3, trg.Width())
	assert.Equal(t, [][]bool{{true, true, false}, {true, false, false}}, src.Mask.Rows())
}

func TestCollateAllEmpty(t *testing.T) {
	batch := []datasets.Pair{{}, {}, {}}
	src, trg := Pad{PadID: 0}.Collate(batch)

	assert.Equal(t, 0, src.Width())
	assert.Equal(t, 3, src.Size())
	assert.Equal(t, 0, trg.Width())
	assert.Equal(t, 3, trg.Size())
	assert.Equal(t, []int{3, 0}, src.Mask.Shape())
}

func TestCollateEmptyBatch(t *testing.T) {
	src, trg := Pad{}.Collate(nil)
	assert.Equal(t, 0, src.Size())
	assert.Equal(t, 0, trg.Width())
}

func TestShift(t *testing.T) {
	tok := Pad{PadID: 0}.Tokens([][]int64{{2, 10, 11, 3}, {2, 12, 3}}, 0)
	in, labels := Shift(tok)

	assert.Equal(t, [][]int64{{2, 10, 11}, {2, 12, 3}}, in.IDs.Rows())
	assert.Equal(t, [][]bool{{true, true, true}, {true, true, true}}, in.Mask.Rows())
	assert.Equal(t, [][]int64{{10, 11, 3}, {12, 3, 0}}, labels.Rows())

	one := Pad{}.Tokens([][]int64{{2}}, 0)
	in, labels = Shift(one)
	assert.Equal(t, 0, in.Width())
	assert.Equal(t, []int{1, 0}, labels.Shape())

	none := Pad{}.Tokens([][]int64{{}, {}}, 0)
	in, labels = Shift(none)
	assert.Equal(t, 0, in.Width())
	assert.Equal(t, []int{2, 0}, labels.Shape())
}

func randomSeqs(r *rand.Rand, n, maxLen int) [][]int64 {
	seqs := make([][]int64, n)
	for i := range seqs {
		seqs[i] = make([]int64, r.Intn(maxLen+1))
		for j := range seqs[i] {
			seqs[i][j] = 1 + r.Int63n(1000)
		}
	}
	return seqs
}

// padding invariants for random batches
func FuzzMerge(f *testing.F) {
	f.Add(int64(1), uint8(4), uint8(10), int64(0))
	f.Add(int64(2), uint8(1), uint8(0), int64(-1))
	f.Fuzz(func(t *testing.T, seed int64, n, maxLen uint8, padID int64) {
		r := rand.New(rand.NewSource(seed))
		seqs := randomSeqs(r, int(n), int(maxLen))
		tok := Pad{PadID: padID}.Tokens(seqs, 0)

		want := 0
		for _, s := range seqs {
			want = max(want, len(s))
		}
		require.Equal(t, want, tok.Width())
		require.Equal(t, len(seqs), tok.Size())

		for i, s := range seqs {
			ids, mask := tok.IDs.Row(i), tok.Mask.Row(i)
			for j := 0; j < want; j++ {
				if mask[j] != (j < len(s)) {
					t.Fatalf("mask[%d][%d] = %v for length %d", i, j, mask[j], len(s))
				}
				if j < len(s) && ids[j] != s[j] {
					t.Fatalf("ids[%d][%d] = %d, want %d", i, j, ids[j], s[j])
				}
				if j >= len(s) && ids[j] != padID {
					t.Fatalf("ids[%d][%d] = %d, want pad %d", i, j, ids[j], padID)
				}
			}
		}
	})
}

func BenchmarkCollate(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	batch := make([]datasets.Pair, 8)
	for i := range batch {
		seqs := randomSeqs(r, 2, 128)
		batch[i] = datasets.Pair{Source: seqs[0], Target: seqs[1]}
	}
	pad := Pad{PadID: 0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pad.Collate(batch)
	}
}
