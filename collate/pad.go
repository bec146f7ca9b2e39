// Package collate turns lists of variable length examples into padded batches with validity masks
package collate

import (
	"github.com/jstzwj/DeepT/datasets"
	"github.com/jstzwj/DeepT/tensor"
)

// Tokens is one side of a batch: right-padded token ids and the mask of real tokens
type Tokens struct {
	IDs  *tensor.Contiguous[int64] // [batch, width]
	Mask *tensor.Contiguous[bool]  // [batch, width], true for real tokens
}

// Size is the number of sequences in the batch
func (t Tokens) Size() int {
	return t.IDs.Dim(0)
}

// Width is the padded length of every sequence
func (t Tokens) Width() int {
	return t.IDs.Dim(1)
}

// Lengths recovers the original sequence lengths from the mask
func (t Tokens) Lengths() []int {
	out := make([]int, t.Size())
	for i := range out {
		for _, valid := range t.Mask.Row(i) {
			if valid {
				out[i]++
			}
		}
	}
	return out
}

// Pad is the collate function of the data loader.
type Pad struct {
	// PadID fills every position past the end of a sequence
	PadID int64

	// Size forces a fixed width when positive; otherwise each side is
	// padded to the longest sequence of its own batch
	Size int

	// Joint pads source and target to one common width
	Joint bool
}

// Merge right-pads seqs into a [len(seqs), width] grid. The width is padSize
// when positive, otherwise the longest sequence. Sequences longer than a fixed
// padSize are cut at the width; the returned lengths are always the original ones.
func (p Pad) Merge(seqs [][]int64, padSize int) (*tensor.Contiguous[int64], []int) {
	lengths := make([]int, len(seqs))
	for i, seq := range seqs {
		lengths[i] = len(seq)
	}
	if padSize <= 0 {
		padSize = maxOf(lengths)
	}

	padded := tensor.Full(p.PadID, len(seqs), padSize)
	for i, seq := range seqs {
		end := min(lengths[i], padSize)
		copy(padded.Row(i), seq[:end])
	}
	return padded, lengths
}

// MakeMask builds the [len(lengths), width] mask where position j of row i is
// true iff j < lengths[i]
func MakeMask(width int, lengths []int) *tensor.Contiguous[bool] {
	mask := tensor.NewContiguous[bool](len(lengths), width)
	for i, l := range lengths {
		row := mask.Row(i)
		for j := 0; j < width && j < l; j++ {
			row[j] = true
		}
	}
	return mask
}

// Tokens pads and masks one side of a batch
func (p Pad) Tokens(seqs [][]int64, padSize int) Tokens {
	ids, lengths := p.Merge(seqs, padSize)
	return Tokens{
		IDs:  ids,
		Mask: MakeMask(ids.Dim(1), lengths),
	}
}

// Collate splits the pairs into source and target sequences and pads each side.
// The two sides are padded independently, so their widths may differ, unless
// Joint or Size is set.
func (p Pad) Collate(batch []datasets.Pair) (src, trg Tokens) {
	srcSeqs := make([][]int64, len(batch))
	trgSeqs := make([][]int64, len(batch))
	for i, pair := range batch {
		srcSeqs[i] = pair.Source
		trgSeqs[i] = pair.Target
	}

	padSize := p.Size
	if padSize <= 0 && p.Joint {
		for i := range batch {
			padSize = max(padSize, len(srcSeqs[i]), len(trgSeqs[i]))
		}
	}

	return p.Tokens(srcSeqs, padSize), p.Tokens(trgSeqs, padSize)
}

// Shift prepares teacher forcing: the decoder reads every position but the
// last, and the label at position j is the token at j+1
func Shift(t Tokens) (in Tokens, labels *tensor.Contiguous[int64]) {
	w := t.Width()
	if w == 0 {
		return t, tensor.NewContiguous[int64](t.Size(), 0)
	}
	in = Tokens{
		IDs:  t.IDs.Columns(0, w-1),
		Mask: t.Mask.Columns(0, w-1),
	}
	return in, t.IDs.Columns(1, w)
}

func maxOf(lengths []int) (m int) {
	for _, l := range lengths {
		m = max(m, l)
	}
	return
}
