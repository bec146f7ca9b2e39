// Package translation implements datasets over a pair of line aligned parallel text files
package translation

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/datasets"
	"github.com/jstzwj/DeepT/tokenizer"
)

// Lazy reads and tokenizes a line pair only when it is accessed.
type Lazy struct {
	source, target *lineFile
	enc            tokenizer.Encoder
	n              int

	// MaxLength truncates each tokenized side when positive, keeping the final marker
	MaxLength int
}

// NewLazy indexes the source and target files. Line i of source translates to
// line i of target; extra lines in the longer file are ignored.
func NewLazy(source, target string, enc tokenizer.Encoder) (*Lazy, error) {
	src, err := openLines(source)
	if err != nil {
		return nil, err
	}
	trg, err := openLines(target)
	if err != nil {
		src.Close()
		return nil, err
	}
	n := min(src.Len(), trg.Len())
	if src.Len() != trg.Len() {
		klog.Warningf("corpus %s has %d lines but %s has %d, using %d pairs",
			source, src.Len(), target, trg.Len(), n)
	}
	return &Lazy{
		source: src,
		target: trg,
		enc:    enc,
		n:      n,
	}, nil
}

// Len is the number of aligned line pairs
func (l *Lazy) Len() int {
	return l.n
}

// At reads line i of both files and tokenizes each independently
func (l *Lazy) At(i int) (datasets.Pair, error) {
	if i < 0 || i >= l.n {
		return datasets.Pair{}, errors.Wrapf(datasets.ErrIndex, "index %d of %d", i, l.n)
	}
	src, err := l.source.Line(i)
	if err != nil {
		return datasets.Pair{}, err
	}
	trg, err := l.target.Line(i)
	if err != nil {
		return datasets.Pair{}, err
	}
	return datasets.Pair{
		Source: Truncate(l.enc.Encode(src), l.MaxLength),
		Target: Truncate(l.enc.Encode(trg), l.MaxLength),
	}, nil
}

// Close releases both files
func (l *Lazy) Close() error {
	err1 := l.source.Close()
	err2 := l.target.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Truncate shortens ids to maxLength, keeping the last id (the end marker).
// Non-positive maxLength disables truncation.
func Truncate(ids []int64, maxLength int) []int64 {
	if maxLength <= 0 || len(ids) <= maxLength {
		return ids
	}
	return append(ids[:maxLength-1:maxLength-1], ids[len(ids)-1])
}
