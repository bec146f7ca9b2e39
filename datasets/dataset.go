// Package datasets implements the parallel text dataset types
package datasets

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrIndex is returned for an index outside of [0, Len())
var ErrIndex = errors.New("dataset index out of range")

// Pair is one training example: the token ids of a source sentence and of its translation
type Pair struct {
	Source []int64
	Target []int64
}

// Dataset is an indexable sequence of pairs. At must be safe for concurrent use.
type Dataset interface {
	Len() int
	At(i int) (Pair, error)
}

// Concat chains several datasets into one
type Concat struct {
	parts      []Dataset
	cumulative []int
}

// NewConcat builds a Concat over parts, in order
func NewConcat(parts ...Dataset) *Concat {
	c := &Concat{
		parts:      parts,
		cumulative: make([]int, len(parts)),
	}
	var total int
	for i, p := range parts {
		total += p.Len()
		c.cumulative[i] = total
	}
	return c
}

// Len is the sum of the part lengths
func (c *Concat) Len() int {
	if len(c.cumulative) == 0 {
		return 0
	}
	return c.cumulative[len(c.cumulative)-1]
}

// Locate maps a global index to the owning part and the index within it
func (c *Concat) Locate(i int) (part, local int, err error) {
	if i < 0 || i >= c.Len() {
		return 0, 0, errors.Wrapf(ErrIndex, "index %d of %d", i, c.Len())
	}
	// first part whose cumulative size exceeds i; empty parts are skipped naturally
	part = sort.Search(len(c.cumulative), func(k int) bool {
		return c.cumulative[k] > i
	})
	local = i
	if part > 0 {
		local -= c.cumulative[part-1]
	}
	return part, local, nil
}

// At reads the pair at global index i
func (c *Concat) At(i int) (Pair, error) {
	part, local, err := c.Locate(i)
	if err != nil {
		return Pair{}, err
	}
	return c.parts[part].At(local)
}

// Slice is an in-memory dataset, mostly useful for tests and small corpora
type Slice []Pair

// Len returns the number of pairs
func (s Slice) Len() int {
	return len(s)
}

// At returns the pair at i
func (s Slice) At(i int) (Pair, error) {
	if i < 0 || i >= len(s) {
		return Pair{}, errors.Wrapf(ErrIndex, "index %d of %d", i, len(s))
	}
	return s[i], nil
}
