// Package tensor implements the row-major contiguous arrays used to carry batches
package tensor

import "fmt"

// Contiguous is a dense row-major array of T with a fixed shape
type Contiguous[T any] struct {
	base  []T
	shape []int
}

// NewContiguous allocates a zeroed array of the given shape
func NewContiguous[T any](shape ...int) *Contiguous[T] {
	n := 1

	for _, s := range shape {
		if s < 0 {
			panic("negative dimension")
		}

		n *= s
	}

	return &Contiguous[T]{
		base:  make([]T, n),
		shape: append([]int(nil), shape...),
	}
}

// Full allocates an array of the given shape with every element set to v
func Full[T any](v T, shape ...int) *Contiguous[T] {
	c := NewContiguous[T](shape...)

	for i := range c.base {
		c.base[i] = v
	}

	return c
}

// FromSlice wraps data without copying. It panics if the shape does not cover data exactly.
func FromSlice[T any](data []T, shape ...int) *Contiguous[T] {
	n := 1

	for _, s := range shape {
		n *= s
	}

	if n != len(data) {
		panic(fmt.Sprintf("shape %v does not match %d elements", shape, len(data)))
	}

	return &Contiguous[T]{
		base:  data,
		shape: append([]int(nil), shape...),
	}
}

// Shape returns the dimensions; the caller must not modify it
func (c *Contiguous[T]) Shape() []int {
	return c.shape
}

// Rank is the number of dimensions
func (c *Contiguous[T]) Rank() int {
	return len(c.shape)
}

// Dim returns the size of dimension d
func (c *Contiguous[T]) Dim(d int) int {
	return c.shape[d]
}

// Data exposes the flat backing slice
func (c *Contiguous[T]) Data() []T {
	return c.base
}

// Len is the total number of elements
func (c *Contiguous[T]) Len() int {
	return len(c.base)
}

// At reads the element at the multi-dimensional index idx
func (c *Contiguous[T]) At(idx ...int) T {
	return c.base[c.offset(idx)]
}

// Set writes v at the multi-dimensional index idx
func (c *Contiguous[T]) Set(v T, idx ...int) {
	c.base[c.offset(idx)] = v
}

// Row returns the i-th slice along the first dimension as a view into the backing data
func (c *Contiguous[T]) Row(i int) []T {
	if len(c.shape) == 0 {
		panic("row of scalar")
	}

	stride := 1

	for _, s := range c.shape[1:] {
		stride *= s
	}

	return c.base[i*stride : (i+1)*stride : (i+1)*stride]
}

// Rows converts a rank 2 array into nested slices (copies)
func (c *Contiguous[T]) Rows() [][]T {
	if len(c.shape) != 2 {
		panic("rows of non-matrix")
	}

	out := make([][]T, c.shape[0])

	for i := range out {
		out[i] = append([]T(nil), c.Row(i)...)
	}

	return out
}

// Columns copies the columns [start, end) of a rank 2 array
func (c *Contiguous[T]) Columns(start, end int) *Contiguous[T] {
	if len(c.shape) != 2 {
		panic("columns of non-matrix")
	}

	if start < 0 || end > c.shape[1] || start > end {
		panic(fmt.Sprintf("columns [%d, %d) out of range for width %d", start, end, c.shape[1]))
	}

	out := NewContiguous[T](c.shape[0], end-start)

	for i := 0; i < c.shape[0]; i++ {
		copy(out.Row(i), c.Row(i)[start:end])
	}

	return out
}

func (c *Contiguous[T]) offset(idx []int) int {
	if len(idx) != len(c.shape) {
		panic(fmt.Sprintf("index rank %d for shape %v", len(idx), c.shape))
	}

	return ravel(idx, strides(c.shape))
}

// row-major + contiguous
func strides(shape []int) []int {
	rank := len(shape)

	r := make([]int, rank)

	s := 1

	for i := rank - 1; i >= 0; i-- {
		r[i] = s

		s *= shape[i]
	}

	return r
}

func ravel(idx, strides []int) int {
	l := 0

	for d := range idx {
		l += idx[d] * strides[d]
	}

	return l
}
