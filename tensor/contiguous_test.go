package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContiguousIndexing(t *testing.T) {
	c := NewContiguous[int64](2, 3)
	c.Set(7, 1, 2)

	assert.Equal(t, []int{2, 3}, c.Shape())
	assert.Equal(t, int64(7), c.At(1, 2))
	assert.Equal(t, int64(7), c.Data()[5])
	assert.Equal(t, []int64{0, 0, 7}, c.Row(1))
}

func TestFull(t *testing.T) {
	c := Full[int64](9, 2, 2)
	assert.Equal(t, []int64{9, 9, 9, 9}, c.Data())

	empty := Full[bool](true, 4, 0)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 4, empty.Dim(0))
	assert.Empty(t, empty.Row(3))
}

func TestColumns(t *testing.T) {
	c := FromSlice([]int64{1, 2, 3, 4, 5, 6}, 2, 3)

	head := c.Columns(0, 2)
	require.Equal(t, []int{2, 2}, head.Shape())
	assert.Equal(t, [][]int64{{1, 2}, {4, 5}}, head.Rows())

	tail := c.Columns(1, 3)
	assert.Equal(t, [][]int64{{2, 3}, {5, 6}}, tail.Rows())

	none := c.Columns(1, 1)
	assert.Equal(t, []int{2, 0}, none.Shape())
}

func TestFromSliceMismatch(t *testing.T) {
	assert.Panics(t, func() {
		FromSlice([]int64{1, 2, 3}, 2, 2)
	})
}
