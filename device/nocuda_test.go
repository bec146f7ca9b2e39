//go:build !cuda

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsupported(t *testing.T) {
	_, err := Open(0)
	assert.ErrorIs(t, err, ErrUnsupported)

	var d Device
	_, err = d.TotalMem()
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NoError(t, d.Close())
}
