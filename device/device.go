// Package device stages collated batches in GPU memory. Without the cuda
// build tag every operation fails with ErrUnsupported.
package device

import (
	"github.com/pkg/errors"
)

// ErrUnsupported is returned when the binary was built without CUDA
var ErrUnsupported = errors.New("built without cuda support, rebuild with -tags cuda")

// ErrFreed is returned when a released buffer is used
var ErrFreed = errors.New("buffer already freed")
