//go:build !cuda

package device

import (
	"github.com/jstzwj/DeepT/collate"
)

// Device is a CUDA context on one GPU
type Device struct{}

// Buffer holds one side of a batch in device memory
type Buffer struct {
	Rows, Cols int
}

// Open fails without CUDA support
func Open(int) (*Device, error) {
	return nil, ErrUnsupported
}

// Name fails without CUDA support
func (*Device) Name() (string, error) {
	return "", ErrUnsupported
}

// TotalMem fails without CUDA support
func (*Device) TotalMem() (int64, error) {
	return 0, ErrUnsupported
}

// Stage fails without CUDA support
func (*Device) Stage(collate.Tokens) (*Buffer, error) {
	return nil, ErrUnsupported
}

// Fetch fails without CUDA support
func (*Buffer) Fetch() (collate.Tokens, error) {
	return collate.Tokens{}, ErrUnsupported
}

// Free fails without CUDA support
func (*Buffer) Free() error {
	return ErrUnsupported
}

// Close is a no-op
func (*Device) Close() error {
	return nil
}
