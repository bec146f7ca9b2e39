//go:build cuda

package device

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"gorgonia.org/cu"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/tensor"
)

// Device is a CUDA context on one GPU
type Device struct {
	mu      sync.Mutex
	ordinal int
	ctx     cu.CUContext
	closed  bool
}

// Buffer holds one side of a batch in device memory
type Buffer struct {
	Rows, Cols int

	dev       *Device
	ids, mask cu.DevicePtr
	freed     bool
}

// Open creates a context on GPU ordinal
func Open(ordinal int) (*Device, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	device, err := cu.GetDevice(ordinal)
	if err != nil {
		return nil, errors.Wrapf(err, "get device %d", ordinal)
	}
	ctx, err := device.MakeContext(cu.SchedAuto)
	if err != nil {
		return nil, errors.Wrapf(err, "create context on device %d", ordinal)
	}
	d := &Device{ordinal: ordinal, ctx: ctx}
	if name, err := d.Name(); err == nil {
		klog.V(1).InfoS("cuda device", "ordinal", ordinal, "name", name)
	}
	return d, nil
}

// Name of the GPU
func (d *Device) Name() (string, error) {
	return cu.Device(d.ordinal).Name()
}

// TotalMem is the device memory in bytes
func (d *Device) TotalMem() (int64, error) {
	return cu.Device(d.ordinal).TotalMem()
}

// bind makes the context current on the calling, locked OS thread
func (d *Device) bind() (release func(), err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("device closed")
	}
	runtime.LockOSThread()
	if err := cu.SetCurrentContext(d.ctx); err != nil {
		runtime.UnlockOSThread()
		d.mu.Unlock()
		return nil, errors.Wrap(err, "set context")
	}
	return func() {
		runtime.UnlockOSThread()
		d.mu.Unlock()
	}, nil
}

// Stage copies the ids and mask of t to device memory
func (d *Device) Stage(t collate.Tokens) (*Buffer, error) {
	b := &Buffer{Rows: t.Size(), Cols: t.Width(), dev: d}
	n := int64(t.IDs.Len())
	if n == 0 {
		return b, nil
	}

	release, err := d.bind()
	if err != nil {
		return nil, err
	}
	defer release()

	idsSize := n * int64(unsafe.Sizeof(int64(0)))
	maskSize := n * int64(unsafe.Sizeof(false))

	if b.ids, err = cu.MemAlloc(idsSize); err != nil {
		return nil, errors.Wrap(err, "allocate ids")
	}
	if b.mask, err = cu.MemAlloc(maskSize); err != nil {
		cu.MemFree(b.ids)
		return nil, errors.Wrap(err, "allocate mask")
	}
	if err = cu.MemcpyHtoD(b.ids, unsafe.Pointer(&t.IDs.Data()[0]), idsSize); err == nil {
		err = cu.MemcpyHtoD(b.mask, unsafe.Pointer(&t.Mask.Data()[0]), maskSize)
	}
	if err != nil {
		cu.MemFree(b.ids)
		cu.MemFree(b.mask)
		return nil, errors.Wrap(err, "copy to device")
	}
	return b, nil
}

// Fetch copies the buffer back to host memory
func (b *Buffer) Fetch() (collate.Tokens, error) {
	if b.freed {
		return collate.Tokens{}, ErrFreed
	}
	t := collate.Tokens{
		IDs:  tensor.NewContiguous[int64](b.Rows, b.Cols),
		Mask: tensor.NewContiguous[bool](b.Rows, b.Cols),
	}
	n := int64(t.IDs.Len())
	if n == 0 {
		return t, nil
	}

	release, err := b.dev.bind()
	if err != nil {
		return collate.Tokens{}, err
	}
	defer release()

	if err := cu.MemcpyDtoH(unsafe.Pointer(&t.IDs.Data()[0]), b.ids, n*int64(unsafe.Sizeof(int64(0)))); err != nil {
		return collate.Tokens{}, errors.Wrap(err, "copy ids to host")
	}
	if err := cu.MemcpyDtoH(unsafe.Pointer(&t.Mask.Data()[0]), b.mask, n*int64(unsafe.Sizeof(false))); err != nil {
		return collate.Tokens{}, errors.Wrap(err, "copy mask to host")
	}
	return t, nil
}

// Free releases the device memory
func (b *Buffer) Free() error {
	if b.freed {
		return ErrFreed
	}
	b.freed = true
	if b.Rows*b.Cols == 0 {
		return nil
	}

	release, err := b.dev.bind()
	if err != nil {
		return err
	}
	defer release()

	if err := cu.MemFree(b.ids); err != nil {
		return err
	}
	return cu.MemFree(b.mask)
}

// Close destroys the context. Buffers must be freed first.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.ctx.Destroy()
	return nil
}
