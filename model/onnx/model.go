// Package onnx runs an exported encoder-decoder translation graph with ONNX Runtime.
// It only provides the forward pass and is used for evaluation.
package onnx

import (
	"context"
	"os"
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/tensor"
)

// Graph input and output names of the exported model
var (
	InputNames  = []string{"input_ids", "attention_mask", "decoder_input_ids", "decoder_attention_mask"}
	OutputNames = []string{"logits"}
)

// Options locate the graph and the runtime
type Options struct {
	// Path of the .onnx file
	Path string

	// Runtime is the onnxruntime shared library. Empty falls back to
	// ONNXRUNTIME_SHARED_LIBRARY_PATH.
	Runtime string

	VocabSize int

	CUDA     bool
	DeviceID int

	// IntraOpThreads zero falls back to ONNXRUNTIME_INTRA_OP_NUM_THREADS
	IntraOpThreads int
}

// Model is a forward-only translation model
type Model struct {
	session *ort.DynamicAdvancedSession
	vocab   int
}

// SharedLibraryPath is the runtime library named by the environment
func SharedLibraryPath() string {
	return os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
}

// IntraOpNumThreads is the thread count named by the environment, or zero
func IntraOpNumThreads() int {
	s, ok := os.LookupEnv("ONNXRUNTIME_INTRA_OP_NUM_THREADS")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Open initializes the runtime and loads the graph
func Open(o Options) (*Model, error) {
	if o.VocabSize <= 0 {
		return nil, errors.New("vocabulary size must be positive")
	}

	if !ort.IsInitialized() {
		lib := o.Runtime
		if lib == "" {
			lib = SharedLibraryPath()
		}
		ort.SetSharedLibraryPath(lib)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initialize onnxruntime")
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "session options")
	}
	defer options.Destroy()

	if o.CUDA {
		if err := withCUDA(options, o.DeviceID); err != nil {
			return nil, errors.Wrapf(err, "cuda device %d", o.DeviceID)
		}
	}

	threads := o.IntraOpThreads
	if threads <= 0 {
		threads = IntraOpNumThreads()
	}
	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, err
		}
	}

	session, err := ort.NewDynamicAdvancedSession(o.Path, InputNames, OutputNames, options)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", o.Path)
	}
	klog.V(1).InfoS("onnx model loaded", "path", o.Path, "cuda", o.CUDA, "device", o.DeviceID)

	return &Model{session: session, vocab: o.VocabSize}, nil
}

func withCUDA(options *ort.SessionOptions, deviceID int) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	if err := cuda.Update(map[string]string{
		"device_id": strconv.Itoa(deviceID),
	}); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cuda)
}

// Close releases the session and the runtime environment
func (m *Model) Close() error {
	if err := m.session.Destroy(); err != nil {
		return err
	}
	return ort.DestroyEnvironment()
}

// Forward returns the logits [N, W, V] for the decoder input trgIn
func (m *Model) Forward(ctx context.Context, src, trgIn collate.Tokens) (*tensor.Contiguous[float32], error) {
	n, w := trgIn.Size(), trgIn.Width()
	if n == 0 || w == 0 || src.Width() == 0 {
		return tensor.NewContiguous[float32](n, w, m.vocab), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binding, err := m.session.CreateIoBinding()
	if err != nil {
		return nil, err
	}
	defer binding.Destroy()

	inputs, err := newInputs(src, trgIn)
	defer destroyValues(inputs)
	if err != nil {
		return nil, err
	}
	for i, name := range InputNames {
		if err := binding.BindInput(name, inputs[i]); err != nil {
			return nil, errors.Wrapf(err, "bind %s", name)
		}
	}

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), int64(w), int64(m.vocab)))
	if err != nil {
		return nil, err
	}
	defer logits.Destroy()
	if err := binding.BindOutput(OutputNames[0], logits); err != nil {
		return nil, errors.Wrapf(err, "bind %s", OutputNames[0])
	}

	if err := m.session.RunWithBinding(binding); err != nil {
		return nil, errors.Wrap(err, "run")
	}

	out := tensor.NewContiguous[float32](n, w, m.vocab)
	copy(out.Data(), logits.GetData())
	return out, nil
}

func newInputs(src, trgIn collate.Tokens) ([]ort.Value, error) {
	var values []ort.Value
	for _, side := range []collate.Tokens{src, trgIn} {
		shape := ort.NewShape(int64(side.Size()), int64(side.Width()))

		ids, err := ort.NewTensor(shape, append([]int64(nil), side.IDs.Data()...))
		if err != nil {
			return values, err
		}
		values = append(values, ids)

		mask, err := ort.NewTensor(shape, MaskInt64(side.Mask))
		if err != nil {
			return values, err
		}
		values = append(values, mask)
	}
	return values, nil
}

// MaskInt64 converts a boolean mask to the 1/0 attention mask the graph expects
func MaskInt64(mask *tensor.Contiguous[bool]) []int64 {
	out := make([]int64, mask.Len())
	for i, v := range mask.Data() {
		if v {
			out[i] = 1
		}
	}
	return out
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		_ = v.Destroy()
	}
}
