package onnx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/datasets"
	"github.com/jstzwj/DeepT/tensor"
)

func TestMaskInt64(t *testing.T) {
	mask := collate.MakeMask(3, []int{3, 1})
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0}, MaskInt64(mask))
	assert.Empty(t, MaskInt64(tensor.NewContiguous[bool](2, 0)))
}

func TestIntraOpNumThreads(t *testing.T) {
	t.Setenv("ONNXRUNTIME_INTRA_OP_NUM_THREADS", "3")
	assert.Equal(t, 3, IntraOpNumThreads())

	t.Setenv("ONNXRUNTIME_INTRA_OP_NUM_THREADS", "many")
	assert.Zero(t, IntraOpNumThreads())
}

func TestForwardZeroWidthSkipsRuntime(t *testing.T) {
	m := &Model{vocab: 7}
	src, trg := collate.Pad{}.Collate([]datasets.Pair{{Source: []int64{1, 2}}, {Source: []int64{3}}})
	in, _ := collate.Shift(trg)

	logits, err := m.Forward(context.Background(), src, in)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 7}, logits.Shape())
}

func TestOpenRejectsVocab(t *testing.T) {
	_, err := Open(Options{Path: "model.onnx"})
	assert.Error(t, err)
}

// The full forward pass needs the runtime library and an exported graph
func TestForwardExportedGraph(t *testing.T) {
	graph := os.Getenv("DEEPT_ONNX_MODEL")
	if graph == "" || SharedLibraryPath() == "" {
		t.Skip("DEEPT_ONNX_MODEL and ONNXRUNTIME_SHARED_LIBRARY_PATH not set")
	}
	vocab := 21128
	m, err := Open(Options{Path: filepath.Clean(graph), VocabSize: vocab})
	require.NoError(t, err)
	defer m.Close()

	src, trg := collate.Pad{}.Collate([]datasets.Pair{
		{Source: []int64{101, 8701, 102}, Target: []int64{101, 872, 1962, 102}},
		{Source: []int64{101, 102}, Target: []int64{101, 102}},
	})
	in, _ := collate.Shift(trg)

	logits, err := m.Forward(context.Background(), src, in)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, vocab}, logits.Shape())
}
