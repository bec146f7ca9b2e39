package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocab = `[PAD]
[UNK]
[CLS]
[SEP]
[MASK]
hello
world
un
##aff
##able
我
##们
好
##好
`

func newTestTokenizer(t testing.TB) *WordPiece {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(testVocab), 0644))
	w, err := Load(path)
	require.NoError(t, err)
	return w
}

func TestSpecialIDs(t *testing.T) {
	w := newTestTokenizer(t)
	assert.Equal(t, int64(0), w.PadID())
	assert.Equal(t, int64(1), w.UnkID())
	assert.Equal(t, int64(2), w.BosID())
	assert.Equal(t, int64(3), w.EosID())
	assert.Equal(t, 14, w.VocabSize())
}

func TestTokenize(t *testing.T) {
	w := newTestTokenizer(t)
	tests := []struct {
		text string
		want []string
	}{
		{"hello unaffable", []string{"hello", "un", "##aff", "##able"}},
		{"  hello\tworld \n", []string{"hello", "world"}},
		{"我们好", []string{"我", "##们", "##好"}},
		{"xyz hello", []string{"[UNK]", "hello"}},
		{"unxaff", []string{"[UNK]"}},
		{"hello [SEP] world", []string{"hello", "[SEP]", "world"}},
		{"hello[MASK]", []string{"hello", "[MASK]"}},
		{"[hello", []string{"[UNK]"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Tokenize(tt.text))
		})
	}
}

func TestEncodeAddsMarkers(t *testing.T) {
	w := newTestTokenizer(t)
	assert.Equal(t, []int64{2, 5, 7, 8, 9, 3}, w.Encode("hello unaffable"))
	assert.Equal(t, []int64{2, 3}, w.Encode(""))
}

func TestDecode(t *testing.T) {
	w := newTestTokenizer(t)
	ids := []int64{2, 5, 7, 8, 9, 3, 0}
	assert.Equal(t, "hello unaffable", w.Decode(ids, true))
	assert.Equal(t, "[CLS] hello unaffable [SEP] [PAD]", w.Decode(ids, false))
	assert.Equal(t, "[UNK]", w.Decode([]int64{99}, true))
}

func TestMaxInputCharsPerWord(t *testing.T) {
	w := newTestTokenizer(t)
	w.MaxInputCharsPerWord = 3
	assert.Equal(t, []string{"[UNK]", "un"}, w.Tokenize("hello un"))
}

func TestMissingSpecialToken(t *testing.T) {
	v, err := ReadVocab(strings.NewReader("[PAD]\n[UNK]\n[CLS]\nhello\n"))
	require.NoError(t, err)
	_, err = New(v)
	assert.ErrorContains(t, err, "[SEP]")
}

func TestReadVocab(t *testing.T) {
	v, err := ReadVocab(strings.NewReader("a\r\nb\nc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v.IDToToken)

	_, err = ReadVocab(strings.NewReader(""))
	assert.Error(t, err)

	_, err = LoadVocab(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

type countingEncoder struct {
	calls atomic.Int64
	enc   Encoder
}

func (c *countingEncoder) Encode(text string) []int64 {
	c.calls.Add(1)
	return c.enc.Encode(text)
}

func TestCached(t *testing.T) {
	inner := &countingEncoder{enc: newTestTokenizer(t)}
	c := NewCached(inner, 0)

	first := c.Encode("hello world")
	second := c.Encode("hello world")
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())

	c.Encode("unaffable")
	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, uint64(2), c.Stats().EntriesCount)

	c.Reset()
	c.Encode("hello world")
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestPackIDs(t *testing.T) {
	for _, ids := range [][]int64{{}, {0}, {1, -5, 1 << 40, 3}} {
		got, ok := unpackIDs(packIDs(ids))
		require.True(t, ok)
		assert.Equal(t, ids, got)
	}
	_, ok := unpackIDs([]byte{5, 1})
	assert.False(t, ok)
}
