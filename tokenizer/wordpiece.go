package tokenizer

import (
	"strings"

	"github.com/pkg/errors"
)

// Special tokens of a BERT vocabulary. [CLS] and [SEP] double as the
// beginning and end of sequence markers.
const (
	UnkToken  = "[UNK]"
	SepToken  = "[SEP]"
	PadToken  = "[PAD]"
	ClsToken  = "[CLS]"
	MaskToken = "[MASK]"

	BosToken = ClsToken
	EosToken = SepToken
)

// DefaultMaxInputCharsPerWord is the longest word (in runes) that is split into pieces;
// longer words become [UNK]
const DefaultMaxInputCharsPerWord = 100

// Encoder turns one line of text into token ids
type Encoder interface {
	Encode(text string) []int64
}

// WordPiece is a greedy longest-match-first subword tokenizer without basic
// tokenization: text is only split on special tokens and whitespace, never
// lowercased or split on punctuation.
type WordPiece struct {
	vocab                *Vocab
	special              []string
	specialIDs           map[int64]struct{}
	unk, pad, bos, eos   int64
	MaxInputCharsPerWord int
}

// New creates a WordPiece tokenizer over vocab. The vocabulary must contain
// [UNK], [PAD], [CLS] and [SEP].
func New(vocab *Vocab) (*WordPiece, error) {
	w := &WordPiece{
		vocab:                vocab,
		specialIDs:           make(map[int64]struct{}),
		MaxInputCharsPerWord: DefaultMaxInputCharsPerWord,
	}
	for _, tok := range []struct {
		name     string
		dst      *int64
		required bool
	}{
		{UnkToken, &w.unk, true},
		{PadToken, &w.pad, true},
		{BosToken, &w.bos, true},
		{EosToken, &w.eos, true},
		{MaskToken, nil, false},
	} {
		id, ok := vocab.ID(tok.name)
		if !ok {
			if tok.required {
				return nil, errors.Errorf("vocabulary has no %s token", tok.name)
			}
			continue
		}
		if tok.dst != nil {
			*tok.dst = id
		}
		w.special = append(w.special, tok.name)
		w.specialIDs[id] = struct{}{}
	}
	return w, nil
}

// Load reads vocab.txt at path and creates the tokenizer
func Load(path string) (*WordPiece, error) {
	vocab, err := LoadVocab(path)
	if err != nil {
		return nil, err
	}
	return New(vocab)
}

// VocabSize is the number of distinct tokens
func (w *WordPiece) VocabSize() int { return w.vocab.Len() }

// PadID is the id of [PAD]
func (w *WordPiece) PadID() int64 { return w.pad }

// UnkID is the id of [UNK]
func (w *WordPiece) UnkID() int64 { return w.unk }

// BosID is the id of the sequence start marker [CLS]
func (w *WordPiece) BosID() int64 { return w.bos }

// EosID is the id of the sequence end marker [SEP]
func (w *WordPiece) EosID() int64 { return w.eos }

// Tokenize splits text into word pieces, without adding sequence markers
func (w *WordPiece) Tokenize(text string) []string {
	var out []string
	for _, chunk := range w.splitSpecial(text) {
		if chunk.special {
			out = append(out, chunk.text)
			continue
		}
		for _, word := range strings.Fields(chunk.text) {
			out = w.appendPieces(out, word)
		}
	}
	return out
}

// Encode tokenizes text and wraps the ids in [CLS] ... [SEP]
func (w *WordPiece) Encode(text string) []int64 {
	pieces := w.Tokenize(text)
	ids := make([]int64, 0, len(pieces)+2)
	ids = append(ids, w.bos)
	for _, p := range pieces {
		id, ok := w.vocab.ID(p)
		if !ok {
			id = w.unk
		}
		ids = append(ids, id)
	}
	return append(ids, w.eos)
}

// Decode converts ids back to text, gluing ## continuation pieces to their word.
// Ids outside the vocabulary decode as [UNK].
func (w *WordPiece) Decode(ids []int64, skipSpecial bool) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := w.specialIDs[id]; ok && skipSpecial {
			continue
		}
		tok, ok := w.vocab.Token(id)
		if !ok {
			tok = UnkToken
		}
		tokens = append(tokens, tok)
	}
	return strings.TrimSpace(strings.ReplaceAll(strings.Join(tokens, " "), " ##", ""))
}

func (w *WordPiece) appendPieces(out []string, word string) []string {
	chars := []rune(word)
	if len(chars) > w.MaxInputCharsPerWord {
		return append(out, UnkToken)
	}

	var pieces []string
	for start := 0; start < len(chars); {
		end := len(chars)
		var cur string
		for start < end {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := w.vocab.ID(sub); ok {
				cur = sub
				break
			}
			end--
		}
		if cur == "" {
			// one unmatched piece turns the whole word into [UNK]
			return append(out, UnkToken)
		}
		pieces = append(pieces, cur)
		start = end
	}
	return append(out, pieces...)
}

type chunk struct {
	text    string
	special bool
}

// splitSpecial cuts text around occurrences of special tokens, preferring the
// longest special token at each position
func (w *WordPiece) splitSpecial(text string) []chunk {
	var out []chunk
	last := 0
	for i := 0; i < len(text); {
		if text[i] != '[' {
			i++
			continue
		}
		var match string
		for _, s := range w.special {
			if len(s) > len(match) && strings.HasPrefix(text[i:], s) {
				match = s
			}
		}
		if match == "" {
			i++
			continue
		}
		if last < i {
			out = append(out, chunk{text: text[last:i]})
		}
		out = append(out, chunk{text: match, special: true})
		i += len(match)
		last = i
	}
	if last < len(text) {
		out = append(out, chunk{text: text[last:]})
	}
	return out
}
