// Package tokenizer implements the BERT WordPiece tokenizer used to turn corpus lines into token ids
package tokenizer

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Vocab maps word pieces to ids and back. The id of a piece is its line number in vocab.txt.
type Vocab struct {
	TokenToID map[string]int64
	IDToToken []string
}

// LoadVocab reads a vocab.txt file, one token per line
func LoadVocab(path string) (*Vocab, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open vocab")
	}
	defer file.Close()

	v, err := ReadVocab(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read vocab %s", path)
	}
	return v, nil
}

// ReadVocab parses a vocabulary from r. A token repeated on a later line takes the later id.
func ReadVocab(r io.Reader) (*Vocab, error) {
	v := &Vocab{
		TokenToID: make(map[string]int64),
	}

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			token := strings.TrimRight(line, "\r\n")
			v.TokenToID[token] = int64(len(v.IDToToken))
			v.IDToToken = append(v.IDToToken, token)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(v.IDToToken) == 0 {
		return nil, errors.New("empty vocabulary")
	}
	return v, nil
}

// Len is the number of distinct tokens
func (v *Vocab) Len() int {
	return len(v.TokenToID)
}

// ID looks up a token
func (v *Vocab) ID(token string) (int64, bool) {
	id, ok := v.TokenToID[token]
	return id, ok
}

// Token looks up an id
func (v *Vocab) Token(id int64) (string, bool) {
	if id < 0 || id >= int64(len(v.IDToToken)) {
		return "", false
	}
	return v.IDToToken[id], true
}
