package translation

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// lineFile gives random access to the lines of a text file through an index
// of line start offsets. The text itself stays on disk.
type lineFile struct {
	file    *os.File
	offsets []int64
	size    int64
}

func openLines(path string) (*lineFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open corpus")
	}
	offsets, size, err := indexLines(file)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "index %s", path)
	}
	return &lineFile{
		file:    file,
		offsets: offsets,
		size:    size,
	}, nil
}

// indexLines records where every line starts. A last line without a trailing
// newline still counts; nothing after a final newline does.
func indexLines(r io.Reader) (offsets []int64, size int64, err error) {
	br := bufio.NewReaderSize(r, 1<<20)
	lineStart := true
	for {
		b, err := br.ReadSlice('\n')
		if len(b) > 0 {
			if lineStart {
				offsets = append(offsets, size)
			}
			size += int64(len(b))
			lineStart = b[len(b)-1] == '\n'
		}
		switch err {
		case nil, bufio.ErrBufferFull:
			continue
		case io.EOF:
			return offsets, size, nil
		default:
			return nil, 0, err
		}
	}
}

func (l *lineFile) Len() int {
	return len(l.offsets)
}

// Line reads line i without its line terminator. Safe for concurrent use.
func (l *lineFile) Line(i int) (string, error) {
	start := l.offsets[i]
	end := l.size
	if i+1 < len(l.offsets) {
		end = l.offsets[i+1]
	}
	buf := make([]byte, end-start)
	if _, err := l.file.ReadAt(buf, start); err != nil && err != io.EOF {
		return "", errors.Wrapf(err, "read line %d of %s", i, l.file.Name())
	}
	return string(trimEOL(buf)), nil
}

func (l *lineFile) Close() error {
	return l.file.Close()
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
