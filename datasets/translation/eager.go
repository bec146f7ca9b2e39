package translation

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/datasets"
	"github.com/jstzwj/DeepT/parallel"
	"github.com/jstzwj/DeepT/tokenizer"
)

// maxLineBytes bounds a single corpus line for the scanner
const maxLineBytes = 16 << 20

// NewEager reads both files completely and tokenizes every pair up front,
// using up to workers goroutines. Suited to small corpora such as validation sets.
func NewEager(source, target string, enc tokenizer.Encoder, maxLength, workers int) (datasets.Slice, error) {
	srcLines, err := readLines(source)
	if err != nil {
		return nil, err
	}
	trgLines, err := readLines(target)
	if err != nil {
		return nil, err
	}
	n := min(len(srcLines), len(trgLines))
	if len(srcLines) != len(trgLines) {
		klog.Warningf("corpus %s has %d lines but %s has %d, using %d pairs",
			source, len(srcLines), target, len(trgLines), n)
	}

	out := make(datasets.Slice, n)
	parallel.ForEach(n, parallel.Workers(workers), func(i int) {
		out[i] = datasets.Pair{
			Source: Truncate(enc.Encode(srcLines[i]), maxLength),
			Target: Truncate(enc.Encode(trgLines[i]), maxLength),
		}
	})
	return out, nil
}

func readLines(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open corpus")
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	return lines, nil
}
