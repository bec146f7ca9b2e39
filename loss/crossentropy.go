// Package loss computes the teacher forced token level cross entropy of a decoder
package loss

import (
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/jstzwj/DeepT/tensor"
)

// ErrShape is returned when logits and labels disagree on batch or width
var ErrShape = errors.New("logits and labels shapes differ")

// CrossEntropy is the mean negative log likelihood of labels under logits.
// logits is [N, W, V], labels is [N, W]. Positions labelled ignore (the pad id)
// do not count. count is the number of positions averaged over; when it is
// zero the loss is zero.
func CrossEntropy(logits *tensor.Contiguous[float32], labels *tensor.Contiguous[int64], ignore int64) (loss float64, count int, err error) {
	vocab, err := checkShapes(logits, labels)
	if err != nil {
		return 0, 0, err
	}

	data := logits.Data()
	total := float64(0)
	for p, target := range labels.Data() {
		if target == ignore {
			continue
		}
		if target < 0 || int(target) >= vocab {
			return 0, 0, errors.Errorf("label %d outside vocabulary of %d", target, vocab)
		}
		row := data[p*vocab : (p+1)*vocab]
		total -= float64(row[target]) - logSumExp(row)
		count++
	}
	if count == 0 {
		return 0, 0, nil
	}
	return total / float64(count), count, nil
}

// CrossEntropyGrad is the gradient of CrossEntropy with respect to logits:
// softmax minus the one hot label, divided by the counted positions.
// Ignored positions get a zero gradient.
func CrossEntropyGrad(logits *tensor.Contiguous[float32], labels *tensor.Contiguous[int64], ignore int64) (*tensor.Contiguous[float32], error) {
	vocab, err := checkShapes(logits, labels)
	if err != nil {
		return nil, err
	}

	grad := tensor.NewContiguous[float32](logits.Shape()...)
	count := 0
	for _, target := range labels.Data() {
		if target != ignore {
			count++
		}
	}
	if count == 0 {
		return grad, nil
	}

	data, out := logits.Data(), grad.Data()
	scale := 1 / float64(count)
	for p, target := range labels.Data() {
		if target == ignore {
			continue
		}
		if target < 0 || int(target) >= vocab {
			return nil, errors.Errorf("label %d outside vocabulary of %d", target, vocab)
		}
		row := data[p*vocab : (p+1)*vocab]
		g := out[p*vocab : (p+1)*vocab]
		lse := logSumExp(row)
		for v, x := range row {
			g[v] = float32(math.Exp(float64(x)-lse) * scale)
		}
		g[target] -= float32(scale)
	}
	return grad, nil
}

// Perplexity is exp of the mean negative log likelihood
func Perplexity(loss float64) float64 {
	return math.Exp(loss)
}

func checkShapes(logits *tensor.Contiguous[float32], labels *tensor.Contiguous[int64]) (vocab int, err error) {
	if logits.Rank() != 3 || labels.Rank() != 2 {
		return 0, errors.Wrapf(ErrShape, "logits rank %d, labels rank %d", logits.Rank(), labels.Rank())
	}
	if logits.Dim(0) != labels.Dim(0) || logits.Dim(1) != labels.Dim(1) {
		return 0, errors.Wrapf(ErrShape, "logits %v, labels %v", logits.Shape(), labels.Shape())
	}
	return logits.Dim(2), nil
}

func logSumExp(row []float32) float64 {
	if len(row) == 0 {
		return math.Inf(-1)
	}
	maxLogit := float64(slices.Max(row))
	sumExp := float64(0)
	for _, v := range row {
		sumExp += math.Exp(float64(v) - maxLogit)
	}
	return maxLogit + math.Log(sumExp)
}
