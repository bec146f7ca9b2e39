package trainer

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/jstzwj/DeepT/loader"
)

// Validation is the outcome of a validation pass
type Validation struct {
	// Loss is the mean of the per batch losses
	Loss float64

	Batches int

	// Stats describes the batches that were evaluated
	Stats loader.Stats
}

// sampleSize calculates the statistically sufficient sample size
// for a given dataset size N and significance level (0–100).
func sampleSize(N int, significance byte) int {

	// Convert significance level to Z-score
	z := zScoreFromAlpha(100 - significance)

	// Assume worst-case proportion p = 0.5 for max variability
	p := 0.5
	e := float64(100-significance) * 0.01

	numerator := math.Pow(z, 2) * p * (1 - p)
	denominator := math.Pow(e, 2)

	// Initial sample size without population correction
	ss := numerator / denominator

	// Apply finite population correction
	correctedSS := ss * float64(N) / (float64(N) - 1 + ss)

	if int(correctedSS) > N {
		return N
	}

	return max(int(correctedSS), 1)
}

// zScoreFromAlpha returns the Z-score for a given alpha level
// Common: 90% => 1.645, 95% => 1.96, 99% => 2.576
func zScoreFromAlpha(alpha byte) float64 {
	switch {
	case alpha <= 1:
		return 2.576 // 99% confidence
	case alpha <= 5:
		return 1.96 // 95% confidence
	case alpha <= 10:
		return 1.645 // 90% confidence
	default:
		return 1.96 // default fallback
	}
}

// evaluate runs ValidationStep over at most limit batches of one epoch of val
// (all of them when limit is not positive)
func evaluate(ctx context.Context, m Module, val *loader.Loader, limit int) (Validation, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary := loader.NewSummary()
	var total float64
	var n int
	for r := range val.Epoch(ctx) {
		if r.Err != nil {
			return Validation{}, errors.Wrap(r.Err, "validation data")
		}
		value, err := m.ValidationStep(ctx, r.Batch)
		if err != nil {
			return Validation{}, errors.Wrap(err, "validation step")
		}
		summary.Add(r.Batch)
		total += value
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	if err := ctx.Err(); err != nil && (limit <= 0 || n < limit) {
		return Validation{}, err
	}

	v := Validation{Batches: n, Stats: summary.Stats()}
	if n > 0 {
		v.Loss = total / float64(n)
	}
	return v, nil
}
