package trainer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/loader"
)

// ErrDiverged stops training when a step loss is no longer finite
var ErrDiverged = errors.New("training loss diverged")

// DefaultMaxEpochs applies when MaxEpochs is not positive
const DefaultMaxEpochs = 1000

// Trainer runs the fit loop
type Trainer struct {
	MaxEpochs int

	// LogEvery logs the training loss every LogEvery steps
	LogEvery int

	// SanityValSteps validation batches run before training starts
	SanityValSteps int

	// Significance (0-100) validates a statistically sufficient sample of
	// the validation batches instead of all of them
	Significance byte

	// OnEpochEnd is called after every validation pass
	OnEpochEnd func(Epoch)
}

// Epoch is the record of one completed epoch
type Epoch struct {
	Epoch     int
	Steps     int
	TrainLoss float64
	Val       Validation
	Elapsed   time.Duration
}

// Fit trains m on train and validates it on val after every epoch. val may be
// nil to skip validation.
func (t *Trainer) Fit(ctx context.Context, m Module, train, val *loader.Loader) error {
	if val != nil && t.SanityValSteps > 0 {
		v, err := evaluate(ctx, m, val, t.SanityValSteps)
		if err != nil {
			return errors.Wrap(err, "sanity check")
		}
		klog.V(1).InfoS("sanity check", "batches", v.Batches, "val_loss", v.Loss)
	}

	maxEpochs := t.MaxEpochs
	if maxEpochs <= 0 {
		maxEpochs = DefaultMaxEpochs
	}

	step := 0
	for epoch := 0; epoch < maxEpochs; epoch++ {
		start := time.Now()
		steps, trainLoss, err := t.trainEpoch(ctx, m, train, epoch, &step)
		if err != nil {
			return err
		}

		rec := Epoch{Epoch: epoch, Steps: steps, TrainLoss: trainLoss}
		if val != nil {
			rec.Val, err = t.Validate(ctx, m, val)
			if err != nil {
				return err
			}
			klog.InfoS("validation", "epoch", epoch, "val_loss", rec.Val.Loss, "batches", rec.Val.Batches,
				"fingerprint", shortHash(rec.Val.Stats.Fingerprint))
		}
		rec.Elapsed = time.Since(start)
		klog.InfoS("epoch end", "epoch", epoch, "steps", steps, "train_loss", trainLoss, "elapsed", rec.Elapsed)

		if t.OnEpochEnd != nil {
			t.OnEpochEnd(rec)
		}
	}
	return nil
}

// trainEpoch runs one epoch of training steps and returns the mean loss
func (t *Trainer) trainEpoch(ctx context.Context, m Module, train *loader.Loader, epoch int, step *int) (int, float64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var total float64
	steps := 0
	for r := range train.Epoch(ctx) {
		if r.Err != nil {
			return steps, 0, errors.Wrapf(r.Err, "epoch %d", epoch)
		}
		value, err := m.TrainingStep(ctx, r.Batch)
		if err != nil {
			return steps, 0, errors.Wrapf(err, "epoch %d step %d", epoch, *step)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return steps, 0, errors.Wrapf(ErrDiverged, "epoch %d step %d", epoch, *step)
		}
		total += value
		steps++
		*step++
		if t.LogEvery > 0 && *step%t.LogEvery == 0 {
			klog.InfoS("train", "epoch", epoch, "step", *step, "train_loss", value)
		}
	}
	if err := ctx.Err(); err != nil {
		return steps, 0, err
	}
	if steps == 0 {
		return 0, 0, nil
	}
	return steps, total / float64(steps), nil
}

// Validate runs one validation pass. With Significance set only a sample of
// the batches is evaluated.
func (t *Trainer) Validate(ctx context.Context, m Module, val *loader.Loader) (Validation, error) {
	limit := 0
	if t.Significance > 0 && t.Significance < 100 {
		limit = sampleSize(val.Len(), t.Significance)
	}
	return evaluate(ctx, m, val, limit)
}

func shortHash(h [32]byte) string {
	return fmt.Sprintf("%x", h[:4])
}
