package trainer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/loader"
	"github.com/jstzwj/DeepT/loss"
	"github.com/jstzwj/DeepT/tensor"
)

// ErrNotTrainable is returned by a training step on a forward-only model
var ErrNotTrainable = errors.New("model does not support training")

// Forwarder runs the encoder-decoder forward pass
type Forwarder interface {
	// Forward returns logits [N, W, V] for the decoder input of width W
	Forward(ctx context.Context, src, trgIn collate.Tokens) (*tensor.Contiguous[float32], error)
}

// Learner is a Forwarder that can also be optimized
type Learner interface {
	Forwarder

	// Backward propagates the gradient of the loss with respect to the logits
	// of the last Forward call
	Backward(ctx context.Context, grad *tensor.Contiguous[float32]) error

	// Step applies the accumulated gradients
	Step(ctx context.Context, lr float64) error

	// ZeroGrad clears the accumulated gradients
	ZeroGrad()
}

// Module is what the Trainer drives: one loss per batch
type Module interface {
	TrainingStep(ctx context.Context, b loader.Batch) (float64, error)
	ValidationStep(ctx context.Context, b loader.Batch) (float64, error)
}

// Seq2Seq trains a translation model with teacher forcing: the decoder reads
// the target without its last token and predicts the target without its first.
type Seq2Seq struct {
	Model Forwarder

	// PadID labels are ignored by the loss
	PadID int64

	LearningRate float64
}

// TrainingStep computes the loss of a batch and updates the model
func (s *Seq2Seq) TrainingStep(ctx context.Context, b loader.Batch) (float64, error) {
	learner, ok := s.Model.(Learner)
	if !ok {
		return 0, ErrNotTrainable
	}
	learner.ZeroGrad()

	value, logits, labels, err := s.forward(ctx, b)
	if err != nil {
		return 0, err
	}
	grad, err := loss.CrossEntropyGrad(logits, labels, s.PadID)
	if err != nil {
		return 0, err
	}
	if err := learner.Backward(ctx, grad); err != nil {
		return 0, errors.Wrap(err, "backward")
	}
	if err := learner.Step(ctx, s.LearningRate); err != nil {
		return 0, errors.Wrap(err, "optimizer step")
	}
	return value, nil
}

// ValidationStep computes the loss of a batch without updating the model
func (s *Seq2Seq) ValidationStep(ctx context.Context, b loader.Batch) (float64, error) {
	value, _, _, err := s.forward(ctx, b)
	return value, err
}

func (s *Seq2Seq) forward(ctx context.Context, b loader.Batch) (float64, *tensor.Contiguous[float32], *tensor.Contiguous[int64], error) {
	in, labels := collate.Shift(b.Target)
	logits, err := s.Model.Forward(ctx, b.Source, in)
	if err != nil {
		return 0, nil, nil, errors.Wrapf(err, "forward batch %d", b.Index)
	}
	value, _, err := loss.CrossEntropy(logits, labels, s.PadID)
	if err != nil {
		return 0, nil, nil, errors.Wrapf(err, "loss batch %d", b.Index)
	}
	return value, logits, labels, nil
}
