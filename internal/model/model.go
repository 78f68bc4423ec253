// Package model defines the contract between the training harness and a
// language model.
//
// The harness never looks inside a model: it switches modes, asks for a
// loss on a batch, backpropagates it, hands the parameters to an optimizer,
// and asks for generated continuations. Any numerical library can sit
// behind this interface.
package model

import (
	"errors"
	"fmt"

	"github.com/born-ml/lmharness/internal/dataset"
	"github.com/born-ml/lmharness/internal/nn"
)

// Errors returned by models.
var (
	// ErrNoGrad is returned by Loss.Backward for losses computed in eval mode.
	ErrNoGrad = errors.New("loss was computed without gradient tracking")

	// ErrShape reports a batch or prefix the model cannot consume.
	ErrShape = errors.New("malformed input shape")
)

// Mode selects training or evaluation behavior (dropout, gradient tracking).
type Mode int

// Model modes.
const (
	Train Mode = iota
	Eval
)

// String returns "train" or "eval".
func (m Mode) String() string {
	switch m {
	case Train:
		return "train"
	case Eval:
		return "eval"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Model is a next-token language model over byte tokens.
type Model interface {
	nn.Module

	// SetMode switches between training and evaluation behavior.
	SetMode(mode Mode)

	// Forward computes the mean next-token loss of a batch. In Train mode the
	// returned loss can be backpropagated into the parameters' gradients.
	Forward(batch dataset.Batch) (*Loss, error)

	// Generate produces length tokens continuing prefix.
	Generate(prefix []byte, length int) ([]byte, error)
}

// Loss is a scalar loss value with an optional backward pass.
type Loss struct {
	Value float64

	backward func() error
	done     bool
}

// NewLoss creates a loss. backward may be nil for losses without gradient
// tracking.
func NewLoss(value float64, backward func() error) *Loss {
	return &Loss{Value: value, backward: backward}
}

// Backward accumulates the gradient of this loss into the model parameters.
//
// Each loss can be backpropagated once; calling Backward again is a no-op.
// Returns ErrNoGrad if the loss was computed without gradient tracking.
func (l *Loss) Backward() error {
	if l.backward == nil {
		return ErrNoGrad
	}
	if l.done {
		return nil
	}
	l.done = true
	return l.backward()
}

// RequiresGrad reports whether Backward can propagate gradients.
func (l *Loss) RequiresGrad() bool {
	return l.backward != nil
}
