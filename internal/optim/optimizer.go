// Package optim implements optimization algorithms for training models.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers read the gradients accumulated on each nn.Parameter, so a
// trainer can run several backward passes before a single Step.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-4})
//
//	for step := range numSteps {
//	    loss, _ := model.Forward(batch)
//	    _ = loss.Backward()
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters in place.
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Stateful is implemented by optimizers whose internal buffers can be
// saved alongside a model checkpoint.
type Stateful interface {
	// StateDict returns the optimizer buffers keyed by name.
	StateDict() map[string]*mat.Dense

	// Timestep returns the number of steps taken so far.
	Timestep() int
}

// New creates an optimizer by name ("adam" or "sgd").
func New(name string, params []*nn.Parameter, lr, momentum float64) (Optimizer, error) {
	switch name {
	case "adam", "":
		return NewAdam(params, AdamConfig{LR: lr}), nil
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr, Momentum: momentum}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

func zerosLike(p *nn.Parameter) *mat.Dense {
	r, c := p.Value().Dims()
	return mat.NewDense(r, c, nil)
}
