package optim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/nn"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	t          int
	velocities map[*nn.Parameter]*mat.Dense
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*mat.Dense),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	s.t++
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		if s.momentum == 0 {
			param.Value().Sub(param.Value(), scaled(s.lr, grad))
			continue
		}

		vel, ok := s.velocities[param]
		if !ok {
			vel = zerosLike(param)
			s.velocities[param] = vel
		}
		vel.Scale(s.momentum, vel)
		vel.Add(vel, grad)
		param.Value().Sub(param.Value(), scaled(s.lr, vel))
	}
}

func scaled(f float64, a mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, a)
	return &out
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// Timestep returns the number of steps taken.
func (s *SGD) Timestep() int {
	return s.t
}

// StateDict returns the momentum buffers as "sgd.velocity.<param>".
func (s *SGD) StateDict() map[string]*mat.Dense {
	state := make(map[string]*mat.Dense, len(s.velocities))
	for p, v := range s.velocities {
		state["sgd.velocity."+p.Name()] = v
	}
	return state
}
