package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Parameter represents a trainable parameter in a neural network.
//
// Gradients accumulate: each backward pass adds into Grad until ZeroGrad
// clears it. This is what lets a trainer sum gradients over several
// forward/backward passes before one optimizer step.
//
// Example:
//
//	weight := nn.NewParameter("out.weight", nn.Xavier(128, 256, src))
//	weight.AccumulateGrad(dW)
//	grad := weight.Grad()
type Parameter struct {
	name  string     // Parameter name (e.g., "out.weight")
	value *mat.Dense // The parameter values
	grad  *mat.Dense // Accumulated gradient, nil until the first backward pass
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, value *mat.Dense) *Parameter {
	return &Parameter{
		name:  name,
		value: value,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter matrix. Optimizers update it in place.
func (p *Parameter) Value() *mat.Dense {
	return p.value
}

// Grad returns the accumulated gradient.
//
// Returns nil if no gradient has been accumulated since the last ZeroGrad.
func (p *Parameter) Grad() *mat.Dense {
	return p.grad
}

// AccumulateGrad adds g to the gradient.
//
// g must have the same dimensions as the parameter value.
func (p *Parameter) AccumulateGrad(g mat.Matrix) {
	if p.grad == nil {
		r, c := p.value.Dims()
		p.grad = mat.NewDense(r, c, nil)
	}
	p.grad.Add(p.grad, g)
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// NumElements returns rows*cols of the parameter.
func (p *Parameter) NumElements() int {
	r, c := p.value.Dims()
	return r * c
}
