// Package nn provides the building blocks shared by models and optimizers:
// trainable parameters, weight initialization, layers with explicit
// backward passes (Linear, Embedding, Tanh, Dropout), the softmax
// cross-entropy loss, and global gradient-norm clipping.
//
// Values and gradients are gonum dense matrices in float64.
package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Module is anything that owns trainable parameters.
type Module interface {
	// Parameters returns all trainable parameters in a stable order.
	Parameters() []*Parameter
}

// StateDict maps parameter names to their current values.
//
// The matrices are shared with the parameters, not copied.
func StateDict(m Module) map[string]*mat.Dense {
	params := m.Parameters()
	state := make(map[string]*mat.Dense, len(params))
	for _, p := range params {
		state[p.Name()] = p.Value()
	}
	return state
}

// CountParameters returns the total number of scalar parameters in m.
func CountParameters(m Module) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	return total
}
