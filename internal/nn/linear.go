package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x·W + b
// where:
//   - x is the input with shape [batch_size, in_features]
//   - W is the weight matrix with shape [in_features, out_features]
//   - b is the bias row with shape [1, out_features]
//   - y is the output with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// The layer keeps no activations: Backward takes the input that was passed
// to Forward, so several forward passes can be in flight at once.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [in_features, out_features]
	bias        *Parameter // [1, out_features]
}

// NewLinear creates a new Linear layer whose parameters are named
// "<name>.weight" and "<name>.bias".
func NewLinear(name string, inFeatures, outFeatures int, src rand.Source) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", Xavier(inFeatures, outFeatures, src)),
		bias:        NewParameter(name+".bias", Zeros(1, outFeatures)),
	}
}

// Forward computes x·W + b.
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, cols))
	}

	out := mat.NewDense(rows, l.outFeatures, nil)
	out.Mul(x, l.weight.Value())
	bias := l.bias.Value().RawRowView(0)
	for i := range rows {
		floats.Add(out.RawRowView(i), bias)
	}
	return out
}

// Backward accumulates dL/dW and dL/db given the forward input x and the
// output gradient dOut, and returns dL/dx.
func (l *Linear) Backward(x, dOut *mat.Dense) *mat.Dense {
	var dW mat.Dense
	dW.Mul(x.T(), dOut)
	l.weight.AccumulateGrad(&dW)
	l.bias.AccumulateGrad(columnSums(dOut))

	rows, _ := dOut.Dims()
	dX := mat.NewDense(rows, l.inFeatures, nil)
	dX.Mul(dOut, l.weight.Value().T())
	return dX
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// columnSums returns the 1xC row of column sums of a.
func columnSums(a *mat.Dense) *mat.Dense {
	rows, cols := a.Dims()
	out := mat.NewDense(1, cols, nil)
	sum := out.RawRowView(0)
	for i := range rows {
		floats.Add(sum, a.RawRowView(i))
	}
	return out
}
