package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Tanh is a hyperbolic tangent activation module.
//
// Applies the element-wise function: f(x) = tanh(x)
type Tanh struct{}

// Forward applies tanh element-wise.
func (Tanh) Forward(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, x)
	return &out
}

// Backward returns dOut ⊙ (1 - y²) given the forward output y.
func (Tanh) Backward(y, dOut *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(i, j int, g float64) float64 {
		t := y.At(i, j)
		return g * (1 - t*t)
	}, dOut)
	return &out
}

// Dropout zeroes activations with probability P during training and scales
// the survivors by 1/(1-P) (inverted dropout).
type Dropout struct {
	P   float64
	rng *rand.Rand
}

// NewDropout creates a dropout module drawing masks from src.
func NewDropout(p float64, src rand.Source) *Dropout {
	return &Dropout{P: p, rng: rand.New(src)} //nolint:gosec // masks are not security-sensitive
}

// Mask draws a rows x cols mask. Returns nil when P is 0.
func (d *Dropout) Mask(rows, cols int) *mat.Dense {
	if d.P <= 0 {
		return nil
	}
	keep := 1 - d.P
	data := make([]float64, rows*cols)
	for i := range data {
		if d.rng.Float64() < keep {
			data[i] = 1 / keep
		}
	}
	return mat.NewDense(rows, cols, data)
}

// Apply multiplies x by mask element-wise. A nil mask returns x unchanged.
func Apply(x, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return x
	}
	var out mat.Dense
	out.MulElem(x, mask)
	return &out
}
