package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ClipGradNorm rescales all gradients so that their global L2 norm is at
// most maxNorm.
//
// The norm is taken over the concatenation of every parameter's gradient.
// Parameters without a gradient are ignored. Returns the norm measured
// before clipping. maxNorm <= 0 disables clipping.
func ClipGradNorm(params []*Parameter, maxNorm float64) float64 {
	sum := 0.0
	for _, p := range params {
		g := p.Grad()
		if g == nil {
			continue
		}
		r, _ := g.Dims()
		for i := range r {
			row := g.RawRowView(i)
			sum += floats.Dot(row, row)
		}
	}
	norm := math.Sqrt(sum)

	if maxNorm <= 0 || norm <= maxNorm || norm == 0 {
		return norm
	}

	scale := maxNorm / (norm + 1e-6)
	for _, p := range params {
		if g := p.Grad(); g != nil {
			g.Scale(scale, g)
		}
	}
	return norm
}
