package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Xavier (Glorot) initialization for a fanIn x fanOut weight matrix.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier(fanIn, fanOut int, src rand.Source) *mat.Dense {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}

	data := make([]float64, fanIn*fanOut)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(fanIn, fanOut, data)
}

// Normal returns a rows x cols matrix with values drawn from N(0, std²).
//
// Used for embedding tables.
func Normal(rows, cols int, std float64, src rand.Source) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: std, Src: src}

	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(rows, cols, data)
}

// Zeros returns a rows x cols zero matrix, commonly used for biases.
func Zeros(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}
