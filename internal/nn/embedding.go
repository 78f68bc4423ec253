package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim] learnable parameter
//   - Forward: index rows [N][K] -> concatenated embeddings [N, K*EmbedDim]
//   - Backward: gradients scatter-add to weight rows
type Embedding struct {
	Weight   *Parameter // Embedding weight matrix [NumEmbed, EmbedDim]
	NumEmbed int        // Number of embeddings (vocabulary size)
	EmbedDim int        // Embedding dimension (vector size)
}

// NewEmbedding creates an Embedding layer with weights drawn from N(0, std²).
func NewEmbedding(name string, numEmbeddings, embeddingDim int, std float64, src rand.Source) *Embedding {
	return &Embedding{
		Weight:   NewParameter(name+".weight", Normal(numEmbeddings, embeddingDim, std, src)),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
	}
}

// Forward looks up every index of every row and concatenates the vectors
// of a row. All rows must have the same length.
func (e *Embedding) Forward(indices [][]byte) *mat.Dense {
	if len(indices) == 0 {
		panic("Embedding.Forward: no rows")
	}
	k := len(indices[0])
	out := mat.NewDense(len(indices), k*e.EmbedDim, nil)
	for i, row := range indices {
		if len(row) != k {
			panic(fmt.Sprintf("Embedding.Forward: row %d has %d indices, want %d", i, len(row), k))
		}
		dst := out.RawRowView(i)
		for j, idx := range row {
			copy(dst[j*e.EmbedDim:(j+1)*e.EmbedDim], e.Weight.Value().RawRowView(int(idx)))
		}
	}
	return out
}

// Backward scatter-adds dOut, shaped like the Forward output, onto the
// rows of the weight that were read.
func (e *Embedding) Backward(indices [][]byte, dOut *mat.Dense) {
	dW := mat.NewDense(e.NumEmbed, e.EmbedDim, nil)
	for i, row := range indices {
		src := dOut.RawRowView(i)
		for j, idx := range row {
			floats.Add(dW.RawRowView(int(idx)), src[j*e.EmbedDim:(j+1)*e.EmbedDim])
		}
	}
	e.Weight.AccumulateGrad(dW)
}

// Parameters returns [Weight].
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}
