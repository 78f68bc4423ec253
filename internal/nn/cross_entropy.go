package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropy computes the mean softmax cross-entropy of logits against
// class targets, and its gradient with respect to the logits.
//
// Mathematical Formulation:
//
//	Loss = mean_i( logsumexp(logits_i) - logits_i[target_i] )
//	∂L/∂logits_i = (Softmax(logits_i) - one_hot(target_i)) / N
//
// logits has one row per prediction; len(targets) must equal the row count
// and every target must index a column.
func CrossEntropy(logits *mat.Dense, targets []byte) (float64, *mat.Dense, error) {
	rows, cols := logits.Dims()
	if rows != len(targets) {
		return 0, nil, fmt.Errorf("cross entropy: %d logit rows for %d targets", rows, len(targets))
	}

	grad := mat.NewDense(rows, cols, nil)
	n := float64(rows)
	total := 0.0

	for i := range rows {
		target := int(targets[i])
		if target >= cols {
			return 0, nil, fmt.Errorf("cross entropy: target %d out of range [0, %d)", target, cols)
		}

		row := logits.RawRowView(i)
		g := grad.RawRowView(i)

		// log-sum-exp with the max subtracted for stability
		maxVal := floats.Max(row)
		sum := 0.0
		for j, v := range row {
			e := math.Exp(v - maxVal)
			g[j] = e
			sum += e
		}
		logSumExp := maxVal + math.Log(sum)
		total += logSumExp - row[target]

		floats.Scale(1/(sum*n), g)
		g[target] -= 1 / n
	}

	return total / n, grad, nil
}
