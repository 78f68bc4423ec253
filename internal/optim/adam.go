package optim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/lmharness/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int                          // Timestep for bias correction
	m      map[*nn.Parameter]*mat.Dense // First moment estimates
	v      map[*nn.Parameter]*mat.Dense // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Zero fields of config take their defaults:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*mat.Dense),
		v:      make(map[*nn.Parameter]*mat.Dense),
	}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step() {
	a.t++

	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			// Parameter didn't participate in forward pass, skip
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = zerosLike(param)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = zerosLike(param)
			a.v[param] = v
		}

		a.updateParameter(param.Value(), grad, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam) updateParameter(value, grad, m, v *mat.Dense, biasCorrection1, biasCorrection2 float64) {
	rows, _ := value.Dims()
	for i := range rows {
		p := value.RawRowView(i)
		g := grad.RawRowView(i)
		mRow := m.RawRowView(i)
		vRow := v.RawRowView(i)

		for j := range p {
			mRow[j] = a.beta1*mRow[j] + (1.0-a.beta1)*g[j]
			vRow[j] = a.beta2*vRow[j] + (1.0-a.beta2)*g[j]*g[j]

			mHat := mRow[j] / biasCorrection1
			vHat := vRow[j] / biasCorrection2

			p[j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// Timestep returns the current timestep.
func (a *Adam) Timestep() int {
	return a.t
}

// StateDict returns the moment buffers as "adam.m.<param>" and "adam.v.<param>".
func (a *Adam) StateDict() map[string]*mat.Dense {
	state := make(map[string]*mat.Dense, 2*len(a.m))
	for p, m := range a.m {
		state["adam.m."+p.Name()] = m
	}
	for p, v := range a.v {
		state["adam.v."+p.Name()] = v
	}
	return state
}
