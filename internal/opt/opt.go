// Package opt provides optimization algorithms.
package opt

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Parameter is anything that exposes a live parameter slice and the gradient
// buffer paired with it. Layers satisfy it.
type Parameter interface {
	Params() []float64
	Gradients() []float64
}

// Optimizer updates a fixed set of parameters from their gradients.
type Optimizer interface {
	// Step applies one update to every registered parameter in place.
	Step()

	// ZeroGrad clears every registered gradient buffer.
	ZeroGrad()

	LearningRate() float64
	SetLearningRate(lr float64)
}

// New builds an optimizer by name ("adam" or "sgd").
func New(name string, learningRate float64, params ...Parameter) (Optimizer, error) {
	if learningRate <= 0 || math.IsNaN(learningRate) || math.IsInf(learningRate, 0) {
		return nil, errors.Errorf("invalid learning rate %v", learningRate)
	}
	switch strings.ToLower(name) {
	case "", "adam":
		return NewAdam(learningRate, params...), nil
	case "sgd":
		return NewSGD(learningRate, params...), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", name)
	}
}

// register drops parameterless entries such as pooling layers.
func register(params []Parameter) []Parameter {
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if p != nil && len(p.Params()) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func zeroGrad(params []Parameter) {
	for _, p := range params {
		g := p.Gradients()
		for i := range g {
			g[i] = 0
		}
	}
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	lr     float64
	params []Parameter
}

// NewSGD creates an SGD optimizer over params.
func NewSGD(learningRate float64, params ...Parameter) *SGD {
	return &SGD{lr: learningRate, params: register(params)}
}

// Step updates every registered parameter: params = params - lr * gradients
func (s *SGD) Step() {
	for _, p := range s.params {
		s.StepInPlace(p.Params(), p.Gradients())
	}
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s *SGD) StepInPlace(params, gradients []float64) {
	floats.AddScaled(params, -s.lr, gradients)
}

// ZeroGrad clears the registered gradients.
func (s *SGD) ZeroGrad() { zeroGrad(s.params) }

// LearningRate returns the current learning rate.
func (s *SGD) LearningRate() float64 { return s.lr }

// SetLearningRate changes the learning rate.
func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }

// NumParams returns the number of scalar parameters being optimised.
func (s *SGD) NumParams() int { return countParams(s.params) }

// Adam optimizer with bias-corrected first and second moment estimates.
// PyTorch reference: torch.optim.Adam(params, lr, betas=(0.9, 0.999), eps=1e-8)
type Adam struct {
	lr      float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	params []Parameter
	m      [][]float64
	v      [][]float64
	t      int
}

// NewAdam creates a new Adam optimizer with PyTorch default hyper-parameters.
func NewAdam(learningRate float64, params ...Parameter) *Adam {
	a := &Adam{
		lr:      learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		params:  register(params),
	}
	a.m = make([][]float64, len(a.params))
	a.v = make([][]float64, len(a.params))
	for i, p := range a.params {
		a.m[i] = make([]float64, len(p.Params()))
		a.v[i] = make([]float64, len(p.Params()))
	}
	return a
}

// Step applies one Adam update to every registered parameter.
func (a *Adam) Step() {
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for k, p := range a.params {
		params := p.Params()
		grads := p.Gradients()
		m := a.m[k]
		v := a.v[k]
		for i, g := range grads {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			params[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

// ZeroGrad clears the registered gradients.
func (a *Adam) ZeroGrad() { zeroGrad(a.params) }

// LearningRate returns the current learning rate.
func (a *Adam) LearningRate() float64 { return a.lr }

// SetLearningRate changes the learning rate.
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

// NumParams returns the number of scalar parameters being optimised.
func (a *Adam) NumParams() int { return countParams(a.params) }

func countParams(params []Parameter) int {
	n := 0
	for _, p := range params {
		n += len(p.Params())
	}
	return n
}
