// Package activations provides the elementwise and vector activations used by the
// unmixing network.
package activations

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Activation is an elementwise activation function.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64
}

// ReLU activation function.
// PyTorch reference: torch.nn.ReLU()
type ReLU struct{}

// Activate computes max(0, x). NaN passes through unchanged.
func (r ReLU) Activate(x float64) float64 {
	if x > 0 || math.IsNaN(x) {
		return x
	}
	return 0
}

// Sigmoid activation function.
// PyTorch reference: torch.nn.Sigmoid()
type Sigmoid struct{}

// Activate computes 1 / (1 + exp(-x)).
// The two branches keep exp from overflowing for large |x|.
func (s Sigmoid) Activate(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Linear is the identity activation.
type Linear struct{}

// Activate returns x unchanged.
func (l Linear) Activate(x float64) float64 {
	return x
}

// Softmax normalises a vector into a probability distribution.
// PyTorch reference: torch.nn.Softmax(dim)
type Softmax struct{}

// Activate is undefined for a single element.
func (s Softmax) Activate(x float64) float64 {
	panic("Softmax.Activate: use ActivateBatch for Softmax")
}

// ActivateBatch computes softmax(x) = exp(x) / sum(exp(x)) in place and returns x.
func (s Softmax) ActivateBatch(x []float64) []float64 {
	if len(x) == 0 {
		return x
	}

	// shift by the max so exp cannot overflow
	shift := floats.Max(x)
	for i, v := range x {
		x[i] = math.Exp(v - shift)
	}
	sum := floats.Sum(x)
	for i := range x {
		x[i] /= sum
	}
	return x
}
