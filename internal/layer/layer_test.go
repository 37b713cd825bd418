// Package layer provides unit tests for neural network layers.
package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/HSUnmix/internal/activations"
)

func TestDenseForward(t *testing.T) {
	// Create a simple layer: 2 inputs -> 2 outputs with identity weights
	d := NewDense(2, 2, activations.Sigmoid{}, nil)

	d.SetWeight(0, 0, 1.0)
	d.SetWeight(0, 1, 0.0)
	d.SetWeight(1, 0, 0.0)
	d.SetWeight(1, 1, 1.0)
	d.SetBias(0, 0.0)
	d.SetBias(1, 0.5)

	output := d.Forward([]float64{1.0, 2.0})

	expected0 := 1 / (1 + math.Exp(-1.0))
	expected1 := 1 / (1 + math.Exp(-2.5))

	if math.Abs(output[0]-expected0) > 1e-12 {
		t.Errorf("output[0] = %v, want %v", output[0], expected0)
	}
	if math.Abs(output[1]-expected1) > 1e-12 {
		t.Errorf("output[1] = %v, want %v", output[1], expected1)
	}
}

func TestDenseForwardMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := NewDense(5, 3, activations.Linear{}, rng)

	x := []float64{0.1, -0.4, 2.0, 0.0, 1.5}
	out := d.Forward(x)

	for o := 0; o < 3; o++ {
		want := d.Bias(o)
		for i := range x {
			want += d.Weight(o, i) * x[i]
		}
		if math.Abs(out[o]-want) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", o, out[o], want)
		}
	}
}

func TestDenseInitBounds(t *testing.T) {
	d := NewDense(16, 4, activations.Linear{}, rand.New(rand.NewSource(1)))
	bound := 1 / math.Sqrt(16)
	for i, p := range d.Params() {
		if math.Abs(p) > bound {
			t.Fatalf("param[%d] = %v exceeds bound %v", i, p, bound)
		}
	}
}

func TestDenseParamsAreLive(t *testing.T) {
	d := NewDense(2, 1, activations.Linear{}, nil)

	params := d.Params()
	if len(params) != 3 {
		t.Fatalf("len(Params) = %d, want 3", len(params))
	}
	params[0], params[1], params[2] = 2, 3, 1

	out := d.Forward([]float64{1, 1})
	if out[0] != 6 {
		t.Errorf("Forward after Params mutation = %v, want 6", out[0])
	}

	if len(d.Gradients()) != len(params) {
		t.Errorf("len(Gradients) = %d, want %d", len(d.Gradients()), len(params))
	}
}

func TestDenseSetParams(t *testing.T) {
	d := NewDense(2, 2, activations.Linear{}, nil)
	newParams := []float64{1, 2, 3, 4, 0.5, -0.5}
	d.SetParams(newParams)

	for i, p := range d.Params() {
		if p != newParams[i] {
			t.Errorf("param[%d] = %v, want %v", i, p, newParams[i])
		}
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for wrong parameter count")
		}
	}()
	d.SetParams([]float64{1})
}

func TestDenseInputMismatchPanics(t *testing.T) {
	d := NewDense(3, 2, activations.Linear{}, nil)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for input length mismatch")
		}
	}()
	d.Forward([]float64{1, 2})
}
