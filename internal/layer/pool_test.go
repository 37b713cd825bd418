package layer

import (
	"math"
	"testing"
)

func TestGlobalAvgPool2DForward(t *testing.T) {
	pool := NewGlobalAvgPool2D(2)

	// Two 2x2 planes
	input := []float64{
		1, 2, 3, 4,
		10, 10, 10, 30,
	}
	output := pool.Forward(input)

	expected := []float64{2.5, 15}
	for i := range expected {
		if math.Abs(output[i]-expected[i]) > 1e-12 {
			t.Errorf("output[%d] = %v, want %v", i, output[i], expected[i])
		}
	}
}

func TestGlobalAvgPool2DNoParams(t *testing.T) {
	pool := NewGlobalAvgPool2D(4)
	if pool.Params() != nil || pool.Gradients() != nil {
		t.Error("GlobalAvgPool2D should have no parameters")
	}
	if pool.InSize() != 4 || pool.OutSize() != 4 {
		t.Errorf("InSize/OutSize = %d/%d, want 4/4", pool.InSize(), pool.OutSize())
	}
}

func TestGlobalAvgPool2DBadInputPanics(t *testing.T) {
	pool := NewGlobalAvgPool2D(3)
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for input not divisible by channels")
		}
	}()
	pool.Forward(make([]float64, 4))
}
