package activations

import (
	"math/rand"
	"testing"
)

func fillRandom(slice []float64) {
	for i := range slice {
		slice[i] = rand.Float64()*4 - 2
	}
}

func BenchmarkReLUActivate(b *testing.B) {
	relu := ReLU{}
	data := make([]float64, 1024)
	fillRandom(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range data {
			_ = relu.Activate(data[j])
		}
	}
}

func BenchmarkSigmoidActivate(b *testing.B) {
	sigmoid := Sigmoid{}
	data := make([]float64, 1024)
	fillRandom(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range data {
			_ = sigmoid.Activate(data[j])
		}
	}
}

func BenchmarkSoftmaxActivateBatch(b *testing.B) {
	softmax := Softmax{}
	src := make([]float64, 8)
	fillRandom(src)
	data := make([]float64, len(src))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(data, src)
		softmax.ActivateBatch(data)
	}
}
