// Package loss provides benchmarks for loss functions.
package loss

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// fillRandom fills a slice with random values.
func fillRandom(slice []float64) {
	for i := range slice {
		slice[i] = rand.Float64()
	}
}

// BenchmarkRMSEForward benchmarks the abundance loss on a 5x128x128 map.
func BenchmarkRMSEForward(b *testing.B) {
	rmse := RMSE{}
	yPred := make([]float64, 5*128*128)
	yTrue := make([]float64, 5*128*128)
	fillRandom(yPred)
	fillRandom(yTrue)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rmse.Forward(yPred, yTrue)
	}
}

// BenchmarkSpectralAngle benchmarks SAD over 5 endmembers of 431 bands.
func BenchmarkSpectralAngle(b *testing.B) {
	pred := make([]float64, 5*431)
	gt := make([]float64, 5*431)
	fillRandom(pred)
	fillRandom(gt)
	p := mat.NewDense(5, 431, pred)
	g := mat.NewDense(5, 431, gt)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SpectralAngle(p, g)
	}
}
