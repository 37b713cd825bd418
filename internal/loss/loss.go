// Package loss provides the unmixing loss functions.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SADEpsilon is added to the norm product in the spectral angle so that
// near-zero vectors do not divide by zero.
const SADEpsilon = 1e-6

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64

	// Backward computes the gradient of the loss w.r.t. prediction.
	Backward(yPred, yTrue []float64) []float64
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("MSE: prediction and target must have same length")
	}
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		sum += diff * diff
	}
	return sum / float64(n)
}

// Backward computes gradient: dL/dy_pred = (2/n) * (y_pred - y_true)
func (m MSE) Backward(yPred, yTrue []float64) []float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("MSE: prediction and target must have same length")
	}

	grad := make([]float64, n)
	factor := 2.0 / float64(n)
	for i := 0; i < n; i++ {
		grad[i] = factor * (yPred[i] - yTrue[i])
	}
	return grad
}

// RMSE (Root Mean Squared Error) loss, used for abundance accuracy.
// PyTorch reference: torch.sqrt(torch.nn.functional.mse_loss(pred, target))
type RMSE struct{}

// Forward computes sqrt((1/n) * sum((y_pred - y_true)^2)).
func (r RMSE) Forward(yPred, yTrue []float64) float64 {
	if len(yPred) != len(yTrue) {
		panic("RMSE: prediction and target must have same length")
	}
	return math.Sqrt(MSE{}.Forward(yPred, yTrue))
}

// Backward computes dL/dy_pred = (y_pred - y_true) / (n * rmse).
// The gradient is zero when the prediction matches exactly.
func (r RMSE) Backward(yPred, yTrue []float64) []float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("RMSE: prediction and target must have same length")
	}

	grad := make([]float64, n)
	rmse := r.Forward(yPred, yTrue)
	if rmse == 0 {
		return grad
	}
	factor := 1 / (float64(n) * rmse)
	for i := 0; i < n; i++ {
		grad[i] = factor * (yPred[i] - yTrue[i])
	}
	return grad
}

// SpectralAngleVec returns the angle in radians between two spectra:
// acos(dot(p, g) / (|p||g| + eps)). The ratio is clamped to [-1, 1] so rounding
// on collinear vectors cannot push acos out of its domain.
func SpectralAngleVec(pred, gt []float64) float64 {
	if len(pred) != len(gt) {
		panic("SpectralAngle: prediction and target must have same length")
	}
	dot, norms := floats.Dot(pred, gt), floats.Norm(pred, 2)*floats.Norm(gt, 2)
	if math.IsInf(dot, 0) || math.IsInf(norms, 0) {
		// Products overflowed; the angle is scale invariant, so retry on unit max-norm copies.
		p, g := unitMax(pred), unitMax(gt)
		dot, norms = floats.Dot(p, g), floats.Norm(p, 2)*floats.Norm(g, 2)
	}
	ratio := dot / (norms + SADEpsilon)
	ratio = math.Max(-1, math.Min(1, ratio))
	return math.Acos(ratio)
}

func unitMax(v []float64) []float64 {
	out := make([]float64, len(v))
	if m := floats.Norm(v, math.Inf(1)); m > 0 {
		floats.ScaleTo(out, 1/m, v)
	}
	return out
}

// SpectralAngle computes the spectral angle distance between corresponding rows
// of pred and gt, one angle per row (endmember). The result is not reduced.
func SpectralAngle(pred, gt mat.Matrix) []float64 {
	pr, pc := pred.Dims()
	gr, gc := gt.Dims()
	if pr != gr || pc != gc {
		panic(fmt.Sprintf("SpectralAngle: shape mismatch %dx%d vs %dx%d", pr, pc, gr, gc))
	}

	angles := make([]float64, pr)
	pRow := make([]float64, pc)
	gRow := make([]float64, gc)
	for i := 0; i < pr; i++ {
		mat.Row(pRow, i, pred)
		mat.Row(gRow, i, gt)
		angles[i] = SpectralAngleVec(pRow, gRow)
	}
	return angles
}

// MeanAngle reduces per-endmember angles to their mean. It returns 0 for no angles.
func MeanAngle(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	return floats.Sum(angles) / float64(len(angles))
}
