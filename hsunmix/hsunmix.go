// Package hsunmix is the public entry point to the unmixing network, its losses
// and its data loader.
package hsunmix

import (
	"math/rand"

	"github.com/FlavioCFOliveira/HSUnmix/internal/baseline"
	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/FlavioCFOliveira/HSUnmix/internal/layer"
	"github.com/FlavioCFOliveira/HSUnmix/internal/loss"
	"github.com/FlavioCFOliveira/HSUnmix/internal/opt"
	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/FlavioCFOliveira/HSUnmix/internal/unmix"
	"gonum.org/v1/gonum/mat"
)

// Re-export common types for easier access
type (
	Model      = unmix.Model
	Output     = unmix.Output
	Evaluation = unmix.Evaluation
	Volume     = tensor.Volume
	Scene      = dataset.Scene
	Dataset    = dataset.Dataset
	Sample     = dataset.Sample
	Variables  = dataset.Variables
	Device     = layer.Device
	Optimizer  = opt.Optimizer
	Loss       = loss.Loss
)

// Errors
var (
	ErrDegenerateMaximum = dataset.ErrDegenerateMaximum
	ErrIndexOutOfRange   = dataset.ErrIndexOutOfRange
	ErrDeviceUnavailable = layer.ErrDeviceUnavailable
)

// Model creation
func NewModel(bands, endmembers int, device Device, seed int64) (*Model, error) {
	return unmix.New(bands, endmembers, device, rand.New(rand.NewSource(seed)))
}

func Evaluate(out Output, sample Sample) (Evaluation, error) {
	return unmix.Evaluate(out, sample)
}

// Data
func DefaultVariables() Variables {
	return dataset.DefaultVariables()
}

func LoadScene(path string, vars Variables) (*Scene, error) {
	return dataset.Load(path, vars)
}

func NewDataset(scene *Scene, device Device) *Dataset {
	return dataset.New(scene, device)
}

// Devices
func SelectDevice(name string) (Device, error) {
	return layer.SelectDevice(name)
}

func DefaultDevice() Device {
	return layer.DefaultDevice()
}

// Optimizers
func Adam(lr float64, model *Model) Optimizer {
	return opt.NewAdam(lr, model.Parameters()...)
}

// Losses
var RMSE = loss.RMSE{}

func SpectralAngle(pred, gt mat.Matrix) []float64 {
	return loss.SpectralAngle(pred, gt)
}

// Baseline
func KMeansEndmembers(cube *Volume, k int) (*mat.Dense, error) {
	res, err := baseline.KMeans(cube, k, baseline.Options{})
	if err != nil {
		return nil, err
	}
	return res.Endmembers, nil
}
