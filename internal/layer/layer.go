// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/HSUnmix/internal/activations"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Layer is a neural network layer operating on flat, channel-first buffers.
type Layer interface {
	Forward(x []float64) []float64

	// Params returns the layer's backing parameter slice (weights then biases).
	// Mutating it mutates the layer.
	Params() []float64
	SetParams([]float64)

	// Gradients returns the gradient buffer paired with Params.
	Gradients() []float64

	InSize() int
	OutSize() int
}

// newRNG returns rng, or a fixed-seed source when rng is nil so that layers built
// without an explicit source are still reproducible.
func newRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(42))
}

// initUniform fills dst from U(-bound, bound).
// PyTorch reference: kaiming_uniform_(a=sqrt(5)) which reduces to bound = 1/sqrt(fan_in)
func initUniform(dst []float64, bound float64, rng *rand.Rand) {
	for i := range dst {
		dst[i] = rng.Float64()*2*bound - bound
	}
}

// Dense is a fully connected layer.
// Weights are row-major [out, in] followed by [out] biases in one contiguous slice,
// so an optimizer can update the layer through Params.
type Dense struct {
	params  []float64
	grads   []float64
	act     activations.Activation
	outSize int
	inSize  int

	// gonum views over params and the working buffers
	weightMat *mat.Dense
	inputVec  *mat.VecDense
	preActVec *mat.VecDense

	inputBuf  []float64
	preActBuf []float64
	outputBuf []float64

	device Device
}

// NewDense creates a dense layer initialised like torch.nn.Linear.
func NewDense(in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("Dense: invalid size %d -> %d", in, out))
	}
	rng = newRNG(rng)

	nWeights := out * in
	params := make([]float64, nWeights+out)
	bound := 1 / math.Sqrt(float64(in))
	initUniform(params, bound, rng)

	d := &Dense{
		params:    params,
		grads:     make([]float64, len(params)),
		act:       act,
		outSize:   out,
		inSize:    in,
		inputBuf:  make([]float64, in),
		preActBuf: make([]float64, out),
		outputBuf: make([]float64, out),
		device:    &CPUDevice{},
	}
	d.weightMat = mat.NewDense(out, in, params[:nWeights])
	d.inputVec = mat.NewVecDense(in, d.inputBuf)
	d.preActVec = mat.NewVecDense(out, d.preActBuf)
	return d
}

// SetDevice sets the computation device.
func (d *Dense) SetDevice(device Device) {
	d.device = device
}

// Device returns the computation device.
func (d *Dense) Device() Device {
	return d.device
}

// Forward computes act(Wx + b). The returned slice is reused by the next call.
func (d *Dense) Forward(x []float64) []float64 {
	if len(x) != d.inSize {
		panic(fmt.Sprintf("Dense: input length %d, want %d", len(x), d.inSize))
	}
	copy(d.inputBuf, x)

	d.preActVec.MulVec(d.weightMat, d.inputVec)
	floats.Add(d.preActBuf, d.params[d.outSize*d.inSize:])

	for o, z := range d.preActBuf {
		d.outputBuf[o] = d.act.Activate(z)
	}
	return d.outputBuf
}

// Params returns the backing parameter slice.
func (d *Dense) Params() []float64 {
	return d.params
}

// SetParams copies weights and biases from a flattened slice.
func (d *Dense) SetParams(params []float64) {
	if len(params) != len(d.params) {
		panic(fmt.Sprintf("Dense: %d params, want %d", len(params), len(d.params)))
	}
	copy(d.params, params)
}

// Gradients returns the gradient buffer paired with Params.
func (d *Dense) Gradients() []float64 {
	return d.grads
}

// Weight returns the weight at (row, col).
func (d *Dense) Weight(row, col int) float64 {
	return d.params[row*d.inSize+col]
}

// SetWeight sets the weight at (row, col).
func (d *Dense) SetWeight(row, col int, val float64) {
	d.params[row*d.inSize+col] = val
}

// Bias returns a single bias.
func (d *Dense) Bias(idx int) float64 {
	return d.params[d.outSize*d.inSize+idx]
}

// SetBias sets a single bias.
func (d *Dense) SetBias(idx int, val float64) {
	d.params[d.outSize*d.inSize+idx] = val
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation {
	return d.act
}
