package layer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/HSUnmix/internal/activations"
	"gonum.org/v1/gonum/floats"
)

// Conv2D implements a 2D convolutional layer over one channel-first image.
// Uses direct convolution; the innermost row sweep is a gonum axpy.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	// Explicitly set dimensions (if set, overrides automatic inference)
	setInputHeight int
	setInputWidth  int

	// Dimensions of the last forward pass
	inputHeight int
	inputWidth  int

	// params: [outChannels, inChannels, kernelSize, kernelSize] weights then [outChannels] biases
	params  []float64
	grads   []float64
	nWeight int

	activation activations.Activation

	preActBuf []float64
	outputBuf []float64

	device Device
}

// NewConv2D creates a new 2D convolutional layer.
// inChannels: number of input channels
// outChannels: number of output feature maps
// kernelSize: size of convolutional kernel (square)
// stride: stride for convolution
// padding: zero padding size
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int,
	activation activations.Activation, rng *rand.Rand) *Conv2D {

	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("Conv2D: invalid configuration in=%d out=%d k=%d s=%d p=%d",
			inChannels, outChannels, kernelSize, stride, padding))
	}
	rng = newRNG(rng)

	nWeight := outChannels * inChannels * kernelSize * kernelSize
	params := make([]float64, nWeight+outChannels)

	// PyTorch default for Conv2d: bound = 1/sqrt(inChannels * k * k) for weights and biases
	bound := 1 / math.Sqrt(float64(inChannels*kernelSize*kernelSize))
	initUniform(params, bound, rng)

	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		params:      params,
		grads:       make([]float64, len(params)),
		nWeight:     nWeight,
		activation:  activation,
		device:      &CPUDevice{},
	}
}

// SetDevice sets the computation device for the convolutional layer.
func (c *Conv2D) SetDevice(device Device) {
	c.device = device
}

// Device returns the computation device.
func (c *Conv2D) Device() Device {
	return c.device
}

// OutputSize calculates the output spatial dimensions for an input of the given size.
func (c *Conv2D) OutputSize(inputHeight, inputWidth int) (int, int) {
	// Output size: (input + 2*padding - kernel) / stride + 1
	outH := (inputHeight+2*c.padding-c.kernelSize)/c.stride + 1
	outW := (inputWidth+2*c.padding-c.kernelSize)/c.stride + 1
	return outH, outW
}

// SetInputDimensions explicitly sets the input dimensions for the next forward pass.
// This allows non-square inputs and avoids automatic inference.
func (c *Conv2D) SetInputDimensions(height, width int) {
	c.setInputHeight = height
	c.setInputWidth = width
}

func (c *Conv2D) inputDimensions(channelSize int) (int, int) {
	if c.setInputHeight > 0 && c.setInputWidth > 0 {
		if c.setInputHeight*c.setInputWidth != channelSize {
			panic(fmt.Sprintf("Conv2D: input dimensions %dx%d don't match channelSize %d",
				c.setInputHeight, c.setInputWidth, channelSize))
		}
		return c.setInputHeight, c.setInputWidth
	}
	side := int(math.Sqrt(float64(channelSize)))
	if side*side != channelSize {
		panic(fmt.Sprintf("Conv2D: cannot infer square input from channelSize %d, call SetInputDimensions", channelSize))
	}
	return side, side
}

// Forward performs a forward pass through the convolutional layer.
// input: flattened [inChannels, inputHeight, inputWidth]
// Returns: flattened [outChannels, outputHeight, outputWidth], reused by the next call.
func (c *Conv2D) Forward(input []float64) []float64 {
	totalInput := len(input)
	if totalInput == 0 || totalInput%c.inChannels != 0 {
		panic(fmt.Sprintf("Conv2D: input length %d not divisible by inChannels %d", totalInput, c.inChannels))
	}
	inputHeight, inputWidth := c.inputDimensions(totalInput / c.inChannels)
	c.inputHeight = inputHeight
	c.inputWidth = inputWidth

	outH, outW := c.OutputSize(inputHeight, inputWidth)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("Conv2D: input %dx%d too small for kernel %d", inputHeight, inputWidth, c.kernelSize))
	}
	outSize := outH * outW
	requiredOutput := c.outChannels * outSize
	if cap(c.preActBuf) < requiredOutput {
		c.preActBuf = make([]float64, requiredOutput)
		c.outputBuf = make([]float64, requiredOutput)
	}
	preAct := c.preActBuf[:requiredOutput]
	output := c.outputBuf[:requiredOutput]

	kernelSize := c.kernelSize
	stride := c.stride
	padding := c.padding
	inPlane := inputHeight * inputWidth
	weights := c.params[:c.nWeight]
	biases := c.params[c.nWeight:]

	icWeightStride := kernelSize * kernelSize
	ocWeightStride := c.inChannels * icWeightStride

	for oc := 0; oc < c.outChannels; oc++ {
		out := preAct[oc*outSize : (oc+1)*outSize]
		for i := range out {
			out[i] = biases[oc]
		}

		for ic := 0; ic < c.inChannels; ic++ {
			in := input[ic*inPlane : (ic+1)*inPlane]
			icWeightBase := oc*ocWeightStride + ic*icWeightStride

			for kh := 0; kh < kernelSize; kh++ {
				for kw := 0; kw < kernelSize; kw++ {
					wVal := weights[icWeightBase+kh*kernelSize+kw]
					if wVal == 0 {
						continue
					}

					// Columns whose source index stays inside the row
					owStart, owEnd := 0, outW
					if stride == 1 {
						owStart = max(0, padding-kw)
						owEnd = min(outW, inputWidth+padding-kw)
						if owStart >= owEnd {
							continue
						}
					}

					for oh := 0; oh < outH; oh++ {
						inH := oh*stride + kh - padding
						if inH < 0 || inH >= inputHeight {
							continue
						}
						row := in[inH*inputWidth : (inH+1)*inputWidth]
						dst := out[oh*outW : (oh+1)*outW]

						if stride == 1 {
							shift := kw - padding
							floats.AddScaled(dst[owStart:owEnd], wVal, row[owStart+shift:owEnd+shift])
							continue
						}
						for ow := 0; ow < outW; ow++ {
							inW := ow*stride + kw - padding
							if inW >= 0 && inW < inputWidth {
								dst[ow] += wVal * row[inW]
							}
						}
					}
				}
			}
		}

		dst := output[oc*outSize : (oc+1)*outSize]
		for i, z := range out {
			dst[i] = c.activation.Activate(z)
		}
	}

	return output
}

// Params returns the backing parameter slice (weights then biases).
func (c *Conv2D) Params() []float64 {
	return c.params
}

// SetParams copies weights and biases from a flattened slice.
func (c *Conv2D) SetParams(params []float64) {
	if len(params) != len(c.params) {
		panic(fmt.Sprintf("Conv2D: %d params, want %d", len(params), len(c.params)))
	}
	copy(c.params, params)
}

// Gradients returns the gradient buffer paired with Params.
func (c *Conv2D) Gradients() []float64 {
	return c.grads
}

// Weight returns the kernel weight for (outChannel, inChannel, kh, kw).
func (c *Conv2D) Weight(oc, ic, kh, kw int) float64 {
	return c.params[c.weightIndex(oc, ic, kh, kw)]
}

// SetWeight sets the kernel weight for (outChannel, inChannel, kh, kw).
func (c *Conv2D) SetWeight(oc, ic, kh, kw int, val float64) {
	c.params[c.weightIndex(oc, ic, kh, kw)] = val
}

// SetBias sets the bias of an output channel.
func (c *Conv2D) SetBias(oc int, val float64) {
	c.params[c.nWeight+oc] = val
}

func (c *Conv2D) weightIndex(oc, ic, kh, kw int) int {
	k := c.kernelSize
	return ((oc*c.inChannels+ic)*k+kh)*k + kw
}

// InSize returns the number of input channels.
func (c *Conv2D) InSize() int {
	return c.inChannels
}

// OutSize returns the number of output channels.
func (c *Conv2D) OutSize() int {
	return c.outChannels
}

// KernelSize returns the kernel size.
func (c *Conv2D) KernelSize() int {
	return c.kernelSize
}

// Stride returns the stride.
func (c *Conv2D) Stride() int {
	return c.stride
}

// Padding returns the padding.
func (c *Conv2D) Padding() int {
	return c.padding
}

// Activation returns the activation function.
func (c *Conv2D) Activation() activations.Activation {
	return c.activation
}
