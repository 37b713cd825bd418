package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// GlobalAvgPool2D averages every channel plane down to one value.
// PyTorch reference: torch.nn.AdaptiveAvgPool2d(1) followed by flatten.
type GlobalAvgPool2D struct {
	channels  int
	outputBuf []float64
}

// NewGlobalAvgPool2D creates a global average pooling layer for the given channel count.
func NewGlobalAvgPool2D(channels int) *GlobalAvgPool2D {
	if channels <= 0 {
		panic(fmt.Sprintf("GlobalAvgPool2D: invalid channel count %d", channels))
	}
	return &GlobalAvgPool2D{
		channels:  channels,
		outputBuf: make([]float64, channels),
	}
}

// Forward reduces a flattened [channels, H, W] input to [channels].
func (g *GlobalAvgPool2D) Forward(x []float64) []float64 {
	if len(x) == 0 || len(x)%g.channels != 0 {
		panic(fmt.Sprintf("GlobalAvgPool2D: input length %d not divisible by channels %d", len(x), g.channels))
	}
	plane := len(x) / g.channels
	inv := 1 / float64(plane)
	for c := 0; c < g.channels; c++ {
		g.outputBuf[c] = floats.Sum(x[c*plane:(c+1)*plane]) * inv
	}
	return g.outputBuf
}

// Params returns nil; pooling has no parameters.
func (g *GlobalAvgPool2D) Params() []float64 { return nil }

// SetParams is a no-op.
func (g *GlobalAvgPool2D) SetParams([]float64) {}

// Gradients returns nil.
func (g *GlobalAvgPool2D) Gradients() []float64 { return nil }

// InSize returns the number of channels.
func (g *GlobalAvgPool2D) InSize() int { return g.channels }

// OutSize returns the number of channels.
func (g *GlobalAvgPool2D) OutSize() int { return g.channels }
