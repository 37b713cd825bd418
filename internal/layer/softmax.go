package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/HSUnmix/internal/activations"
)

// ChannelSoftmax applies softmax across the channel axis independently at every
// spatial position, so each pixel's channel vector is non-negative and sums to 1.
// PyTorch reference: torch.softmax(x, dim=1) on an NCHW tensor.
type ChannelSoftmax struct {
	channels  int
	pixelBuf  []float64
	outputBuf []float64
}

// NewChannelSoftmax creates a channel softmax for the given channel count.
func NewChannelSoftmax(channels int) *ChannelSoftmax {
	if channels <= 0 {
		panic(fmt.Sprintf("ChannelSoftmax: invalid channel count %d", channels))
	}
	return &ChannelSoftmax{
		channels: channels,
		pixelBuf: make([]float64, channels),
	}
}

// Forward normalises a flattened [channels, H, W] input.
// The returned slice is reused by the next call.
func (s *ChannelSoftmax) Forward(x []float64) []float64 {
	if len(x) == 0 || len(x)%s.channels != 0 {
		panic(fmt.Sprintf("ChannelSoftmax: input length %d not divisible by channels %d", len(x), s.channels))
	}
	if cap(s.outputBuf) < len(x) {
		s.outputBuf = make([]float64, len(x))
	}
	out := s.outputBuf[:len(x)]
	plane := len(x) / s.channels

	softmax := activations.Softmax{}
	for p := 0; p < plane; p++ {
		for c := 0; c < s.channels; c++ {
			s.pixelBuf[c] = x[c*plane+p]
		}
		softmax.ActivateBatch(s.pixelBuf)
		for c := 0; c < s.channels; c++ {
			out[c*plane+p] = s.pixelBuf[c]
		}
	}
	return out
}

// Params returns nil; softmax has no parameters.
func (s *ChannelSoftmax) Params() []float64 { return nil }

// SetParams is a no-op.
func (s *ChannelSoftmax) SetParams([]float64) {}

// Gradients returns nil.
func (s *ChannelSoftmax) Gradients() []float64 { return nil }

// InSize returns the number of channels.
func (s *ChannelSoftmax) InSize() int { return s.channels }

// OutSize returns the number of channels.
func (s *ChannelSoftmax) OutSize() int { return s.channels }
