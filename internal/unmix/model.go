// Package unmix implements the two-branch convolutional unmixing network.
//
// A shared convolutional trunk feeds two heads: a per-pixel abundance head whose
// channel vector is a point on the simplex, and a global signature head that
// produces one spectrum per endmember.
package unmix

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/FlavioCFOliveira/HSUnmix/internal/activations"
	"github.com/FlavioCFOliveira/HSUnmix/internal/layer"
	"github.com/FlavioCFOliveira/HSUnmix/internal/opt"
	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Trunk widths.
const (
	Hidden1 = 64
	Hidden2 = 128
)

// Output is the result of one forward pass. Both fields are freshly allocated.
type Output struct {
	Signatures *mat.Dense     // endmembers x bands, in (0, 1); saturates to exactly 0 or 1 for extreme inputs
	Abundances *tensor.Volume // endmembers x height x width, simplex per pixel
}

// Model is the unmixing network.
type Model struct {
	bands      int
	endmembers int
	device     layer.Device

	conv1 *layer.Conv2D
	conv2 *layer.Conv2D

	abundance *layer.Conv2D
	softmax   *layer.ChannelSoftmax

	pool      *layer.GlobalAvgPool2D
	signature *layer.Dense
}

// New builds a model for images with the given number of bands, estimating the
// given number of endmembers. Parameters are drawn from rng; a nil rng uses a
// fixed seed. A nil device selects the default device.
func New(bands, endmembers int, device layer.Device, rng *rand.Rand) (*Model, error) {
	if bands <= 0 || endmembers <= 0 {
		return nil, errors.Errorf("invalid model size: %d bands, %d endmembers", bands, endmembers)
	}
	if device == nil {
		device = layer.DefaultDevice()
	}
	if !device.IsAvailable() {
		return nil, errors.Wrapf(layer.ErrDeviceUnavailable, "build model on %s", device)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}

	m := &Model{
		bands:      bands,
		endmembers: endmembers,
		device:     device,
		conv1:      layer.NewConv2D(bands, Hidden1, 3, 1, 1, activations.ReLU{}, rng),
		conv2:      layer.NewConv2D(Hidden1, Hidden2, 3, 1, 1, activations.ReLU{}, rng),
		abundance:  layer.NewConv2D(Hidden2, endmembers, 1, 1, 0, activations.Linear{}, rng),
		softmax:    layer.NewChannelSoftmax(endmembers),
		pool:       layer.NewGlobalAvgPool2D(Hidden2),
		signature:  layer.NewDense(Hidden2, endmembers*bands, activations.Sigmoid{}, rng),
	}
	for _, c := range []*layer.Conv2D{m.conv1, m.conv2, m.abundance} {
		c.SetDevice(device)
	}
	m.signature.SetDevice(device)
	return m, nil
}

// Bands returns the number of input channels the model accepts.
func (m *Model) Bands() int { return m.bands }

// Endmembers returns the number of endmembers the model estimates.
func (m *Model) Endmembers() int { return m.endmembers }

// Device returns the device the model was built for.
func (m *Model) Device() layer.Device { return m.device }

// Forward runs the network on one band-first image.
func (m *Model) Forward(img *tensor.Volume) (Output, error) {
	if img == nil {
		return Output{}, errors.New("forward: nil image")
	}
	if img.C != m.bands {
		return Output{}, errors.Errorf("forward: image has %d bands, model expects %d", img.C, m.bands)
	}
	if img.H <= 0 || img.W <= 0 || len(img.Data) != img.C*img.H*img.W {
		return Output{}, errors.Errorf("forward: malformed image %s with %d values", img, len(img.Data))
	}

	for _, c := range []*layer.Conv2D{m.conv1, m.conv2, m.abundance} {
		c.SetInputDimensions(img.H, img.W)
	}

	features := m.conv2.Forward(m.conv1.Forward(img.Data))
	abund := m.softmax.Forward(m.abundance.Forward(features))
	sig := m.signature.Forward(m.pool.Forward(features))

	// Layer outputs are reused by the next call, so copy them out.
	out := Output{
		Signatures: mat.NewDense(m.endmembers, m.bands, nil),
		Abundances: tensor.NewVolume(m.endmembers, img.H, img.W),
	}
	copy(out.Abundances.Data, abund)
	copy(out.Signatures.RawMatrix().Data, sig)
	return out, nil
}

// Parameters returns every layer that owns parameters, in forward order.
func (m *Model) Parameters() []opt.Parameter {
	return []opt.Parameter{m.conv1, m.conv2, m.abundance, m.signature}
}

// NumParams returns the total number of trainable scalars.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.Parameters() {
		n += len(p.Params())
	}
	return n
}

type summaryRow struct {
	name   string
	output string
	params int
}

func (m *Model) summaryRows() []summaryRow {
	e, b := m.endmembers, m.bands
	return []summaryRow{
		{"Conv2D_1 (relu)", fmt.Sprintf("(%d, H, W)", Hidden1), len(m.conv1.Params())},
		{"Conv2D_2 (relu)", fmt.Sprintf("(%d, H, W)", Hidden2), len(m.conv2.Params())},
		{"Conv2D_abundance", fmt.Sprintf("(%d, H, W)", e), len(m.abundance.Params())},
		{"ChannelSoftmax", fmt.Sprintf("(%d, H, W)", e), len(m.softmax.Params())},
		{"GlobalAvgPool2D", fmt.Sprintf("(%d)", Hidden2), len(m.pool.Params())},
		{"Dense_signature (sigmoid)", fmt.Sprintf("(%d, %d)", e, b), len(m.signature.Params())},
	}
}

// Summary writes a table of layers, output shapes and parameter counts.
func (m *Model) Summary(w io.Writer) {
	rule := strings.Repeat("_", 68)
	fmt.Fprintf(w, "Model: unmix (%d bands, %d endmembers, %s)\n", m.bands, m.endmembers, m.device)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-28s %-22s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", 68))

	total := 0
	for _, r := range m.summaryRows() {
		total += r.params
		fmt.Fprintf(w, "%-28s %-22s %-10d\n", r.name, r.output, r.params)
	}
	fmt.Fprintln(w, strings.Repeat("=", 68))
	fmt.Fprintf(w, "Total params: %d\n", total)
	fmt.Fprintln(w, rule)
}
