package unmix

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/FlavioCFOliveira/HSUnmix/internal/layer"
	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomImage(c, h, w int, seed int64) *tensor.Volume {
	rng := rand.New(rand.NewSource(seed))
	v := tensor.NewVolume(c, h, w)
	for i := range v.Data {
		v.Data[i] = rng.Float64()
	}
	return v
}

func checkOutput(t *testing.T, out Output, e, b, h, w int) {
	t.Helper()

	c, oh, ow := out.Abundances.Shape()
	require.Equal(t, []int{e, h, w}, []int{c, oh, ow})
	r, cols := out.Signatures.Dims()
	require.Equal(t, []int{e, b}, []int{r, cols})

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for k := 0; k < e; k++ {
				a := out.Abundances.At(k, y, x)
				if a < 0 {
					t.Fatalf("abundance (%d,%d,%d) = %v is negative", k, y, x, a)
				}
				sum += a
			}
			if math.Abs(sum-1) > 1e-5 {
				t.Fatalf("abundances at (%d,%d) sum to %v", y, x, sum)
			}
		}
	}

	for i, s := range out.Signatures.RawMatrix().Data {
		if !(s > 0 && s < 1) {
			t.Fatalf("signature element %d = %v outside (0, 1)", i, s)
		}
	}
}

func TestForwardShapesAndRanges(t *testing.T) {
	tests := []struct {
		bands, endmembers, h, w int
	}{
		{6, 3, 5, 7},
		{4, 1, 3, 3},
		{10, 5, 8, 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d_%dx%d", tt.bands, tt.endmembers, tt.h, tt.w), func(t *testing.T) {
			m, err := New(tt.bands, tt.endmembers, nil, rand.New(rand.NewSource(1)))
			require.NoError(t, err)

			out, err := m.Forward(randomImage(tt.bands, tt.h, tt.w, 2))
			require.NoError(t, err)
			checkOutput(t, out, tt.endmembers, tt.bands, tt.h, tt.w)
		})
	}
}

func TestForwardEndToEndFullSize(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size forward pass")
	}
	const bands, endmembers, side = 431, 5, 128

	m, err := New(bands, endmembers, &layer.CPUDevice{}, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	out, err := m.Forward(tensor.NewVolume(bands, side, side))
	require.NoError(t, err)
	checkOutput(t, out, endmembers, bands, side, side)
}

func TestForwardIsDeterministic(t *testing.T) {
	img := randomImage(5, 4, 6, 9)

	a, err := New(5, 2, nil, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := New(5, 2, nil, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	outA, err := a.Forward(img)
	require.NoError(t, err)
	outB, err := b.Forward(img)
	require.NoError(t, err)

	assert.Equal(t, outA.Abundances.Data, outB.Abundances.Data)
	assert.True(t, mat.Equal(outA.Signatures, outB.Signatures))
}

func TestForwardOutputsAreNotAliased(t *testing.T) {
	m, err := New(3, 2, nil, nil)
	require.NoError(t, err)

	first, err := m.Forward(randomImage(3, 4, 4, 1))
	require.NoError(t, err)
	abund := append([]float64(nil), first.Abundances.Data...)
	sig := mat.DenseCopyOf(first.Signatures)

	_, err = m.Forward(randomImage(3, 4, 4, 2))
	require.NoError(t, err)

	assert.Equal(t, abund, first.Abundances.Data)
	assert.True(t, mat.Equal(sig, first.Signatures))
}

func TestForwardBandMismatch(t *testing.T) {
	m, err := New(4, 2, nil, nil)
	require.NoError(t, err)

	_, err = m.Forward(randomImage(5, 3, 3, 1))
	assert.Error(t, err)

	_, err = m.Forward(nil)
	assert.Error(t, err)
}

func TestNewInvalid(t *testing.T) {
	for _, size := range [][2]int{{0, 3}, {3, 0}, {-1, 2}} {
		_, err := New(size[0], size[1], nil, nil)
		assert.Error(t, err, "size %v", size)
	}
}

type offlineDevice struct{}

func (offlineDevice) Type() layer.DeviceType { return layer.GPU }
func (offlineDevice) IsAvailable() bool      { return false }
func (offlineDevice) String() string         { return "offline" }

func TestNewUnavailableDevice(t *testing.T) {
	_, err := New(4, 2, offlineDevice{}, nil)
	require.Error(t, err)
	assert.Equal(t, layer.ErrDeviceUnavailable, errors.Cause(err))
}

func TestNumParams(t *testing.T) {
	const b, e = 7, 3
	m, err := New(b, e, nil, nil)
	require.NoError(t, err)

	want := (b*Hidden1*9 + Hidden1) +
		(Hidden1*Hidden2*9 + Hidden2) +
		(Hidden2*e + e) +
		(Hidden2*e*b + e*b)
	assert.Equal(t, want, m.NumParams())
	assert.Len(t, m.Parameters(), 4)
}

func TestInitialisationBounds(t *testing.T) {
	m, err := New(7, 3, nil, nil)
	require.NoError(t, err)

	fanIn := []float64{7 * 9, Hidden1 * 9, Hidden2, Hidden2}
	for i, p := range m.Parameters() {
		bound := 1 / math.Sqrt(fanIn[i])
		for _, v := range p.Params() {
			if math.Abs(v) > bound {
				t.Fatalf("parameter set %d: %v exceeds bound %v", i, v, bound)
			}
		}
	}
}

func TestSummary(t *testing.T) {
	m, err := New(7, 3, nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	m.Summary(&buf)
	s := buf.String()

	assert.Contains(t, s, "7 bands, 3 endmembers, cpu")
	assert.Contains(t, s, "ChannelSoftmax")
	assert.Contains(t, s, fmt.Sprintf("Total params: %d", m.NumParams()))
}

func TestEvaluate(t *testing.T) {
	abund := tensor.NewVolume(2, 2, 2)
	for i := 0; i < 4; i++ {
		abund.Data[i] = 0.25
		abund.Data[4+i] = 0.75
	}
	endm := mat.NewDense(2, 3, []float64{0.2, 0.4, 0.6, 0.9, 0.1, 0.3})
	sample := dataset.Sample{Image: tensor.NewVolume(3, 2, 2), Abundances: abund, Endmembers: endm}

	t.Run("perfect", func(t *testing.T) {
		sig := mat.NewDense(2, 3, nil)
		sig.Scale(0.5, endm) // scaling does not change the angle
		ev, err := Evaluate(Output{Signatures: sig, Abundances: abund.Clone()}, sample)
		require.NoError(t, err)
		assert.Equal(t, 0.0, ev.AbundanceRMSE)
		for _, a := range ev.SAD {
			assert.InDelta(t, 0, a, 1e-2)
		}
		assert.InDelta(t, 0, ev.MeanSAD, 1e-2)
	})

	t.Run("offset", func(t *testing.T) {
		pred := abund.Clone()
		for i := range pred.Data {
			pred.Data[i] += 0.1
		}
		ev, err := Evaluate(Output{Signatures: mat.DenseCopyOf(endm), Abundances: pred}, sample)
		require.NoError(t, err)
		assert.InDelta(t, 0.1, ev.AbundanceRMSE, 1e-12)
		assert.Len(t, ev.SAD, 2)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := Evaluate(Output{Signatures: mat.NewDense(3, 3, nil), Abundances: abund}, sample)
		assert.Error(t, err)
		_, err = Evaluate(Output{Signatures: mat.DenseCopyOf(endm), Abundances: tensor.NewVolume(2, 1, 4)}, sample)
		assert.Error(t, err)
		_, err = Evaluate(Output{}, sample)
		assert.Error(t, err)
	})
}

func TestLayersShareModelDevice(t *testing.T) {
	device := &layer.CPUDevice{}
	m, err := New(3, 2, device, nil)
	require.NoError(t, err)

	assert.Same(t, device, m.Device())
	for _, c := range []*layer.Conv2D{m.conv1, m.conv2, m.abundance} {
		assert.Same(t, device, c.Device())
	}
	assert.Same(t, device, m.signature.Device())
}

func BenchmarkForward(b *testing.B) {
	m, err := New(32, 5, nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	img := randomImage(32, 32, 32, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Forward(img); err != nil {
			b.Fatal(err)
		}
	}
}
