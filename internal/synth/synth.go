// Package synth generates linear-mixing hyperspectral scenes with known ground
// truth, laid out the way the unmixing loader expects them.
package synth

import (
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/FlavioCFOliveira/HSUnmix/internal/matfile"
	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Options describes the scene to generate.
type Options struct {
	Height     int     `yaml:"height"`
	Width      int     `yaml:"width"`
	Bands      int     `yaml:"bands"`
	Endmembers int     `yaml:"endmembers"`
	Alpha      float64 `yaml:"alpha"`     // Dirichlet concentration, shared by every endmember
	NoiseStd   float64 `yaml:"noise_std"` // standard deviation of additive Gaussian noise
	Peaks      int     `yaml:"peaks"`     // absorption features per signature
	Seed       int64   `yaml:"seed"`
}

// DefaultOptions matches the shape of the reference benchmark scene.
func DefaultOptions() Options {
	return Options{
		Height:     128,
		Width:      128,
		Bands:      431,
		Endmembers: 5,
		Alpha:      1,
		NoiseStd:   0.01,
		Peaks:      4,
		Seed:       42,
	}
}

// Validate reports every invalid field at once.
func (o Options) Validate() error {
	var result *multierror.Error
	if o.Height <= 0 || o.Width <= 0 {
		result = multierror.Append(result, errors.Errorf("image size %dx%d must be positive", o.Height, o.Width))
	}
	if o.Bands <= 0 {
		result = multierror.Append(result, errors.Errorf("bands %d must be positive", o.Bands))
	}
	if o.Endmembers <= 0 {
		result = multierror.Append(result, errors.Errorf("endmembers %d must be positive", o.Endmembers))
	}
	if !(o.Alpha > 0) {
		result = multierror.Append(result, errors.Errorf("alpha %v must be positive", o.Alpha))
	}
	if o.NoiseStd < 0 || math.IsNaN(o.NoiseStd) {
		result = multierror.Append(result, errors.Errorf("noise std %v must not be negative", o.NoiseStd))
	}
	if o.Peaks < 0 {
		result = multierror.Append(result, errors.Errorf("peaks %d must not be negative", o.Peaks))
	}
	return result.ErrorOrNil()
}

// Scene is a generated image with its ground truth.
type Scene struct {
	Cube       *tensor.Volume // bands x height x width, noisy
	Abundances *tensor.Volume // endmembers x height x width
	Endmembers *mat.Dense     // endmembers x bands
}

// Generate draws a scene. The same options always produce the same scene.
func Generate(opts Options) (*Scene, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "synth")
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	s := &Scene{
		Endmembers: signatures(opts.Endmembers, opts.Bands, opts.Peaks, rng),
		Abundances: tensor.NewVolume(opts.Endmembers, opts.Height, opts.Width),
		Cube:       tensor.NewVolume(opts.Bands, opts.Height, opts.Width),
	}

	alpha := make([]float64, opts.Endmembers)
	for i := range alpha {
		alpha[i] = opts.Alpha
	}
	draw := make([]float64, opts.Endmembers)
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			dirichlet(draw, alpha, rng)
			for e, v := range draw {
				s.Abundances.Set(e, y, x, v)
			}
		}
	}

	// Linear mixing: cube (B x HW) = endmembersᵀ (B x E) * abundances (E x HW).
	pixels := opts.Height * opts.Width
	abund := mat.NewDense(opts.Endmembers, pixels, s.Abundances.Data)
	cube := mat.NewDense(opts.Bands, pixels, s.Cube.Data)
	cube.Mul(s.Endmembers.T(), abund)

	if opts.NoiseStd > 0 {
		for i := range s.Cube.Data {
			s.Cube.Data[i] = math.Max(0, s.Cube.Data[i]+rng.NormFloat64()*opts.NoiseStd)
		}
	}
	return s, nil
}

// Arrays converts the scene to MATLAB-ordered arrays named by vars.
func (s *Scene) Arrays(vars dataset.Variables) ([]*matfile.Array, error) {
	e, b := s.Endmembers.Dims()
	_, h, w := s.Cube.Shape()

	cube, err := matfile.NewArray(vars.Cube, []int{h, w, b}, s.Cube.ColumnMajorHWC())
	if err != nil {
		return nil, err
	}
	abund, err := matfile.NewArray(vars.Abundances, []int{h, w, e}, s.Abundances.ColumnMajorHWC())
	if err != nil {
		return nil, err
	}
	// A column-major E x B matrix is the row-major layout of its transpose.
	colMajor := mat.NewDense(b, e, nil)
	colMajor.Copy(s.Endmembers.T())
	endm, err := matfile.NewArray(vars.Endmembers, []int{e, b}, colMajor.RawMatrix().Data)
	if err != nil {
		return nil, err
	}
	return []*matfile.Array{cube, abund, endm}, nil
}

// signatures builds smooth spectra in (0, 1]: a random linear trend with a few
// Gaussian absorption features, rescaled so each row peaks at 1.
func signatures(n, bands, peaks int, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(n, bands, nil)
	row := make([]float64, bands)
	for i := 0; i < n; i++ {
		start, end := 0.2+0.6*rng.Float64(), 0.2+0.6*rng.Float64()
		for b := range row {
			t := 0.0
			if bands > 1 {
				t = float64(b) / float64(bands-1)
			}
			row[b] = start + (end-start)*t
		}
		for p := 0; p < peaks; p++ {
			centre := rng.Float64() * float64(bands)
			width := float64(bands) * (0.02 + 0.08*rng.Float64())
			depth := 0.1 + 0.4*rng.Float64()
			for b := range row {
				d := (float64(b) - centre) / width
				row[b] -= depth * math.Exp(-0.5*d*d)
			}
		}
		lo := floats.Min(row)
		if lo < 0.05 {
			floats.AddConst(0.05-lo, row)
		}
		peak := floats.Max(row)
		for b := range row {
			row[b] /= peak
		}
		m.SetRow(i, row)
	}
	return m
}

// dirichlet fills dst with one draw from Dirichlet(alpha).
func dirichlet(dst, alpha []float64, rng *rand.Rand) {
	for i, a := range alpha {
		dst[i] = gamma(a, rng)
	}
	sum := floats.Sum(dst)
	if sum == 0 {
		// every gamma draw underflowed; fall back to the centre of the simplex
		for i := range dst {
			dst[i] = 1 / float64(len(dst))
		}
		return
	}
	floats.Scale(1/sum, dst)
}

// gamma draws from Gamma(a, 1) with the Marsaglia-Tsang method.
func gamma(a float64, rng *rand.Rand) float64 {
	if a < 1 {
		// Gamma(a) = Gamma(a+1) * U^(1/a)
		return gamma(a+1, rng) * math.Pow(rng.Float64(), 1/a)
	}
	d := a - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
