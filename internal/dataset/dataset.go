// Package dataset loads a hyperspectral scene from a MAT-file, normalises it and
// exposes it as a single-sample dataset.
package dataset

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/HSUnmix/internal/layer"
	"github.com/FlavioCFOliveira/HSUnmix/internal/matfile"
	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDegenerateMaximum is returned when an array cannot be normalised because
	// its global maximum is zero, negative or NaN.
	ErrDegenerateMaximum = errors.New("array maximum is not positive")

	// ErrIndexOutOfRange is returned by Get for any index other than 0.
	ErrIndexOutOfRange = errors.New("sample index out of range")
)

// Variables names the three arrays read from the scene file.
type Variables struct {
	Cube       string `yaml:"cube"`
	Abundances string `yaml:"abundances"`
	Endmembers string `yaml:"endmembers"`
}

// DefaultVariables returns the names used by the synthetic unmixing benchmark.
func DefaultVariables() Variables {
	return Variables{
		Cube:       "syntheticImageNoisy",
		Abundances: "abundanciesGT",
		Endmembers: "endmembersGT",
	}
}

// Scene holds the normalised arrays of one hyperspectral image.
type Scene struct {
	Cube       *tensor.Volume // bands x height x width
	Abundances *tensor.Volume // endmembers x height x width
	Endmembers *mat.Dense     // endmembers x bands

	// Maxima the arrays were divided by, in the order cube, abundances, endmembers.
	Maxima [3]float64

	// Names of the arrays the scene was read from.
	Variables Variables
	Source    string
}

// Bands returns the number of spectral bands.
func (s *Scene) Bands() int { return s.Cube.C }

// NumEndmembers returns the number of endmembers.
func (s *Scene) NumEndmembers() int { return s.Abundances.C }

// Height returns the image height in pixels.
func (s *Scene) Height() int { return s.Cube.H }

// Width returns the image width in pixels.
func (s *Scene) Width() int { return s.Cube.W }

// Load reads the three named arrays from the MAT-file at path and normalises each
// by its own global maximum.
func Load(path string, vars Variables) (*Scene, error) {
	f, err := matfile.Open(path)
	if err != nil {
		return nil, err
	}

	cube, err := f.Array(vars.Cube)
	if err != nil {
		return nil, err
	}
	abund, err := f.Array(vars.Abundances)
	if err != nil {
		return nil, err
	}
	endm, err := f.Array(vars.Endmembers)
	if err != nil {
		return nil, err
	}

	scene, err := FromArrays(cube, abund, endm)
	if err != nil {
		return nil, errors.Wrapf(err, "load scene %s", path)
	}
	scene.Source = path
	return scene, nil
}

// FromArrays builds a normalised scene from MATLAB-ordered arrays: the cube is
// (H, W, B), the abundances (H, W, E) and the endmembers (E, B). The input
// arrays are not modified.
func FromArrays(cube, abund, endm *matfile.Array) (*Scene, error) {
	h, w, b, err := imageDims(cube)
	if err != nil {
		return nil, err
	}
	ah, aw, e, err := imageDims(abund)
	if err != nil {
		return nil, err
	}
	if len(endm.Dims) != 2 {
		return nil, &matfile.FileFormatError{Variable: endm.Name, Reason: fmt.Sprintf("want a 2-D array, got %s", endm.DimString())}
	}
	er, eb := endm.Dims[0], endm.Dims[1]

	switch {
	case ah != h || aw != w:
		return nil, errors.Errorf("abundances are %dx%d but the cube is %dx%d", ah, aw, h, w)
	case er != e:
		return nil, errors.Errorf("%d endmember signatures for %d abundance maps", er, e)
	case eb != b:
		return nil, errors.Errorf("endmember signatures have %d bands, the cube has %d", eb, b)
	}

	s := &Scene{Variables: Variables{Cube: cube.Name, Abundances: abund.Name, Endmembers: endm.Name}}
	if s.Cube, err = tensor.FromColumnMajorHWC(h, w, b, cube.Data); err != nil {
		return nil, err
	}
	if s.Abundances, err = tensor.FromColumnMajorHWC(h, w, e, abund.Data); err != nil {
		return nil, err
	}
	// Column-major E x B read row-major is its B x E transpose.
	s.Endmembers = mat.NewDense(e, b, nil)
	s.Endmembers.Copy(mat.NewDense(b, e, endm.Data).T())

	named := []struct {
		name string
		data []float64
	}{
		{cube.Name, s.Cube.Data},
		{abund.Name, s.Abundances.Data},
		{endm.Name, s.Endmembers.RawMatrix().Data},
	}
	for i, n := range named {
		m, err := Normalize(n.data)
		if err != nil {
			return nil, errors.Wrapf(err, "normalise %s", n.name)
		}
		s.Maxima[i] = m
	}
	return s, nil
}

// imageDims reads (H, W, C) from a MATLAB image array. MATLAB drops a trailing
// singleton dimension, so a 2-D array is a single-channel image.
func imageDims(a *matfile.Array) (int, int, int, error) {
	switch len(a.Dims) {
	case 2:
		return a.Dims[0], a.Dims[1], 1, nil
	case 3:
		return a.Dims[0], a.Dims[1], a.Dims[2], nil
	default:
		return 0, 0, 0, &matfile.FileFormatError{Variable: a.Name, Reason: fmt.Sprintf("want a 3-D array, got %s", a.DimString())}
	}
}

// Normalize divides every element by the global maximum in place and returns that
// maximum. Division is exact, so data[i] becomes original[i]/max. A maximum that is
// zero, negative or NaN leaves data untouched and returns ErrDegenerateMaximum.
func Normalize(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, errors.Wrap(ErrDegenerateMaximum, "empty array")
	}
	m := floats.Max(data)
	if !(m > 0) || math.IsInf(m, 1) {
		return m, errors.Wrapf(ErrDegenerateMaximum, "maximum is %v", m)
	}
	for i := range data {
		data[i] /= m
	}
	return m, nil
}

// Sample is the one item of a Dataset.
type Sample struct {
	Image      *tensor.Volume // bands x height x width
	Abundances *tensor.Volume // endmembers x height x width
	Endmembers *mat.Dense     // endmembers x bands
	Device     layer.Device
}

// Dataset adapts a Scene to an indexed, single-item dataset.
type Dataset struct {
	scene  *Scene
	device layer.Device
}

// New wraps scene. The device is fixed for the lifetime of the dataset.
func New(scene *Scene, device layer.Device) *Dataset {
	if device == nil {
		device = layer.DefaultDevice()
	}
	return &Dataset{scene: scene, device: device}
}

// Len always returns 1.
func (d *Dataset) Len() int {
	return 1
}

// Get returns the sample at index, which must be 0. Repeated calls share the
// scene's backing arrays, which are never mutated after loading.
func (d *Dataset) Get(index int) (Sample, error) {
	if index != 0 {
		return Sample{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", index, d.Len())
	}
	return Sample{
		Image:      d.scene.Cube,
		Abundances: d.scene.Abundances,
		Endmembers: d.scene.Endmembers,
		Device:     d.device,
	}, nil
}

// Scene returns the wrapped scene.
func (d *Dataset) Scene() *Scene {
	return d.scene
}

// Device returns the device samples are placed on.
func (d *Dataset) Device() layer.Device {
	return d.device
}
