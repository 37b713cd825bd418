// Package baseline estimates endmember signatures by clustering pixel spectra,
// giving the network's signature head something to be compared against.
package baseline

import (
	"math"
	"sort"

	"github.com/FlavioCFOliveira/HSUnmix/internal/loss"
	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxSamples caps the number of spectra handed to k-means.
const DefaultMaxSamples = 4096

// Options tunes KMeans.
type Options struct {
	// MaxSamples caps the number of pixels clustered. The image is subsampled on
	// a regular grid to stay under it. Zero means DefaultMaxSamples.
	MaxSamples int

	Logger logrus.FieldLogger
}

// Result holds the estimated signatures, one row per cluster, ordered by
// descending cluster population.
type Result struct {
	Endmembers  *mat.Dense
	Populations []int
	Samples     int
}

// KMeans partitions the pixel spectra of cube into k clusters and returns the
// cluster centres as endmember estimates.
func KMeans(cube *tensor.Volume, k int, opts Options) (*Result, error) {
	if cube == nil || cube.Len() == 0 {
		return nil, errors.New("kmeans baseline: empty cube")
	}
	if k <= 0 {
		return nil, errors.Errorf("kmeans baseline: invalid cluster count %d", k)
	}
	maxSamples := opts.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	pixels := cube.H * cube.W
	step := 1
	if pixels > maxSamples {
		step = int(math.Sqrt(float64(pixels)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(pixels, maxSamples))
	for y := 0; y < cube.H; y += step {
		for x := 0; x < cube.W; x += step {
			dataset = append(dataset, clusters.Coordinates(cube.Pixel(y, x, nil)))
		}
	}
	// Partition needs a spare observation to reseed empty clusters.
	if len(dataset) <= k {
		return nil, errors.Errorf("kmeans baseline: %d spectra for %d clusters", len(dataset), k)
	}

	logger.WithFields(logrus.Fields{
		"action":   "baseline_kmeans",
		"clusters": k,
		"samples":  len(dataset),
		"step":     step,
	}).Debug("partitioning pixel spectra")

	cc, err := kmeans.New().Partition(dataset, k)
	if err != nil {
		return nil, errors.Wrap(err, "kmeans baseline")
	}
	if len(cc) != k {
		return nil, errors.Errorf("kmeans baseline: got %d clusters, want %d", len(cc), k)
	}

	sort.SliceStable(cc, func(i, j int) bool {
		return len(cc[i].Observations) > len(cc[j].Observations)
	})

	res := &Result{
		Endmembers:  mat.NewDense(k, cube.C, nil),
		Populations: make([]int, k),
		Samples:     len(dataset),
	}
	for i, c := range cc {
		res.Endmembers.SetRow(i, c.Center)
		res.Populations[i] = len(c.Observations)
	}
	return res, nil
}

// Match pairs every row of gt with a distinct row of est, greedily taking the
// pair with the smallest spectral angle first. It returns, for each ground-truth
// row, the index of the matched estimate and the angle between them.
// est must have at least as many rows as gt.
func Match(est, gt mat.Matrix) ([]int, []float64, error) {
	er, eb := est.Dims()
	gr, gb := gt.Dims()
	if eb != gb {
		return nil, nil, errors.Errorf("match: estimates have %d bands, ground truth %d", eb, gb)
	}
	if er < gr {
		return nil, nil, errors.Errorf("match: %d estimates for %d ground-truth signatures", er, gr)
	}

	type pair struct {
		g, e  int
		angle float64
	}
	pairs := make([]pair, 0, er*gr)
	eRow := make([]float64, eb)
	gRow := make([]float64, gb)
	for g := 0; g < gr; g++ {
		mat.Row(gRow, g, gt)
		for e := 0; e < er; e++ {
			mat.Row(eRow, e, est)
			pairs = append(pairs, pair{g: g, e: e, angle: loss.SpectralAngleVec(eRow, gRow)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].angle < pairs[j].angle })

	assign := make([]int, gr)
	angles := make([]float64, gr)
	for i := range assign {
		assign[i] = -1
	}
	used := make([]bool, er)
	left := gr
	for _, p := range pairs {
		if left == 0 {
			break
		}
		if assign[p.g] >= 0 || used[p.e] {
			continue
		}
		assign[p.g] = p.e
		angles[p.g] = p.angle
		used[p.e] = true
		left--
	}
	return assign, angles, nil
}

// Reorder returns the rows of est in the order given by assign.
func Reorder(est mat.Matrix, assign []int) *mat.Dense {
	_, c := est.Dims()
	out := mat.NewDense(len(assign), c, nil)
	row := make([]float64, c)
	for i, e := range assign {
		mat.Row(row, e, est)
		out.SetRow(i, row)
	}
	return out
}
