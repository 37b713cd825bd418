package baseline

import (
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var pure = [][]float64{
	{0.9, 0.8, 0.7, 0.2, 0.1},
	{0.1, 0.3, 0.9, 0.3, 0.1},
	{0.2, 0.1, 0.2, 0.6, 0.95},
}

// stripes paints each third of a 4x6 image with one pure spectrum.
func stripes() *tensor.Volume {
	v := tensor.NewVolume(len(pure[0]), 4, 6)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			s := pure[x/2]
			for b, val := range s {
				v.Set(b, y, x, val)
			}
		}
	}
	return v
}

func TestKMeansRecoversPureSpectra(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	res, err := KMeans(stripes(), 3, Options{Logger: logger})
	require.NoError(t, err)

	r, c := res.Endmembers.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 5, c)
	assert.Equal(t, []int{8, 8, 8}, res.Populations)
	assert.Equal(t, 24, res.Samples)

	assign, angles, err := Match(res.Endmembers, mat.NewDense(3, 5, flatten(pure)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, assign)
	for i, a := range angles {
		assert.InDelta(t, 0, a, 1e-2, "endmember %d", i)
	}

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "baseline_kmeans", hook.LastEntry().Data["action"])
}

func TestKMeansSubsamplesAndStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cube := tensor.NewVolume(8, 40, 40)
	for i := range cube.Data {
		cube.Data[i] = rng.Float64()
	}

	res, err := KMeans(cube, 4, Options{MaxSamples: 100})
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Samples, 100)
	total := 0
	for _, p := range res.Populations {
		total += p
	}
	assert.Equal(t, res.Samples, total)
	for i := 1; i < len(res.Populations); i++ {
		assert.GreaterOrEqual(t, res.Populations[i-1], res.Populations[i])
	}
	for _, v := range res.Endmembers.RawMatrix().Data {
		assert.True(t, v >= 0 && v <= 1, "centre value %v", v)
	}
}

func TestKMeansInvalid(t *testing.T) {
	_, err := KMeans(nil, 3, Options{})
	assert.Error(t, err)
	_, err = KMeans(stripes(), 0, Options{})
	assert.Error(t, err)
	_, err = KMeans(tensor.NewVolume(5, 1, 2), 2, Options{})
	assert.Error(t, err)
}

func TestMatchGreedy(t *testing.T) {
	gt := mat.NewDense(3, 5, flatten(pure))
	// estimates in a shuffled order plus one distractor
	est := mat.NewDense(4, 5, flatten([][]float64{
		pure[2],
		{0.5, 0.5, 0.5, 0.5, 0.5},
		pure[0],
		pure[1],
	}))

	assign, angles, err := Match(est, gt)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 0}, assign)
	for _, a := range angles {
		assert.InDelta(t, 0, a, 1e-2)
	}

	ordered := Reorder(est, assign)
	for i := range pure {
		assert.Equal(t, pure[i], mat.Row(nil, i, ordered))
	}
}

func TestMatchErrors(t *testing.T) {
	_, _, err := Match(mat.NewDense(2, 4, nil), mat.NewDense(2, 5, nil))
	assert.Error(t, err)
	_, _, err = Match(mat.NewDense(1, 5, nil), mat.NewDense(2, 5, nil))
	assert.Error(t, err)
}

func flatten(rows [][]float64) []float64 {
	var out []float64
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
