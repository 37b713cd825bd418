package unmix

import (
	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/FlavioCFOliveira/HSUnmix/internal/loss"
	"github.com/pkg/errors"
)

// Evaluation compares a forward pass against the ground truth of a sample.
type Evaluation struct {
	AbundanceRMSE float64
	SAD           []float64 // radians, one per endmember
	MeanSAD       float64
}

// Evaluate scores out against sample. Shapes must agree.
func Evaluate(out Output, sample dataset.Sample) (Evaluation, error) {
	if out.Abundances == nil || out.Signatures == nil {
		return Evaluation{}, errors.New("evaluate: incomplete output")
	}

	pc, ph, pw := out.Abundances.Shape()
	gc, gh, gw := sample.Abundances.Shape()
	if pc != gc || ph != gh || pw != gw {
		return Evaluation{}, errors.Errorf("evaluate: abundances %s vs ground truth %s", out.Abundances, sample.Abundances)
	}
	pr, pb := out.Signatures.Dims()
	gr, gb := sample.Endmembers.Dims()
	if pr != gr || pb != gb {
		return Evaluation{}, errors.Errorf("evaluate: signatures %dx%d vs ground truth %dx%d", pr, pb, gr, gb)
	}

	sad := loss.SpectralAngle(out.Signatures, sample.Endmembers)
	return Evaluation{
		AbundanceRMSE: loss.RMSE{}.Forward(out.Abundances.Data, sample.Abundances.Data),
		SAD:           sad,
		MeanSAD:       loss.MeanAngle(sad),
	}, nil
}
