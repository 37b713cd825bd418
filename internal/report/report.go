// Package report writes evaluation results as CSV.
package report

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/FlavioCFOliveira/HSUnmix/internal/loss"
	"github.com/pkg/errors"
)

// Header is the first CSV record.
var Header = []string{"endmember", "model_sad", "model_sad_deg", "baseline_sad", "baseline_sad_deg"}

// Report holds per-endmember spectral angles, in radians, for the network and
// optionally for the clustering baseline.
type Report struct {
	Model         []float64
	Baseline      []float64 // nil when the baseline was not run
	AbundanceRMSE float64
}

// Records returns the CSV rows: the header, one row per endmember, a "mean" row
// and an "abundance_rmse" row. Baseline columns are empty when there is none.
func (r Report) Records() ([][]string, error) {
	if r.Baseline != nil && len(r.Baseline) != len(r.Model) {
		return nil, errors.Errorf("report: %d baseline angles for %d endmembers", len(r.Baseline), len(r.Model))
	}

	records := [][]string{Header}
	for i, a := range r.Model {
		rec := []string{strconv.Itoa(i), format(a), format(degrees(a)), "", ""}
		if r.Baseline != nil {
			rec[3], rec[4] = format(r.Baseline[i]), format(degrees(r.Baseline[i]))
		}
		records = append(records, rec)
	}

	mean := loss.MeanAngle(r.Model)
	rec := []string{"mean", format(mean), format(degrees(mean)), "", ""}
	if r.Baseline != nil {
		b := loss.MeanAngle(r.Baseline)
		rec[3], rec[4] = format(b), format(degrees(b))
	}
	records = append(records, rec)
	records = append(records, []string{"abundance_rmse", format(r.AbundanceRMSE), "", "", ""})
	return records, nil
}

// Write encodes the report to w.
func (r Report) Write(w io.Writer) error {
	records, err := r.Records()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return errors.Wrap(err, "report: write csv")
	}
	return nil
}

// WriteFile writes the report to filename, replacing any existing file.
func (r Report) WriteFile(filename string) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "report: open %s", filename)
	}
	if err := r.Write(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "report: close %s", filename)
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
