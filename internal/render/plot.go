package render

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SignaturePlot draws every row of pred as a solid line and, when gt is not nil,
// the matching row of gt as a dashed line in the same colour.
func SignaturePlot(pred, gt mat.Matrix, palette []colorful.Color) (*plot.Plot, error) {
	rows, bands := pred.Dims()
	if gt != nil {
		gr, gb := gt.Dims()
		if gr != rows || gb != bands {
			return nil, errors.Errorf("signature plot: %dx%d estimates vs %dx%d ground truth", rows, bands, gr, gb)
		}
	}
	if len(palette) < rows {
		return nil, errors.Errorf("signature plot: palette has %d colours for %d endmembers", len(palette), rows)
	}

	p := plot.New()
	p.Title.Text = "Endmember signatures"
	p.X.Label.Text = "band"
	p.Y.Label.Text = "reflectance (normalised)"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Legend.Top = true

	for i := 0; i < rows; i++ {
		line, err := plotter.NewLine(rowXYs(pred, i))
		if err != nil {
			return nil, errors.Wrapf(err, "signature %d", i)
		}
		line.LineStyle.Color = palette[i].Clamped()
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("estimate %d", i), line)

		if gt == nil {
			continue
		}
		ref, err := plotter.NewLine(rowXYs(gt, i))
		if err != nil {
			return nil, errors.Wrapf(err, "ground truth %d", i)
		}
		ref.LineStyle.Color = palette[i].Clamped()
		ref.LineStyle.Width = vg.Points(1)
		ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(ref)
		p.Legend.Add(fmt.Sprintf("ground truth %d", i), ref)
	}
	return p, nil
}

// SaveSignaturePlot renders SignaturePlot to filename; the format follows the
// file extension.
func SaveSignaturePlot(filename string, pred, gt mat.Matrix, palette []colorful.Color) error {
	p, err := SignaturePlot(pred, gt, palette)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.Save(10*vg.Inch, 5*vg.Inch, filename), "save %s", filename)
}

func rowXYs(m mat.Matrix, i int) plotter.XYs {
	row := mat.Row(nil, i, m)
	xys := make(plotter.XYs, len(row))
	for b, v := range row {
		xys[b].X = float64(b)
		xys[b].Y = v
	}
	return xys
}
