// Package render turns unmixing results into images: abundance maps as PNG and
// endmember signatures as a line plot.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/FlavioCFOliveira/HSUnmix/internal/tensor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Palette returns n well separated colours, hues evenly spaced around the wheel.
func Palette(n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		out[i] = colorful.Hsv(360*float64(i)/float64(max(n, 1)), 0.85, 0.95)
	}
	return out
}

// AbundanceComposite colours each pixel as the abundance-weighted mix of the
// endmember palette. palette needs one entry per channel.
func AbundanceComposite(a *tensor.Volume, palette []colorful.Color) (*image.RGBA, error) {
	if len(palette) < a.C {
		return nil, errors.Errorf("palette has %d colours for %d endmembers", len(palette), a.C)
	}
	img := image.NewRGBA(image.Rect(0, 0, a.W, a.H))
	px := make([]float64, a.C)
	for y := 0; y < a.H; y++ {
		for x := 0; x < a.W; x++ {
			px = a.Pixel(y, x, px)
			var mix colorful.Color
			for e, w := range px {
				mix.R += w * palette[e].R
				mix.G += w * palette[e].G
				mix.B += w * palette[e].B
			}
			r, g, b := mix.Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img, nil
}

// AbundanceMap renders channel e as greyscale, 0 black and 1 white.
func AbundanceMap(a *tensor.Volume, e int) (*image.Gray, error) {
	if e < 0 || e >= a.C {
		return nil, errors.Errorf("endmember %d out of range [0, %d)", e, a.C)
	}
	img := image.NewGray(image.Rect(0, 0, a.W, a.H))
	plane := a.Channel(e)
	for y := 0; y < a.H; y++ {
		for x := 0; x < a.W; x++ {
			v := plane[y*a.W+x]
			if math.IsNaN(v) {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(255 * math.Max(0, math.Min(1, v))))})
		}
	}
	return img, nil
}

// SaveImage writes img as PNG.
func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", filename)
	}
	return errors.Wrapf(f.Close(), "close %s", filename)
}

// SaveAbundances writes abundances.png and one abundance_<i>.png per endmember
// into dir, returning the paths written.
func SaveAbundances(dir string, a *tensor.Volume, palette []colorful.Color) ([]string, error) {
	composite, err := AbundanceComposite(a, palette)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "abundances.png")
	if err := SaveImage(composite, path); err != nil {
		return nil, err
	}
	written := []string{path}

	for e := 0; e < a.C; e++ {
		gray, err := AbundanceMap(a, e)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, fmt.Sprintf("abundance_%d.png", e))
		if err := SaveImage(gray, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
