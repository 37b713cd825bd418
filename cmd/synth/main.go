package main

import (
	"os"

	"github.com/FlavioCFOliveira/HSUnmix/internal/config"
	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/FlavioCFOliveira/HSUnmix/internal/matfile"
	"github.com/FlavioCFOliveira/HSUnmix/internal/synth"
	flags "github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

// Options are the generator flags.
type Options struct {
	Output     string  `long:"output" short:"o" default:"data/synthetic_scene.mat" description:"MAT-file to write"`
	Height     int     `long:"height" default:"128" description:"image height in pixels"`
	Width      int     `long:"width" default:"128" description:"image width in pixels"`
	Bands      int     `long:"bands" default:"431" description:"number of spectral bands"`
	Endmembers int     `long:"endmembers" default:"5" description:"number of endmembers"`
	Alpha      float64 `long:"alpha" default:"1" description:"Dirichlet concentration of the abundances"`
	Noise      float64 `long:"noise" default:"0.01" description:"standard deviation of additive Gaussian noise"`
	Peaks      int     `long:"peaks" default:"4" description:"absorption features per signature"`
	Seed       int64   `long:"seed" default:"42" description:"random seed"`
	Compress   bool    `long:"compress" description:"zlib-compress the arrays"`
	LogFormat  string  `long:"log-format" default:"text" description:"log format: text or json"`
}

func main() {
	var options Options
	parser := flags.NewParser(&options, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger, err := config.Logging{Level: "info", Format: options.LogFormat}.NewLogger(os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging options")
	}
	if err := generate(options, logger); err != nil {
		logger.WithError(err).Fatal("generation failed")
	}
}

func generate(o Options, logger logrus.FieldLogger) error {
	scene, err := synth.Generate(synth.Options{
		Height:     o.Height,
		Width:      o.Width,
		Bands:      o.Bands,
		Endmembers: o.Endmembers,
		Alpha:      o.Alpha,
		NoiseStd:   o.Noise,
		Peaks:      o.Peaks,
		Seed:       o.Seed,
	})
	if err != nil {
		return err
	}

	arrays, err := scene.Arrays(dataset.DefaultVariables())
	if err != nil {
		return err
	}
	if err := matfile.WriteFile(o.Output, matfile.Options{Compress: o.Compress, Description: "synthetic linear mixing scene"}, arrays...); err != nil {
		return err
	}

	for _, a := range arrays {
		logger.WithFields(logrus.Fields{
			"action":   "synth_write",
			"variable": a.Name,
			"dims":     a.DimString(),
		}).Info("array written")
	}
	logger.WithField("action", "synth_write").WithField("path", o.Output).Info("scene generated")
	return nil
}
