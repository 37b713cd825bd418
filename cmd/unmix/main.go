package main

import (
	"fmt"
	"os"

	"github.com/FlavioCFOliveira/HSUnmix/internal/config"
	flags "github.com/jessevdk/go-flags"
)

// Options are the command line flags. Zero values leave the configuration alone.
type Options struct {
	ConfigFile   string  `long:"config" description:"path to a YAML config file"`
	Data         string  `long:"data" description:"MAT-file holding the scene (default: data/synthetic_scene.mat)"`
	Device       string  `long:"device" description:"compute device: auto, cpu or gpu"`
	LearningRate float64 `long:"lr" description:"optimizer learning rate (default: 0.001)"`
	Optimizer    string  `long:"optimizer" description:"optimizer: adam or sgd"`
	Seed         *int64  `long:"seed" description:"seed for parameter initialisation (default: 42)"`
	Evaluate     bool    `long:"evaluate" description:"run one forward pass and score it against the ground truth"`
	Baseline     bool    `long:"baseline" description:"estimate endmembers with k-means for comparison"`
	OutputDir    string  `long:"output-dir" description:"write images, a CSV report and the estimates to this directory"`
	LogLevel     string  `long:"log-level" description:"log level: debug, info, warn or error"`
	LogFormat    string  `long:"log-format" description:"log format: text or json"`
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

	cfg, err := buildConfig(options)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("unmixing failed")
		os.Exit(1)
	}
}

// buildConfig layers defaults, the optional config file and the flags.
func buildConfig(o Options) (config.Config, error) {
	cfg := config.Default()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(o.ConfigFile); err != nil {
			return cfg, err
		}
	}

	if o.Data != "" {
		cfg.Data = o.Data
	}
	if o.Device != "" {
		cfg.Device = o.Device
	}
	if o.LearningRate != 0 {
		cfg.LearningRate = o.LearningRate
	}
	if o.Optimizer != "" {
		cfg.Optimizer = o.Optimizer
	}
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if o.Evaluate {
		cfg.Evaluate = true
	}
	if o.Baseline {
		cfg.Baseline.Enabled = true
	}
	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}

	return cfg, cfg.Validate()
}
