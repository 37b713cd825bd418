// Package config holds the run configuration of the unmixing tools. Values come
// from defaults, then an optional YAML file, then command line flags.
package config

import (
	"io"
	"math"
	"os"
	"strings"

	"github.com/FlavioCFOliveira/HSUnmix/internal/dataset"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultDataPath is where the benchmark scene is expected when none is given.
const DefaultDataPath = "data/synthetic_scene.mat"

// Config is the complete run configuration.
type Config struct {
	Data      string            `yaml:"data"`
	Variables dataset.Variables `yaml:"variables"`
	Device    string            `yaml:"device"`
	Seed      int64             `yaml:"seed"`

	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`

	Evaluate  bool     `yaml:"evaluate"`
	Baseline  Baseline `yaml:"baseline"`
	OutputDir string   `yaml:"output_dir"`

	Logging Logging `yaml:"logging"`
}

// Baseline configures the clustering comparison.
type Baseline struct {
	Enabled    bool `yaml:"enabled"`
	MaxSamples int  `yaml:"max_samples"`
}

// Logging selects the log level and output format.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Data:         DefaultDataPath,
		Variables:    dataset.DefaultVariables(),
		Device:       "auto",
		Seed:         42,
		Optimizer:    "adam",
		LearningRate: 0.001,
		Baseline:     Baseline{MaxSamples: 4096},
		Logging:      Logging{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.Data) == "" {
		result = multierror.Append(result, errors.New("data path is empty"))
	}
	for _, v := range []struct{ name, value string }{
		{"cube", c.Variables.Cube},
		{"abundances", c.Variables.Abundances},
		{"endmembers", c.Variables.Endmembers},
	} {
		if v.value == "" {
			result = multierror.Append(result, errors.Errorf("%s variable name is empty", v.name))
		}
	}
	switch strings.ToLower(c.Device) {
	case "", "auto", "cpu", "gpu", "cuda", "metal":
	default:
		result = multierror.Append(result, errors.Errorf("unknown device %q", c.Device))
	}
	switch strings.ToLower(c.Optimizer) {
	case "", "adam", "sgd":
	default:
		result = multierror.Append(result, errors.Errorf("unknown optimizer %q", c.Optimizer))
	}
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		result = multierror.Append(result, errors.Errorf("learning rate %v must be positive", c.LearningRate))
	}
	if c.Baseline.MaxSamples < 0 {
		result = multierror.Append(result, errors.Errorf("baseline max samples %d must not be negative", c.Baseline.MaxSamples))
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "log level"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		result = multierror.Append(result, errors.Errorf("unknown log format %q", c.Logging.Format))
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// NewLogger builds a logger writing to out.
func (l Logging) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", l.Format)
	}
	return logger, nil
}
