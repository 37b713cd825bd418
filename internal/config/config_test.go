package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unmix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.001, cfg.LearningRate)
	assert.Equal(t, "adam", cfg.Optimizer)
	assert.Equal(t, "syntheticImageNoisy", cfg.Variables.Cube)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
data: scenes/samson.mat
variables:
  cube: Y
  abundances: A
  endmembers: M
learning_rate: 0.01
baseline:
  enabled: true
logging:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "scenes/samson.mat", cfg.Data)
	assert.Equal(t, "Y", cfg.Variables.Cube)
	assert.Equal(t, "M", cfg.Variables.Endmembers)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.True(t, cfg.Baseline.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)

	// untouched keys keep their defaults
	assert.Equal(t, 4096, cfg.Baseline.MaxSamples)
	assert.Equal(t, "adam", cfg.Optimizer)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "learning_rat: 0.1\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Data = ""
	cfg.Variables.Abundances = ""
	cfg.Device = "tpu"
	cfg.Optimizer = "rmsprop"
	cfg.LearningRate = 0
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 7)
}

func TestValidateErrorOrderIsStable(t *testing.T) {
	cfg := Default()
	cfg.Variables.Cube = ""
	cfg.Variables.Abundances = ""
	cfg.Variables.Endmembers = ""

	want := []string{
		"cube variable name is empty",
		"abundances variable name is empty",
		"endmembers variable name is empty",
	}
	for i := 0; i < 20; i++ {
		var merr *multierror.Error
		require.True(t, errors.As(cfg.Validate(), &merr))
		got := make([]string, len(merr.Errors))
		for j, e := range merr.Errors {
			got[j] = e.Error()
		}
		require.Equal(t, want, got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Logging{Level: "debug", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("action", "test").Debug("hello")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "test", entry["action"])

	_, err = Logging{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
	_, err = Logging{Level: "loud", Format: "text"}.NewLogger(&buf)
	assert.Error(t, err)
}
