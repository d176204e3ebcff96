package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"JETFAKES_INPUT_DIR", "JETFAKES_PERIOD", "JETFAKES_SUFFIX", "JETFAKES_CHANNEL",
		"JETFAKES_INPUT_FORMAT", "JETFAKES_SAMPLES", "JETFAKES_OUTPUT_DIR", "JETFAKES_STAGING_DIR",
		"DATABASE_DRIVER", "DATABASE_URL", "JETFAKES_MAX_PARALLEL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Input.Format)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, filepath.Join("Output", "fake_fractions"), cfg.Paths.FractionDir)
	assert.Equal(t, 4, cfg.Batch.MaxParallel)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Nil(t, cfg.Input.Samples)

	err = cfg.ValidateRun()
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JETFAKES_INPUT_DIR", "/data/mt2017")
	t.Setenv("JETFAKES_PERIOD", "2017")
	t.Setenv("JETFAKES_SUFFIX", "nominal")
	t.Setenv("JETFAKES_CHANNEL", "mt")
	t.Setenv("JETFAKES_INPUT_FORMAT", "XLSX")
	t.Setenv("JETFAKES_SAMPLES", "W, TTJ ,data_obs,,embed")
	t.Setenv("JETFAKES_OUTPUT_DIR", "/out")
	t.Setenv("JETFAKES_MAX_PARALLEL", "2")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateRun())

	assert.Equal(t, "xlsx", cfg.Input.Format)
	assert.Equal(t, []string{"W", "TTJ", "data_obs", "embed"}, cfg.Input.Samples)
	assert.Equal(t, 2, cfg.Batch.MaxParallel)
	assert.Equal(t, "/out", cfg.Paths.FractionDir)
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		return &Config{
			Run:     RunConfig{InputDir: "in", Period: "2016", Suffix: "s"},
			Input:   InputConfig{Format: "csv"},
			Paths:   PathConfig{FractionDir: "out", StagingDir: "tmp"},
			Store:   StoreConfig{Driver: "sqlite3"},
			Batch:   BatchConfig{MaxParallel: 1},
			Logging: LoggingConfig{Level: "INFO"},
		}
	}
	require.NoError(t, base().ValidateRun())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Input.Format = "root" }},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"bad channel", func(c *Config) { c.Run.Channel = "tt" }},
		{"no parallelism", func(c *Config) { c.Batch.MaxParallel = 0 }},
		{"missing period", func(c *Config) { c.Run.Period = "" }},
		{"applier without fake factors", func(c *Config) { c.Applier.Enabled = true }},
		{"applier with postgres", func(c *Config) {
			c.Applier = ApplierConfig{Enabled: true, FakeFactorDir: "ff"}
			c.Store = StoreConfig{Driver: "postgres", DSN: "postgres://localhost/fakes"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.ValidateRun()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
