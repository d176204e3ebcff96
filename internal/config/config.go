package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"jetfakes/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Run     RunConfig
	Input   InputConfig
	Paths   PathConfig
	Store   StoreConfig
	Applier ApplierConfig
	Batch   BatchConfig
	Server  ServerConfig
	Logging LoggingConfig
}

// RunConfig identifies one channel/period fraction run
type RunConfig struct {
	InputDir string
	Period   string
	Suffix   string
	Channel  string // "et" or "mt"; empty means detect from the tree name
}

// InputConfig describes the per-sample event stores
type InputConfig struct {
	Format  string   // csv, xlsx or sqlite
	Samples []string // empty means every registered sample
}

// PathConfig holds the fraction store and staging locations
type PathConfig struct {
	FractionDir string
	StagingDir  string
}

// StoreConfig selects the fraction store backend
type StoreConfig struct {
	Driver string // sqlite3 or postgres
	DSN    string // postgres connection string
}

// ApplierConfig controls the external weight applier step
type ApplierConfig struct {
	Enabled            bool
	Binary             string
	FakeFactorDir      string
	IncludeSystematics bool
}

// BatchConfig bounds the batch dispatcher
type BatchConfig struct {
	MaxParallel int
}

// ServerConfig holds lookup service settings
type ServerConfig struct {
	Addr    string
	GinMode string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// Supported input formats and store drivers
var (
	InputFormats = []string{"csv", "xlsx", "sqlite"}
	StoreDrivers = []string{"sqlite3", "postgres"}
)

// Load reads configuration from environment variables and validates the
// settings every command shares. Run-specific fields are checked by ValidateRun.
func Load() (*Config, error) {
	cfg := &Config{
		Run: RunConfig{
			InputDir: getEnvOrDefault("JETFAKES_INPUT_DIR", ""),
			Period:   getEnvOrDefault("JETFAKES_PERIOD", ""),
			Suffix:   getEnvOrDefault("JETFAKES_SUFFIX", ""),
			Channel:  getEnvOrDefault("JETFAKES_CHANNEL", ""),
		},
		Input: InputConfig{
			Format:  strings.ToLower(getEnvOrDefault("JETFAKES_INPUT_FORMAT", "csv")),
			Samples: getEnvListOrDefault("JETFAKES_SAMPLES", nil),
		},
		Paths: PathConfig{
			FractionDir: getEnvOrDefault("JETFAKES_OUTPUT_DIR", filepath.Join("Output", "fake_fractions")),
			StagingDir:  getEnvOrDefault("JETFAKES_STAGING_DIR", "tmp"),
		},
		Store: StoreConfig{
			Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
			DSN:    getEnvOrDefault("DATABASE_URL", ""),
		},
		Applier: ApplierConfig{
			Enabled:            getEnvBoolOrDefault("JETFAKES_APPLIER_ENABLED", false),
			Binary:             getEnvOrDefault("JETFAKES_APPLIER_BIN", filepath.Join(".", "bin", "create-fakes")),
			FakeFactorDir:      getEnvOrDefault("JETFAKES_FAKE_FACTOR_DIR", ""),
			IncludeSystematics: getEnvBoolOrDefault("JETFAKES_SYST", false),
		},
		Batch: BatchConfig{
			MaxParallel: getEnvIntOrDefault("JETFAKES_MAX_PARALLEL", 4),
		},
		Server: ServerConfig{
			Addr:    getEnvOrDefault("JETFAKES_LISTEN_ADDR", ":8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Logging: LoggingConfig{
			Level: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks the settings shared by every command
func (c *Config) Validate() error {
	if !contains(InputFormats, c.Input.Format) {
		return errors.ConfigInvalid(fmt.Sprintf("JETFAKES_INPUT_FORMAT must be one of %v, got %q", InputFormats, c.Input.Format))
	}
	if !contains(StoreDrivers, c.Store.Driver) {
		return errors.ConfigInvalid(fmt.Sprintf("DATABASE_DRIVER must be one of %v, got %q", StoreDrivers, c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return errors.ConfigInvalid("DATABASE_URL is required when DATABASE_DRIVER=postgres")
	}
	if c.Run.Channel != "" && c.Run.Channel != "et" && c.Run.Channel != "mt" {
		return errors.ConfigInvalid(fmt.Sprintf("JETFAKES_CHANNEL must be et or mt, got %q", c.Run.Channel))
	}
	if c.Batch.MaxParallel < 1 {
		return errors.ConfigInvalid("JETFAKES_MAX_PARALLEL must be at least 1")
	}
	if c.Paths.FractionDir == "" || c.Paths.StagingDir == "" {
		return errors.ConfigInvalid("output and staging directories are required")
	}
	return nil
}

// ValidateRun checks the fields a fraction run needs
func (c *Config) ValidateRun() error {
	if c.Run.InputDir == "" {
		return errors.ConfigInvalid("input directory is required (JETFAKES_INPUT_DIR or --input)")
	}
	if c.Run.Period == "" {
		return errors.ConfigInvalid("period is required (JETFAKES_PERIOD or --year)")
	}
	if c.Run.Suffix == "" {
		return errors.ConfigInvalid("suffix is required (JETFAKES_SUFFIX or --suffix)")
	}
	return c.ValidateBatch()
}

// ValidateBatch checks the settings shared by every run of a batch
func (c *Config) ValidateBatch() error {
	if c.Applier.Enabled && c.Applier.FakeFactorDir == "" {
		return errors.ConfigInvalid("JETFAKES_FAKE_FACTOR_DIR is required when the weight applier is enabled")
	}
	if c.Applier.Enabled && c.Store.Driver == "postgres" {
		return errors.ConfigInvalid("the weight applier reads a sqlite3 fraction store; DATABASE_DRIVER=postgres cannot be combined with it")
	}
	return c.Validate()
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
