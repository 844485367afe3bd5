// Package config loads backtest run files and environment settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
)

// ErrInvalidConfig is returned when a run file fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level run file.
type Config struct {
	Parallelism int           `yaml:"parallelism"`
	Runs        []RunConfig   `yaml:"runs"`
	Storage     StorageConfig `yaml:"storage"`
	Export      S3Config      `yaml:"export"`
	Log         LogConfig     `yaml:"log"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// RunConfig describes one curve/series backtest.
type RunConfig struct {
	Name     string        `yaml:"name"`
	SeriesID string        `yaml:"series_id"`
	Driver   domain.Driver `yaml:"driver"` // defaults from the curve kind
	FeeRate  float64       `yaml:"fee_rate"`
	From     int64         `yaml:"from"` // inclusive, 0 for unbounded
	To       int64         `yaml:"to"`   // inclusive, 0 for unbounded
	Curve    curve.Params  `yaml:"curve"`
}

// StorageConfig selects the stores.
type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// S3Config configures report export.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables /metrics
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; existing variables are not overridden.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML run file, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML run file, applies environment overrides and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Parallelism: 4}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv returns a config with no runs, populated from the environment only.
func FromEnv() *Config {
	cfg := &Config{Parallelism: 4}
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides file settings with non-empty environment variables.
func (c *Config) ApplyEnv() {
	override(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	override(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	override(&c.Log.Level, "LOG_LEVEL")
	override(&c.Log.File, "LOG_FILE")
	override(&c.Metrics.Addr, "METRICS_ADDR")
	override(&c.Export.Bucket, "S3_BUCKET")
	override(&c.Export.Region, "AWS_REGION")
	override(&c.Export.Endpoint, "S3_ENDPOINT")
	override(&c.Export.AccessKeyID, "AWS_ACCESS_KEY_ID")
	override(&c.Export.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	if c.Export.Bucket != "" {
		c.Export.Enabled = true
	}
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks every run and fills in default drivers. Curve parameters
// are checked by building the curve once.
func (c *Config) Validate() error {
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1, got %d", ErrInvalidConfig, c.Parallelism)
	}
	seen := make(map[string]bool, len(c.Runs))
	for i := range c.Runs {
		run := &c.Runs[i]
		if run.Name == "" {
			run.Name = fmt.Sprintf("%s-%s-%d", run.Curve.Kind, run.SeriesID, i)
		}
		if seen[run.Name] {
			return fmt.Errorf("%w: duplicate run name %q", ErrInvalidConfig, run.Name)
		}
		seen[run.Name] = true
		if err := run.validate(); err != nil {
			return fmt.Errorf("run %q: %w", run.Name, err)
		}
	}
	if c.Export.Enabled && c.Export.Bucket == "" {
		return fmt.Errorf("%w: export.bucket is required when export is enabled", ErrInvalidConfig)
	}
	return nil
}

func (r *RunConfig) validate() error {
	if r.SeriesID == "" {
		return fmt.Errorf("%w: series_id is required", ErrInvalidConfig)
	}
	if r.Driver == "" {
		r.Driver = DefaultDriver(r.Curve.Kind)
	}
	switch r.Driver {
	case domain.DriverAMM:
		if !r.Curve.Kind.IsTimeDecaying() {
			return fmt.Errorf("%w: amm driver needs a time-decaying curve, got %q", ErrInvalidConfig, r.Curve.Kind)
		}
	case domain.DriverSAMM:
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, r.Driver)
	}
	if r.FeeRate < 0 || r.FeeRate >= 1 {
		return fmt.Errorf("%w: fee_rate must be in [0, 1), got %g", ErrInvalidConfig, r.FeeRate)
	}
	if r.From != 0 && r.To != 0 && r.From > r.To {
		return fmt.Errorf("%w: from %d after to %d", ErrInvalidConfig, r.From, r.To)
	}
	if _, err := curve.New(r.Curve); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultDriver is amm for time-decaying curves and samm otherwise.
func DefaultDriver(kind curve.Kind) domain.Driver {
	if kind.IsTimeDecaying() {
		return domain.DriverAMM
	}
	return domain.DriverSAMM
}
