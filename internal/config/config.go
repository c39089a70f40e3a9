// Package config loads the application configuration: YAML file, then
// defaults for anything unset, then environment overrides. Structural
// validation happens here; each component re-validates its own section
// at construction.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"ratecast/domain/core"
	"ratecast/internal/driftscore"
	"ratecast/internal/ensemble"
	"ratecast/internal/logging"
	"ratecast/internal/trend"
	"ratecast/internal/walkforward"
)

// Config is the complete application configuration.
type Config struct {
	Logging    logging.Config            `yaml:"logging"`
	Series     SeriesConfig              `yaml:"series"`
	Models     ModelsConfig              `yaml:"models"`
	Calibrator ensemble.CalibratorConfig `yaml:"calibrator"`
	Validation walkforward.Config        `yaml:"validation"`
	Drift      DriftConfig               `yaml:"drift"`
	Trend      trend.Config              `yaml:"trend"`
	History    HistoryConfig             `yaml:"history"`
	API        APIConfig                 `yaml:"api"`
}

// SeriesConfig points at the historical rate series.
type SeriesConfig struct {
	// Source is a .xlsx or .csv file path. Which commands require it is
	// up to the command; the monitor runs without one.
	Source string `yaml:"source"`
	Sheet  string `yaml:"sheet" default:"Sheet1"`
	// DateColumn and ValueColumn override header detection for exports
	// with unusual column names.
	DateColumn  string `yaml:"date_column"`
	ValueColumn string `yaml:"value_column"`
}

// ModelsConfig selects and tunes the baseline model adapters.
type ModelsConfig struct {
	Enabled []string `yaml:"enabled" default:"[\"random_walk\",\"ewma\",\"ols_trend\"]"`
	// EWMAAlpha is the smoothing weight on the newest observation.
	EWMAAlpha float64 `yaml:"ewma_alpha" default:"0.3" validate:"gte=0,lte=1"`
	// TrendWindow is how many trailing observations the trend model fits.
	TrendWindow int `yaml:"trend_window" default:"60" validate:"gte=0"`
	// HoldoutFraction is the tail share reserved for error estimation.
	HoldoutFraction float64 `yaml:"holdout_fraction" default:"0.2" validate:"gt=0,lt=1"`
}

// DriftConfig sizes the comparison windows and tunes the scorer.
type DriftConfig struct {
	Scorer driftscore.Config `yaml:"scorer"`
	// BaselineWindow and TestWindow are observation counts taken from
	// the series tail: the last TestWindow observations against the
	// BaselineWindow before them.
	BaselineWindow int `yaml:"baseline_window" default:"90" validate:"gte=0"`
	TestWindow     int `yaml:"test_window" default:"30" validate:"gte=0"`
}

// HistoryConfig selects and tunes the history store backend.
type HistoryConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file duckdb postgres memory"`
	// Dir holds per-key history files for the file backend.
	Dir string `yaml:"dir" default:"data/history"`
	// DSN is the connection string for the duckdb and postgres backends.
	DSN string `yaml:"dsn"`
	// LockTimeout bounds how long one append waits on a contended key
	// before failing; a stuck writer must never wedge a scheduled job.
	LockTimeout       time.Duration `yaml:"lock_timeout" default:"5s"`
	LockRetryInterval time.Duration `yaml:"lock_retry_interval" default:"50ms"`
	// LockStaleAfter is the age past which a leftover lock file from a
	// crashed writer is broken.
	LockStaleAfter time.Duration `yaml:"lock_stale_after" default:"30s"`
}

// APIConfig tunes the monitor HTTP server.
type APIConfig struct {
	Addr string `yaml:"addr" default:":8080"`
	// RateLimit is requests per second per client, RateBurst the bucket
	// size.
	RateLimit float64 `yaml:"rate_limit" default:"5" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" default:"10" validate:"gte=0"`
}

// Load reads the file at path (empty means defaults only), fills
// defaults, applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments override the fields that differ
// between hosts without editing the file.
func applyEnvOverrides(cfg *Config) {
	cfg.Logging.Level = envOrDefault("RATECAST_LOG_LEVEL", cfg.Logging.Level)
	cfg.Series.Source = envOrDefault("RATECAST_SERIES_SOURCE", cfg.Series.Source)
	cfg.History.Backend = envOrDefault("RATECAST_HISTORY_BACKEND", cfg.History.Backend)
	cfg.History.Dir = envOrDefault("RATECAST_HISTORY_DIR", cfg.History.Dir)
	cfg.History.DSN = envOrDefault("RATECAST_HISTORY_DSN", cfg.History.DSN)
	cfg.API.Addr = envOrDefault("RATECAST_API_ADDR", cfg.API.Addr)
}

var structValidator = validator.New()

func validateConfig(cfg *Config) error {
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return core.NewConfigError(fe.Namespace(), fmt.Sprintf("failed %q (value %v)", fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("validate config: %w", err)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
