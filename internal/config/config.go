// Package config provides centralized configuration for the dataset sync
// pipeline. Configuration is loaded with Viper from an optional config.yaml
// and overridden by DATASYNC_* environment variables, then validated before
// any component is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

// MaxChunkSpanSeconds is the widest fetch window a single upstream request
// can cover: 1000 rows of minute bars.
const MaxChunkSpanSeconds = 1000 * models.BarIntervalSeconds

// Config represents the complete application configuration.
type Config struct {
	// Pair is the currency pair tracked by the dataset (e.g. "btcusd")
	Pair string `mapstructure:"pair"`

	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Bitstamp BitstampConfig `mapstructure:"bitstamp"`
	Kaggle   KaggleConfig   `mapstructure:"kaggle"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatasetConfig identifies the published dataset and the local working copy.
type DatasetConfig struct {
	Slug          string `mapstructure:"slug"`           // Kaggle dataset slug ("owner/name")
	File          string `mapstructure:"file"`           // CSV filename inside the dataset
	WorkDir       string `mapstructure:"work_dir"`       // directory for download, merge, and rewrite
	Publish       bool   `mapstructure:"publish"`        // push a new dataset version after rewrite
	ParquetExport bool   `mapstructure:"parquet_export"` // write a parquet mirror next to the CSV
	ParquetFile   string `mapstructure:"parquet_file"`   // parquet filename, defaults beside File
}

// SyncConfig controls gap detection and chunked fetching.
type SyncConfig struct {
	Policy       string        `mapstructure:"policy"`        // gap policy: "buffer" or "whole-day"
	SafetyBuffer time.Duration `mapstructure:"safety_buffer"` // distance kept from now in buffer mode
	ChunkSpan    int64         `mapstructure:"chunk_span"`    // seconds of bar data per request window
}

// BitstampConfig configures the upstream price API client.
type BitstampConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RequestPause   time.Duration `mapstructure:"request_pause"` // fixed pause between consecutive requests, 0 disables pacing
}

// KaggleConfig configures the dataset store client. Credentials fall back to
// the KAGGLE_USERNAME and KAGGLE_KEY environment variables used by the
// official Kaggle tooling.
type KaggleConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Key      string `mapstructure:"key"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // log level: debug, info, warn, error
	Format     string `mapstructure:"format"`      // log format: json, text
	Output     string `mapstructure:"output"`      // output: stdout, stderr, file
	FilePath   string `mapstructure:"file_path"`   // log file path when output is "file"
	MaxSize    int    `mapstructure:"max_size"`    // maximum log file size in MB
	MaxBackups int    `mapstructure:"max_backups"` // maximum rotated file count
	MaxAge     int    `mapstructure:"max_age"`     // maximum log file age in days
	Compress   bool   `mapstructure:"compress"`    // compress rotated files
}

// Load reads configuration from config.yaml (searched in the working
// directory and ./config) and DATASYNC_* environment variables. A missing
// config file is not an error; defaults reproduce the production deployment
// of the btcusd dataset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Support environment overrides with dot notation
	// (e.g. DATASYNC_SYNC_POLICY, DATASYNC_DATASET_SLUG)
	v.SetEnvPrefix("DATASYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Kaggle tooling convention takes precedence over empty config values.
	if cfg.Kaggle.Username == "" {
		cfg.Kaggle.Username = os.Getenv("KAGGLE_USERNAME")
	}
	if cfg.Kaggle.Key == "" {
		cfg.Kaggle.Key = os.Getenv("KAGGLE_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pair", "btcusd")

	v.SetDefault("dataset.slug", "mczielinski/bitcoin-historical-data")
	v.SetDefault("dataset.file", "btcusd_1-min_data.csv")
	v.SetDefault("dataset.work_dir", ".")
	v.SetDefault("dataset.publish", false)
	v.SetDefault("dataset.parquet_export", false)
	v.SetDefault("dataset.parquet_file", "btcusd_1-min_data.parquet")

	v.SetDefault("sync.policy", "buffer")
	v.SetDefault("sync.safety_buffer", "30m")
	// Half the hard request maximum, tolerant of inclusive upstream bounds.
	v.SetDefault("sync.chunk_span", MaxChunkSpanSeconds/2)

	v.SetDefault("bitstamp.base_url", "https://www.bitstamp.net")
	v.SetDefault("bitstamp.request_timeout", "60s")
	v.SetDefault("bitstamp.request_pause", "1s")

	v.SetDefault("kaggle.base_url", "https://www.kaggle.com/api/v1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.compress", true)
}

// Validate checks the configuration for consistency and required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Pair == "" {
		errs = append(errs, "pair is required")
	}

	if c.Dataset.Slug == "" {
		errs = append(errs, "dataset.slug is required")
	} else if !strings.Contains(c.Dataset.Slug, "/") {
		errs = append(errs, "dataset.slug must have the form owner/name")
	}
	if c.Dataset.File == "" {
		errs = append(errs, "dataset.file is required")
	}
	if c.Dataset.WorkDir == "" {
		errs = append(errs, "dataset.work_dir is required")
	}
	if c.Dataset.ParquetExport && c.Dataset.ParquetFile == "" {
		errs = append(errs, "dataset.parquet_file is required when parquet export is enabled")
	}

	switch c.Sync.Policy {
	case "buffer", "whole-day":
	default:
		errs = append(errs, "sync.policy must be one of: buffer, whole-day")
	}
	if c.Sync.SafetyBuffer < 0 {
		errs = append(errs, "sync.safety_buffer must not be negative")
	}
	if c.Sync.ChunkSpan <= 0 {
		errs = append(errs, "sync.chunk_span must be greater than 0")
	} else {
		if c.Sync.ChunkSpan > MaxChunkSpanSeconds {
			errs = append(errs, fmt.Sprintf("sync.chunk_span must not exceed %d seconds (1000 rows per request)", MaxChunkSpanSeconds))
		}
		if c.Sync.ChunkSpan%models.BarIntervalSeconds != 0 {
			errs = append(errs, "sync.chunk_span must be a multiple of the 60s bar interval")
		}
	}

	if c.Bitstamp.BaseURL == "" {
		errs = append(errs, "bitstamp.base_url is required")
	}
	if c.Bitstamp.RequestTimeout <= 0 {
		errs = append(errs, "bitstamp.request_timeout must be greater than 0")
	}
	if c.Bitstamp.RequestPause < 0 {
		errs = append(errs, "bitstamp.request_pause must not be negative")
	}

	if c.Kaggle.BaseURL == "" {
		errs = append(errs, "kaggle.base_url is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errs = append(errs, "logging.format must be one of: json, text")
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			errs = append(errs, "logging.file_path is required when output is 'file'")
		}
	default:
		errs = append(errs, "logging.output must be one of: stdout, stderr, file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
