package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a configuration that passes validation, for use as a
// mutation base in the validation tests.
func validConfig() *Config {
	return &Config{
		Pair: "btcusd",
		Dataset: DatasetConfig{
			Slug:        "mczielinski/bitcoin-historical-data",
			File:        "btcusd_1-min_data.csv",
			WorkDir:     ".",
			ParquetFile: "btcusd_1-min_data.parquet",
		},
		Sync: SyncConfig{
			Policy:       "buffer",
			SafetyBuffer: 30 * time.Minute,
			ChunkSpan:    30000,
		},
		Bitstamp: BitstampConfig{
			BaseURL:        "https://www.bitstamp.net",
			RequestTimeout: 60 * time.Second,
			RequestPause:   time.Second,
		},
		Kaggle: KaggleConfig{
			BaseURL: "https://www.kaggle.com/api/v1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "btcusd", cfg.Pair)
	assert.Equal(t, "mczielinski/bitcoin-historical-data", cfg.Dataset.Slug)
	assert.Equal(t, "btcusd_1-min_data.csv", cfg.Dataset.File)
	assert.Equal(t, ".", cfg.Dataset.WorkDir)
	assert.False(t, cfg.Dataset.Publish)
	assert.False(t, cfg.Dataset.ParquetExport)

	assert.Equal(t, "buffer", cfg.Sync.Policy)
	assert.Equal(t, 30*time.Minute, cfg.Sync.SafetyBuffer)
	assert.Equal(t, int64(30000), cfg.Sync.ChunkSpan)

	assert.Equal(t, "https://www.bitstamp.net", cfg.Bitstamp.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Bitstamp.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Bitstamp.RequestPause)

	assert.Equal(t, "https://www.kaggle.com/api/v1", cfg.Kaggle.BaseURL)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("DATASYNC_PAIR", "ethusd")
	t.Setenv("DATASYNC_SYNC_POLICY", "whole-day")
	t.Setenv("DATASYNC_SYNC_CHUNK_SPAN", "60000")
	t.Setenv("DATASYNC_SYNC_SAFETY_BUFFER", "45m")
	t.Setenv("DATASYNC_LOGGING_LEVEL", "debug")
	t.Setenv("KAGGLE_USERNAME", "someone")
	t.Setenv("KAGGLE_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ethusd", cfg.Pair)
	assert.Equal(t, "whole-day", cfg.Sync.Policy)
	assert.Equal(t, int64(60000), cfg.Sync.ChunkSpan)
	assert.Equal(t, 45*time.Minute, cfg.Sync.SafetyBuffer)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "someone", cfg.Kaggle.Username)
	assert.Equal(t, "secret", cfg.Kaggle.Key)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
pair: ltcusd
dataset:
  slug: someone/litecoin-data
  file: ltcusd_1-min_data.csv
sync:
  policy: whole-day
  chunk_span: 43200
bitstamp:
  request_pause: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ltcusd", cfg.Pair)
	assert.Equal(t, "someone/litecoin-data", cfg.Dataset.Slug)
	assert.Equal(t, "ltcusd_1-min_data.csv", cfg.Dataset.File)
	assert.Equal(t, "whole-day", cfg.Sync.Policy)
	assert.Equal(t, int64(43200), cfg.Sync.ChunkSpan)
	assert.Equal(t, 2*time.Second, cfg.Bitstamp.RequestPause)

	// Unset keys still fall back to defaults.
	assert.Equal(t, ".", cfg.Dataset.WorkDir)
	assert.Equal(t, 60*time.Second, cfg.Bitstamp.RequestTimeout)
}

func TestLoad_InvalidPolicyRejected(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATASYNC_SYNC_POLICY", "hourly")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.policy must be one of")
}

func TestConfigValidation(t *testing.T) {
	t.Run("valid config passes validation", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing pair fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pair = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pair is required")
	})

	t.Run("slug without owner fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Dataset.Slug = "bitcoin-historical-data"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner/name")
	})

	t.Run("zero chunk span fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sync.ChunkSpan = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.chunk_span must be greater than 0")
	})

	t.Run("chunk span over request maximum fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sync.ChunkSpan = MaxChunkSpanSeconds + 60
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not exceed")
	})

	t.Run("chunk span at request maximum passes", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sync.ChunkSpan = MaxChunkSpanSeconds
		assert.NoError(t, cfg.Validate())
	})

	t.Run("chunk span off the bar grid fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sync.ChunkSpan = 90
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple of the 60s bar interval")
	})

	t.Run("negative request pause fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bitstamp.RequestPause = -time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bitstamp.request_pause")
	})

	t.Run("invalid log level fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.level must be one of")
	})

	t.Run("file output requires file path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Output = "file"
		cfg.Logging.FilePath = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.file_path is required")
	})

	t.Run("parquet export requires filename", func(t *testing.T) {
		cfg := validConfig()
		cfg.Dataset.ParquetExport = true
		cfg.Dataset.ParquetFile = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dataset.parquet_file is required")
	})
}
