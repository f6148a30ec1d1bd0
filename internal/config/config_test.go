package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/merge"
)

const defaultBroker = "localhost:9092"

// load mirrors the command path: read every layer, then validate.
func load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvspl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Input)
	assert.Equal(t, "NVSPL", cfg.Output)
	assert.Equal(t, []string{FormatText}, cfg.Formats)
	assert.Equal(t, 1, cfg.Workers)
	assert.False(t, cfg.Recursive)
	assert.False(t, cfg.SiteFolders)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.HTTPAddr)

	assert.False(t, cfg.Met.Enabled)
	assert.Equal(t, 1, cfg.Met.TimeColumn)
	assert.Equal(t, 3, cfg.Met.WindColumn)
	assert.Equal(t, "mps", cfg.Met.Units)
	assert.Equal(t, "bin", cfg.Met.Method)
	assert.Equal(t, "end", cfg.Met.Stamp)
	assert.Equal(t, 90*time.Second, cfg.Met.NearestTolerance)
	assert.True(t, cfg.Met.Overwrite)
	assert.False(t, cfg.Met.Backfill)

	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{defaultBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, "nvspl-hourly", cfg.Kafka.Topic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("INPUT_PATH", "/data/SPL")
	t.Setenv("OUTPUT_PATH", "/data/NVSPL")
	t.Setenv("RECURSIVE", "true")
	t.Setenv("SITE_FOLDERS", "1")
	t.Setenv("OUTPUT_FORMATS", "txt, parquet")
	t.Setenv("WORKERS", "4")
	t.Setenv("DEVICE_TZ", "America/Denver")
	t.Setenv("MET_ENABLED", "true")
	t.Setenv("MET_PATH", "/data/met.csv")
	t.Setenv("MET_WIND_COLUMN", "5")
	t.Setenv("MET_METHOD", "nearest")
	t.Setenv("MET_NEAREST_TOLERANCE", "30s")
	t.Setenv("MET_OVERWRITE", "false")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "/data/SPL", cfg.Input)
	assert.Equal(t, "/data/NVSPL", cfg.Output)
	assert.True(t, cfg.Recursive)
	assert.True(t, cfg.SiteFolders)
	assert.True(t, cfg.HasFormat(FormatParquet))
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Met.Enabled)
	assert.Equal(t, "/data/met.csv", cfg.Met.Path)
	assert.Equal(t, 5, cfg.Met.WindColumn)
	assert.Equal(t, "nearest", cfg.Met.Method)
	assert.Equal(t, 30*time.Second, cfg.Met.NearestTolerance)
	assert.False(t, cfg.Met.Overwrite)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	loc, err := cfg.DeviceLocation()
	require.NoError(t, err)
	assert.Equal(t, "America/Denver", loc.String())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
input: SPL
output: out
site_folders: true
formats: [txt, parquet]
parquet_compression: zstd
met:
  enabled: true
  path: met.csv
  time_column: 0
  wind_column: 2
  units: mph
  convert_mph: true
  method: forward
  stamp: start
  delimiter: tab
kafka:
  topic: custom
`)

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "SPL", cfg.Input)
	assert.Equal(t, "out", cfg.Output)
	assert.True(t, cfg.SiteFolders)
	assert.Equal(t, "zstd", cfg.ParquetCompression)
	assert.Equal(t, 0, cfg.Met.TimeColumn)
	assert.Equal(t, 2, cfg.Met.WindColumn)
	assert.Equal(t, "custom", cfg.Kafka.Topic)
	// Unset keys keep their defaults.
	assert.Equal(t, 90*time.Second, cfg.Met.NearestTolerance)
	assert.True(t, cfg.Met.Overwrite)

	lo, err := cfg.Met.LoaderOptions()
	require.NoError(t, err)
	assert.Equal(t, '\t', lo.Delimiter)
	assert.Equal(t, "mph", lo.Units)
	assert.True(t, lo.ConvertMPH)

	mo, err := cfg.Met.MergeOptions()
	require.NoError(t, err)
	assert.Equal(t, merge.MethodForward, mo.Method)
	assert.Equal(t, merge.StampStart, mo.Stamp)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "output: from-file\nworkers: 2\n")
	t.Setenv("OUTPUT_PATH", "from-env")

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Output)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty", "  \n", "config file is empty"},
		{"unknown key", "inptu: SPL\n", "decode config"},
		{"bad yaml", "met: [\n", "decode config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"WORKERS", "many"},
		{"RECURSIVE", "maybe"},
		{"MET_NEAREST_TOLERANCE", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"missing txt", func(c *Config) { c.Formats = []string{FormatParquet} }, "txt"},
		{"unknown format", func(c *Config) { c.Formats = []string{FormatText, "csv"} }, "csv"},
		{"only unknown format", func(c *Config) { c.Formats = []string{"csv"} }, "unknown output format \"csv\""},
		{"unknown compression", func(c *Config) { c.ParquetCompression = "lz4" }, "lz4"},
		{"bad device tz", func(c *Config) { c.DeviceTZ = "Mars/Olympus" }, "device_tz"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"met without path", func(c *Config) { c.Met.Enabled = true }, "met.path"},
		{"negative column", func(c *Config) { c.Met.WindColumn = -1 }, "columns"},
		{"bad units", func(c *Config) { c.Met.Units = "knots" }, "units"},
		{"bad method", func(c *Config) { c.Met.Method = "linear" }, "merge method"},
		{"bad stamp", func(c *Config) { c.Met.Stamp = "middle" }, "stamp"},
		{"bad delimiter", func(c *Config) { c.Met.Delimiter = "|" }, "delimiter"},
		{"bad met tz", func(c *Config) { c.Met.SourceTZ = "Nowhere/Else" }, "Nowhere/Else"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	require.NoError(t, Default().Validate())
}

func TestDelimiterRune(t *testing.T) {
	for in, want := range map[string]rune{"": 0, ",": ',', "tab": '\t', `\t`: '\t', "semicolon": ';'} {
		m := MetConfig{Delimiter: in}
		got, err := m.DelimiterRune()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	t.Setenv("MET_ENABLED", "true")

	cfg, err := Read("")
	require.NoError(t, err)
	assert.True(t, cfg.Met.Enabled)
	require.Error(t, cfg.Validate())

	cfg.Met.Path = "met.csv"
	assert.NoError(t, cfg.Validate())
}
