package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/merge"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/met"
)

// Output formats.
const (
	FormatText    = "txt"
	FormatParquet = "parquet"
)

var parquetCompressions = []string{"snappy", "zstd", "gzip", "none"}

// Config holds all converter settings. Values come from defaults, an optional
// YAML file, environment variables and finally command-line flags.
type Config struct {
	Input              string        `yaml:"input"`
	Output             string        `yaml:"output"`
	Recursive          bool          `yaml:"recursive"`
	SiteFolders        bool          `yaml:"site_folders"`
	Formats            []string      `yaml:"formats"`
	ParquetCompression string        `yaml:"parquet_compression"`
	DeviceTZ           string        `yaml:"device_tz"`
	Workers            int           `yaml:"workers"`
	Met                MetConfig     `yaml:"met"`
	Kafka              KafkaConfig   `yaml:"kafka"`
	HTTPAddr           string        `yaml:"http_addr"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// MetConfig describes the MET wind CSV and how it is merged.
type MetConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Path             string        `yaml:"path"`
	TimeColumn       int           `yaml:"time_column"`
	WindColumn       int           `yaml:"wind_column"`
	TimeLayout       string        `yaml:"time_layout"`
	Delimiter        string        `yaml:"delimiter"`
	SourceTZ         string        `yaml:"source_tz"`
	TargetTZ         string        `yaml:"target_tz"`
	Units            string        `yaml:"units"`
	ConvertMPH       bool          `yaml:"convert_mph"`
	Method           string        `yaml:"method"`
	Stamp            string        `yaml:"stamp"`
	Backfill         bool          `yaml:"backfill_before_first"`
	NearestTolerance time.Duration `yaml:"nearest_tolerance"`
	Overwrite        bool          `yaml:"overwrite"`
	Interval         time.Duration `yaml:"interval"`
}

// KafkaConfig enables publishing written hour buckets.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Input:              ".",
		Output:             "NVSPL",
		Formats:            []string{FormatText},
		ParquetCompression: "snappy",
		Workers:            1,
		Met: MetConfig{
			TimeColumn:       1,
			WindColumn:       3,
			Units:            met.UnitsMPS,
			Method:           string(merge.MethodBin),
			Stamp:            string(merge.StampEnd),
			NearestTolerance: 90 * time.Second,
			Overwrite:        true,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "nvspl-hourly",
		},
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Read builds a Config from defaults, the YAML file at path (skipped when
// empty), and environment variables. It does not validate, so callers can
// layer command-line flags on top before calling Validate.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return errors.New("config file is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Input = sharedcfg.EnvOrDefault("INPUT_PATH", c.Input)
	c.Output = sharedcfg.EnvOrDefault("OUTPUT_PATH", c.Output)
	c.ParquetCompression = sharedcfg.EnvOrDefault("PARQUET_COMPRESSION", c.ParquetCompression)
	c.DeviceTZ = sharedcfg.EnvOrDefault("DEVICE_TZ", c.DeviceTZ)
	c.HTTPAddr = sharedcfg.EnvOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", c.LogFormat)
	if v := os.Getenv("OUTPUT_FORMATS"); v != "" {
		c.Formats = splitList(v)
	}

	m := &c.Met
	m.Path = sharedcfg.EnvOrDefault("MET_PATH", m.Path)
	m.TimeLayout = sharedcfg.EnvOrDefault("MET_TIME_LAYOUT", m.TimeLayout)
	m.Delimiter = sharedcfg.EnvOrDefault("MET_DELIMITER", m.Delimiter)
	m.SourceTZ = sharedcfg.EnvOrDefault("MET_SOURCE_TZ", m.SourceTZ)
	m.TargetTZ = sharedcfg.EnvOrDefault("MET_TARGET_TZ", m.TargetTZ)
	m.Units = sharedcfg.EnvOrDefault("MET_UNITS", m.Units)
	m.Method = sharedcfg.EnvOrDefault("MET_METHOD", m.Method)
	m.Stamp = sharedcfg.EnvOrDefault("MET_STAMP", m.Stamp)

	c.Kafka.Topic = sharedcfg.EnvOrDefault("KAFKA_TOPIC", c.Kafka.Topic)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = sharedcfg.ParseBrokers(v)
	}

	if os.Getenv("SHUTDOWN_TIMEOUT") != "" {
		d, err := sharedcfg.ParseShutdownTimeout()
		if err != nil {
			return err
		}
		c.ShutdownTimeout = d
	}

	var errs []error
	envBool("RECURSIVE", &c.Recursive, &errs)
	envBool("SITE_FOLDERS", &c.SiteFolders, &errs)
	envInt("WORKERS", &c.Workers, &errs)
	envBool("MET_ENABLED", &m.Enabled, &errs)
	envInt("MET_TIME_COLUMN", &m.TimeColumn, &errs)
	envInt("MET_WIND_COLUMN", &m.WindColumn, &errs)
	envBool("MET_CONVERT_MPH", &m.ConvertMPH, &errs)
	envBool("MET_BACKFILL", &m.Backfill, &errs)
	envDuration("MET_NEAREST_TOLERANCE", &m.NearestTolerance, &errs)
	envBool("MET_OVERWRITE", &m.Overwrite, &errs)
	envDuration("MET_INTERVAL", &m.Interval, &errs)
	envBool("KAFKA_ENABLED", &c.Kafka.Enabled, &errs)
	return errors.Join(errs...)
}

// Validate rejects settings the converter cannot honour.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input path is required")
	}
	if c.Output == "" {
		return errors.New("output path is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	for _, f := range c.Formats {
		if f != FormatText && f != FormatParquet {
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	if !c.HasFormat(FormatText) {
		return errors.New("formats must include txt")
	}
	if !contains(parquetCompressions, c.ParquetCompression) {
		return fmt.Errorf("unknown parquet compression %q", c.ParquetCompression)
	}
	if _, err := c.DeviceLocation(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka requires brokers and topic when enabled")
	}
	return c.Met.validate()
}

func (m *MetConfig) validate() error {
	if m.Enabled && m.Path == "" {
		return errors.New("met.path required when met.enabled is true")
	}
	if m.TimeColumn < 0 || m.WindColumn < 0 {
		return errors.New("met columns must be >= 0")
	}
	if !strings.EqualFold(m.Units, met.UnitsMPS) && !strings.EqualFold(m.Units, met.UnitsMPH) {
		return fmt.Errorf("unknown met units %q", m.Units)
	}
	if _, err := merge.ParseMethod(m.Method); err != nil {
		return err
	}
	if _, err := merge.ParseStamp(m.Stamp); err != nil {
		return err
	}
	if m.NearestTolerance < 0 || m.Interval < 0 {
		return errors.New("met durations must be >= 0")
	}
	if _, err := m.DelimiterRune(); err != nil {
		return err
	}
	if _, err := optionalLocation(m.SourceTZ); err != nil {
		return err
	}
	_, err := optionalLocation(m.TargetTZ)
	return err
}

// HasFormat reports whether output format f is enabled.
func (c *Config) HasFormat(f string) bool {
	return contains(c.Formats, f)
}

// DeviceLocation is the meter clock's zone; empty means the process zone.
func (c *Config) DeviceLocation() (*time.Location, error) {
	if c.DeviceTZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DeviceTZ)
	if err != nil {
		return nil, fmt.Errorf("device_tz: %w", err)
	}
	return loc, nil
}

// LoaderOptions converts the MET block into loader options.
func (m *MetConfig) LoaderOptions() (met.Options, error) {
	src, err := optionalLocation(m.SourceTZ)
	if err != nil {
		return met.Options{}, err
	}
	dst, err := optionalLocation(m.TargetTZ)
	if err != nil {
		return met.Options{}, err
	}
	delim, err := m.DelimiterRune()
	if err != nil {
		return met.Options{}, err
	}
	return met.Options{
		TimeColumn: m.TimeColumn,
		WindColumn: m.WindColumn,
		TimeLayout: m.TimeLayout,
		SourceTZ:   src,
		TargetTZ:   dst,
		Units:      strings.ToLower(m.Units),
		ConvertMPH: m.ConvertMPH,
		Delimiter:  delim,
	}, nil
}

// MergeOptions converts the MET block into merge engine options.
func (m *MetConfig) MergeOptions() (merge.Options, error) {
	method, err := merge.ParseMethod(m.Method)
	if err != nil {
		return merge.Options{}, err
	}
	stamp, err := merge.ParseStamp(m.Stamp)
	if err != nil {
		return merge.Options{}, err
	}
	return merge.Options{
		Method:              method,
		Stamp:               stamp,
		Overwrite:           m.Overwrite,
		BackfillBeforeFirst: m.Backfill,
		Tolerance:           m.NearestTolerance,
		Interval:            m.Interval,
	}, nil
}

// DelimiterRune maps the configured delimiter; empty means sniff.
func (m *MetConfig) DelimiterRune() (rune, error) {
	switch m.Delimiter {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case "\t", "\\t", "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	}
	return 0, fmt.Errorf("unknown met delimiter %q", m.Delimiter)
}

func optionalLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", name, err)
	}
	return loc, nil
}

func envBool(key string, dst *bool, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = b
}

func envInt(key string, dst *int, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = n
}

func envDuration(key string, dst *time.Duration, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
