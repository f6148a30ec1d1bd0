package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/config"
)

// cliFlags mirrors the config fields that can be set on the command line.
// Only flags the user actually set override the loaded config.
type cliFlags struct {
	// Logging
	logLevel  string
	logFormat string

	// Conversion
	output      string
	recursive   bool
	siteFolders bool
	formats     []string
	compression string
	workers     int
	deviceTZ    string

	// MET merge
	metPath      string
	metTimeCol   int
	metWindCol   int
	metLayout    string
	metDelimiter string
	metSourceTZ  string
	metTargetTZ  string
	metUnits     string
	convertMPH   bool
	metMethod    string
	metStamp     string
	backfill     bool
	tolerance    time.Duration
	overwrite    bool
	metInterval  time.Duration

	// Ops
	httpAddr string
	kafka    bool
	topic    string
}

func (f *cliFlags) bindPersistent(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&f.logFormat, "log-format", "", "log format (json, text)")
	pf.StringVar(&f.deviceTZ, "device-tz", "", "time zone of the meter clock (default: local)")

	pf.IntVar(&f.metTimeCol, "met-time-col", 0, "0-based MET time column")
	pf.IntVar(&f.metWindCol, "met-wind-col", 0, "0-based MET wind column")
	pf.StringVar(&f.metLayout, "met-time-layout", "", "Go time layout tried first for MET timestamps")
	pf.StringVar(&f.metDelimiter, "met-delimiter", "", "MET delimiter (comma, tab, semicolon; default: sniff)")
	pf.StringVar(&f.metSourceTZ, "met-source-tz", "", "zone the MET timestamps were recorded in")
	pf.StringVar(&f.metTargetTZ, "met-target-tz", "", "zone to convert MET timestamps to")
	pf.StringVar(&f.metUnits, "met-units", "", "MET wind units (mps, mph)")
	pf.BoolVar(&f.convertMPH, "convert-mph", false, "convert mph wind to m/s")
	pf.StringVar(&f.metMethod, "met-method", "", "merge method (bin, forward, nearest)")
	pf.StringVar(&f.metStamp, "met-stamp", "", "where MET timestamps sit in their bin (start, center, end)")
	pf.DurationVar(&f.metInterval, "met-interval", 0, "MET sampling interval; 0 infers it")
}

func (f *cliFlags) bindConvert(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "output directory")
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "descend into subdirectories")
	fl.BoolVar(&f.siteFolders, "site-folders", false, "write each site into its own folder")
	fl.StringSliceVar(&f.formats, "format", nil, "output formats (txt, parquet)")
	fl.StringVar(&f.compression, "parquet-compression", "", "parquet codec (snappy, zstd, gzip, none)")
	fl.IntVarP(&f.workers, "workers", "w", 0, "files converted in parallel")

	fl.StringVar(&f.metPath, "met", "", "MET CSV to merge wind speed from")
	fl.BoolVar(&f.backfill, "met-backfill", false, "bin merge: give rows before the first bin the first sample")
	fl.DurationVar(&f.tolerance, "met-tolerance", 0, "nearest merge: maximum distance to a sample")
	fl.BoolVar(&f.overwrite, "met-overwrite", true, "replace wind values already present")

	fl.StringVar(&f.httpAddr, "http-addr", "", "serve /healthz, /readyz, /progress and /metrics on this address")
	fl.BoolVar(&f.kafka, "kafka", false, "publish each written hour to Kafka")
	fl.StringVar(&f.topic, "kafka-topic", "", "Kafka topic for published hours")
}

func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fl := cmd.Flags().Lookup(name); fl != nil && fl.Changed {
			fn()
		}
	}
	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("log-format", func() { cfg.LogFormat = f.logFormat })
	set("device-tz", func() { cfg.DeviceTZ = f.deviceTZ })

	set("output", func() { cfg.Output = f.output })
	set("recursive", func() { cfg.Recursive = f.recursive })
	set("site-folders", func() { cfg.SiteFolders = f.siteFolders })
	set("format", func() { cfg.Formats = f.formats })
	set("parquet-compression", func() { cfg.ParquetCompression = f.compression })
	set("workers", func() { cfg.Workers = f.workers })

	m := &cfg.Met
	set("met", func() { m.Path, m.Enabled = f.metPath, f.metPath != "" })
	set("met-time-col", func() { m.TimeColumn = f.metTimeCol })
	set("met-wind-col", func() { m.WindColumn = f.metWindCol })
	set("met-time-layout", func() { m.TimeLayout = f.metLayout })
	set("met-delimiter", func() { m.Delimiter = f.metDelimiter })
	set("met-source-tz", func() { m.SourceTZ = f.metSourceTZ })
	set("met-target-tz", func() { m.TargetTZ = f.metTargetTZ })
	set("met-units", func() { m.Units = f.metUnits })
	set("convert-mph", func() { m.ConvertMPH = f.convertMPH })
	set("met-method", func() { m.Method = f.metMethod })
	set("met-stamp", func() { m.Stamp = f.metStamp })
	set("met-backfill", func() { m.Backfill = f.backfill })
	set("met-tolerance", func() { m.NearestTolerance = f.tolerance })
	set("met-overwrite", func() { m.Overwrite = f.overwrite })
	set("met-interval", func() { m.Interval = f.metInterval })

	set("http-addr", func() { cfg.HTTPAddr = f.httpAddr })
	set("kafka", func() { cfg.Kafka.Enabled = f.kafka })
	set("kafka-topic", func() { cfg.Kafka.Topic = f.topic })
}
