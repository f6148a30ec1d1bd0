package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/ld831-nvspl-etl/internal/adapter/http"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/adapter/nvspl"
	pqadapter "github.com/couchcryptid/ld831-nvspl-etl/internal/adapter/parquet"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/config"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/met"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/observability"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/pipeline"
)

func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [input]",
		Short: "Convert .831 logs into hourly NVSPL files",
		Long: `convert decodes every .831 log under input (a file or directory) and
writes one NVSPL file per site and hour into the output directory. A file
that fails to decode is reported and the batch continues; the command exits
non-zero if any file failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Input = args[0]
			}
			logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(logger)

			rep, err := runConvert(cmd.Context(), cfg, logger, batchMetrics())
			if err != nil {
				logger.Error("convert failed", "error", err)
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return rep.Err()
		},
	}
	a.flags.bindConvert(cmd)
	return cmd
}

// runConvert wires the sinks, the optional wind merger and the ops server
// around one pipeline run.
func runConvert(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Report, error) {
	loc, err := cfg.DeviceLocation()
	if err != nil {
		return pipeline.Report{}, err
	}
	files, err := pipeline.Discover(cfg.Input, cfg.Recursive)
	if err != nil {
		return pipeline.Report{}, err
	}
	if len(files) == 0 {
		logger.Warn("no .831 files found", "input", cfg.Input, "recursive", cfg.Recursive)
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return pipeline.Report{}, fmt.Errorf("create output dir: %w", err)
	}

	var merger pipeline.WindMerger
	if cfg.Met.Enabled {
		lo, err := cfg.Met.LoaderOptions()
		if err != nil {
			return pipeline.Report{}, err
		}
		mo, err := cfg.Met.MergeOptions()
		if err != nil {
			return pipeline.Report{}, err
		}
		merger, _ = pipeline.LoadWind(met.NewLoader(lo, logger), cfg.Met.Path, mo, logger, metrics)
	}

	primary := pipeline.Sink{Name: config.FormatText, Loader: nvspl.NewWriter(cfg.Output, cfg.SiteFolders, logger)}
	var sinks []pipeline.Sink
	if cfg.HasFormat(config.FormatParquet) {
		sinks = append(sinks, pipeline.Sink{
			Name:   config.FormatParquet,
			Loader: pqadapter.NewWriter(cfg.Output, cfg.SiteFolders, cfg.ParquetCompression, logger),
		})
	}
	if cfg.Kafka.Enabled {
		w := kafka.NewWriter(cfg.Kafka, logger)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: w})
	}

	p := pipeline.New(pipeline.NewConverter(loc, logger), primary, merger, logger, metrics,
		pipeline.Options{Workers: cfg.Workers, Sinks: sinks})

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", "error", err)
			}
		}()
	}

	return p.Run(ctx, files), nil
}

func printReport(w io.Writer, rep pipeline.Report) {
	fmt.Fprintf(w, "converted %d of %d files: %d rows in %d hourly files (%s)\n",
		rep.Converted, rep.Files, rep.Rows, rep.Buckets, rep.Duration().Round(time.Millisecond))
	if rep.WindMerged > 0 {
		fmt.Fprintf(w, "wind merged into %d rows\n", rep.WindMerged)
	}
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "skipped %d files\n", rep.Skipped)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "FAILED %s: %v\n", f.Path, f.Err)
	}
}
