package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/ld831"
)

// LogConverter implements FileConverter with the LD831 decoder.
type LogConverter struct {
	opts   ld831.Options
	logger *slog.Logger
}

// NewConverter creates a LogConverter whose device clock runs in loc. Pass
// nil to use the process zone.
func NewConverter(loc *time.Location, logger *slog.Logger) *LogConverter {
	return &LogConverter{
		opts:   ld831.Options{Location: loc},
		logger: logger,
	}
}

// Convert decodes the whole file in one pass. The pipeline only checks for
// cancellation between files, so the context is not consulted here.
func (c *LogConverter) Convert(_ context.Context, path string) (ld831.Result, error) {
	res, err := ld831.ParseFile(path, c.opts)
	if err != nil {
		return res, err
	}

	l := res.Layout
	c.logger.Debug("layout resolved",
		"file", path,
		"variant", l.Variant.String(),
		"metric_count", l.MetricCount,
		"bit_metric_count", l.BitMetricCount,
		"reconciled", l.Reconciled,
		"record_count", l.RecordCount,
	)
	if res.File.Anchored {
		c.logger.Info("anchored to file name", "file", path, "shift", res.File.Shift)
	} else {
		c.logger.Info("file name did not match anchor pattern, keeping device time", "file", path)
	}
	return res, nil
}
