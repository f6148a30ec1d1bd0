package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/merge"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/met"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/observability"
)

// LoadWind reads the MET file once for the batch and prepares the merge
// engine. A read failure or a file with no usable rows is logged and yields
// a nil merger so conversion carries on without wind.
func LoadWind(loader *met.Loader, path string, opts merge.Options, logger *slog.Logger, metrics *observability.Metrics) (WindMerger, met.Result) {
	res, err := loader.Load(path)
	if err != nil {
		logger.Error("met load failed, wind will stay empty", "path", path, "error", err)
		return nil, res
	}

	st := res.Stats
	metrics.MetRows.WithLabelValues("parsed").Add(float64(st.Parsed))
	metrics.MetRows.WithLabelValues("header").Add(float64(st.HeaderSkips))
	metrics.MetRows.WithLabelValues("short").Add(float64(st.ShortRows))
	metrics.MetRows.WithLabelValues("time_fail").Add(float64(st.TimeFailures))
	metrics.MetRows.WithLabelValues("wind_fail").Add(float64(st.WindFailures))

	if len(res.Samples) == 0 {
		logger.Warn("met file parsed no samples, wind will stay empty; check the column indices and time format",
			"path", path, "attempts", len(res.Attempts))
		return nil, res
	}

	e := merge.NewEngine(res.Samples, opts)
	starts := e.BinStarts()
	first := make([]string, 0, 3)
	for i := 0; i < len(starts) && i < 3; i++ {
		first = append(first, domain.FormatTimestamp(starts[i]))
	}
	logger.Info("met merge ready",
		"method", string(e.Method()),
		"stamp", string(opts.Stamp),
		"interval", e.Interval(),
		"backfill", opts.BackfillBeforeFirst,
		"first_bin_starts", first,
	)
	return e, res
}
