package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nvspl_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for a conversion batch.
type Metrics struct {
	FilesProcessed  *prometheus.CounterVec // labels: variant={OLD,NEW,unknown}, outcome={success,error}
	RecordsDecoded  *prometheus.CounterVec // labels: result={accepted,retrograde,unknown_flag}
	RowsWritten     prometheus.Counter
	BucketsWritten  *prometheus.CounterVec // labels: sink={txt,parquet,kafka}
	SinkErrors      *prometheus.CounterVec // labels: sink
	WindRowsMerged  prometheus.Counter
	MetRows         *prometheus.CounterVec // labels: outcome={parsed,header,short,time_fail,wind_fail}
	FileDuration    prometheus.Histogram
	BatchRunning    prometheus.Gauge
	BatchFilesTotal prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input logs processed by variant and outcome.",
		}, []string{"variant", "outcome"}),
		RecordsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Record positions visited by the decoder, by result.",
		}, []string{"result"}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "NVSPL rows written to hourly text files.",
		}),
		BucketsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buckets_written_total",
			Help:      "Hour buckets delivered per sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Hour bucket delivery failures per sink.",
		}, []string{"sink"}),
		WindRowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wind_rows_merged_total",
			Help:      "Rows that received a MET wind speed.",
		}),
		MetRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "met_rows_total",
			Help:      "MET CSV rows by outcome for the selected load attempt.",
		}, []string{"outcome"}),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_processing_duration_seconds",
			Help:      "Duration of converting one input log end to end.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_running",
			Help:      "1 while a batch is converting, 0 otherwise.",
		}),
		BatchFilesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_files",
			Help:      "Input logs discovered for the current batch.",
		}),
	}
}

// NewMetrics creates and registers all batch metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesProcessed,
		m.RecordsDecoded,
		m.RowsWritten,
		m.BucketsWritten,
		m.SinkErrors,
		m.WindRowsMerged,
		m.MetRows,
		m.FileDuration,
		m.BatchRunning,
		m.BatchFilesTotal,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
