package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/ld831"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/merge"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/observability"
)

// FileConverter decodes one input log into anchored NVSPL rows.
type FileConverter interface {
	Convert(ctx context.Context, path string) (ld831.Result, error)
}

// BucketLoader delivers one hour bucket to a destination.
type BucketLoader interface {
	LoadBucket(ctx context.Context, b domain.HourBucket) error
}

// WindMerger fills the WindSpeed column from MET samples.
type WindMerger interface {
	Apply(rows []domain.Row) merge.Result
	Span() (first, last time.Time, ok bool)
	Hint(rows []domain.Row, res merge.Result) string
}

// Sink is a named BucketLoader. The name labels logs and metrics.
type Sink struct {
	Name   string
	Loader BucketLoader
}

// Options tunes a Pipeline.
type Options struct {
	// Workers bounds how many files convert at once. Values below 1 mean 1.
	Workers int
	// Sinks receive every bucket the primary sink wrote.
	Sinks []Sink
}

// Pipeline converts a batch of logs into hour buckets.
type Pipeline struct {
	converter FileConverter
	primary   Sink
	sinks     []Sink
	merger    WindMerger
	logger    *slog.Logger
	metrics   *observability.Metrics
	workers   int
	locks     keyLocks
	ready     atomic.Bool

	running atomic.Bool
	total   atomic.Int64
	done    atomic.Int64
	failed  atomic.Int64
}

// Progress is a point-in-time view of the current batch.
type Progress struct {
	Running bool  `json:"running"`
	Files   int64 `json:"files"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

// New creates a Pipeline. primary must succeed for a file to count as
// converted. Pass a nil merger to leave wind untouched.
func New(c FileConverter, primary Sink, merger WindMerger, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		converter: c,
		primary:   primary,
		sinks:     opts.Sinks,
		merger:    merger,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
		locks:     keyLocks{locks: make(map[string]*sync.Mutex)},
	}
}

// CheckReadiness returns nil once at least one file has been converted.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not converted any files yet")
	}
	return nil
}

// Progress reports how far the current or last batch got.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Running: p.running.Load(),
		Files:   p.total.Load(),
		Done:    p.done.Load(),
		Failed:  p.failed.Load(),
	}
}

// Run converts files and returns the batch report. A failing file is
// reported and the batch moves on. Cancellation is checked between files;
// a file that has started always finishes.
func (p *Pipeline) Run(ctx context.Context, files []string) Report {
	rep := Report{Started: domain.Now(), Files: len(files)}
	p.logger.Info("batch started", "files", len(files), "workers", p.workers)
	p.metrics.BatchRunning.Set(1)
	defer p.metrics.BatchRunning.Set(0)
	p.metrics.BatchFilesTotal.Set(float64(len(files)))
	p.total.Store(int64(len(files)))
	p.done.Store(0)
	p.failed.Store(0)
	p.running.Store(true)
	defer p.running.Store(false)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := p.processFile(ctx, f)
			p.done.Add(1)
			if res.Err != nil {
				p.failed.Add(1)
			}
			mu.Lock()
			rep.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rep.Skipped = rep.Files - rep.Converted - rep.Failed
	rep.Interrupted = ctx.Err() != nil && rep.Skipped > 0
	rep.Finished = domain.Now()
	sort.Slice(rep.Failures, func(a, b int) bool { return rep.Failures[a].Path < rep.Failures[b].Path })

	if rep.Interrupted {
		p.logger.Info("batch stopping", "reason", ctx.Err(), "skipped", rep.Skipped)
	}
	p.logger.Info("batch finished",
		"converted", rep.Converted,
		"failed", rep.Failed,
		"skipped", rep.Skipped,
		"rows", rep.Rows,
		"buckets", rep.Buckets,
		"wind_merged", rep.WindMerged,
		"duration", rep.Duration(),
	)
	return rep
}

// processFile runs convert, merge, bucket and load for one log.
func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	// Sinks finish the file even if the batch is cancelled meanwhile.
	ctx = context.WithoutCancel(ctx)
	start := domain.Now()
	res := FileResult{Path: path, Variant: "unknown"}
	defer func() {
		p.metrics.FileDuration.Observe(domain.Since(start).Seconds())
		outcome := "success"
		if res.Err != nil {
			outcome = "error"
		}
		p.metrics.FilesProcessed.WithLabelValues(res.Variant, outcome).Inc()
	}()

	conv, err := p.converter.Convert(ctx, path)
	if err != nil {
		var fe *ld831.FormatError
		if errors.As(err, &fe) {
			res.Variant = fe.Variant.String()
		}
		p.logger.Error("convert failed, skipping file", "file", path, "error", err)
		res.Err = err
		return res
	}
	p.recordDecodeStats(conv.Stats)

	file := conv.File
	res.Variant = file.Variant
	rows := file.Rows
	// Wall-clock times repeat across a DST fall-back.
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Time.Before(rows[b].Time) })
	p.logger.Info("file decoded",
		"file", path,
		"variant", file.Variant,
		"site", file.Site,
		"rows", len(rows),
		"retrograde", conv.Stats.Retrograde,
		"unknown_flag", conv.Stats.UnknownFlag,
	)

	if p.merger != nil {
		res.WindMerged = p.mergeWind(path, rows)
	}

	for _, b := range domain.BucketByHour(rows) {
		if err := p.load(ctx, b); err != nil {
			p.logger.Error("write bucket failed, skipping rest of file",
				"file", path, "bucket", domain.BucketFileStem(b.Key), "error", err)
			res.Err = fmt.Errorf("write bucket %s: %w", domain.BucketFileStem(b.Key), err)
			return res
		}
		res.Buckets++
		res.Rows += len(b.Rows)
	}

	p.ready.Store(true)
	return res
}

func (p *Pipeline) mergeWind(path string, rows []domain.Row) int {
	if len(rows) == 0 {
		return 0
	}
	first, last := rows[0].Time, rows[len(rows)-1].Time
	metFirst, metLast, ok := p.merger.Span()
	if !ok {
		p.logger.Warn("no MET samples, wind left empty", "file", path)
		return 0
	}

	overlap := merge.Overlaps(first, last, metFirst, metLast)
	p.logger.Info("met alignment",
		"file", path,
		"nvspl_first", domain.FormatTimestamp(first),
		"nvspl_last", domain.FormatTimestamp(last),
		"met_first", domain.FormatTimestamp(metFirst),
		"met_last", domain.FormatTimestamp(metLast),
		"overlap", overlap,
	)
	if !overlap {
		p.logger.Warn("MET samples do not cover this file; check the MET dates or time zones", "file", path)
	}

	r := p.merger.Apply(rows)
	p.metrics.WindRowsMerged.Add(float64(r.Updated))
	p.logger.Info("wind merged", "file", path, "updated", r.Updated, "kept", r.Skipped, "rows", len(rows))
	if hint := p.merger.Hint(rows, r); hint != "" {
		p.logger.Info(hint, "file", path)
	}
	return r.Updated
}

// load writes b to the primary sink and then to every additional sink. Only
// a primary failure is returned.
func (p *Pipeline) load(ctx context.Context, b domain.HourBucket) error {
	unlock := p.locks.lock(b.Key.String())
	defer unlock()

	if err := p.primary.Loader.LoadBucket(ctx, b); err != nil {
		p.metrics.SinkErrors.WithLabelValues(p.primary.Name).Inc()
		return err
	}
	p.metrics.BucketsWritten.WithLabelValues(p.primary.Name).Inc()
	p.metrics.RowsWritten.Add(float64(len(b.Rows)))

	for _, s := range p.sinks {
		if err := s.Loader.LoadBucket(ctx, b); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			p.logger.Error("sink failed", "sink", s.Name, "bucket", domain.BucketFileStem(b.Key), "error", err)
			continue
		}
		p.metrics.BucketsWritten.WithLabelValues(s.Name).Inc()
	}
	return nil
}

func (p *Pipeline) recordDecodeStats(s ld831.DecodeStats) {
	p.metrics.RecordsDecoded.WithLabelValues("accepted").Add(float64(s.Accepted))
	p.metrics.RecordsDecoded.WithLabelValues("retrograde").Add(float64(s.Retrograde))
	p.metrics.RecordsDecoded.WithLabelValues("unknown_flag").Add(float64(s.UnknownFlag))
}

// keyLocks serializes writes per bucket key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
