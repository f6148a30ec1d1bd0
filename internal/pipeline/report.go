package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// FileResult is the outcome of converting one log.
type FileResult struct {
	Path       string
	Variant    string
	Rows       int
	Buckets    int
	WindMerged int
	Err        error
}

// FileFailure names a log that could not be converted.
type FileFailure struct {
	Path string
	Err  error
}

// Report summarizes a batch.
type Report struct {
	Started     time.Time
	Finished    time.Time
	Files       int
	Converted   int
	Failed      int
	Skipped     int
	Rows        int
	Buckets     int
	WindMerged  int
	Interrupted bool
	Failures    []FileFailure
}

func (r *Report) add(res FileResult) {
	if res.Err != nil {
		r.Failed++
		r.Failures = append(r.Failures, FileFailure{Path: res.Path, Err: res.Err})
		return
	}
	r.Converted++
	r.Rows += res.Rows
	r.Buckets += res.Buckets
	r.WindMerged += res.WindMerged
}

// Duration is the wall time the batch took.
func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Err joins the per-file failures and notes an interrupted batch. It is nil
// for a clean run.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failures)+1)
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	if r.Interrupted {
		errs = append(errs, fmt.Errorf("batch interrupted with %d files left", r.Skipped))
	}
	return errors.Join(errs...)
}
