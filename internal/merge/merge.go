// Package merge binds MET wind samples onto NVSPL rows.
package merge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// Method selects how a row finds its sample.
type Method string

const (
	// MethodBin repeats each sample across its averaging bin.
	MethodBin Method = "bin"
	// MethodForward holds the last sample at or before the row.
	MethodForward Method = "forward"
	// MethodNearest takes the closer neighbour within a tolerance.
	MethodNearest Method = "nearest"
)

// Stamp is where within its averaging bin a sample's timestamp falls.
type Stamp string

const (
	StampStart  Stamp = "start"
	StampCenter Stamp = "center"
	StampEnd    Stamp = "end"
)

// ParseMethod validates a configured method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodBin, MethodForward, MethodNearest:
		return m, nil
	}
	return "", fmt.Errorf("unknown merge method %q", s)
}

// ParseStamp validates a configured stamp convention.
func ParseStamp(s string) (Stamp, error) {
	switch st := Stamp(s); st {
	case StampStart, StampCenter, StampEnd:
		return st, nil
	}
	return "", fmt.Errorf("unknown sample stamp %q", s)
}

// Options configures an Engine.
type Options struct {
	Method    Method
	Stamp     Stamp
	Overwrite bool
	// BackfillBeforeFirst lets bin merging give rows before every bin the
	// first sample.
	BackfillBeforeFirst bool
	// Tolerance bounds nearest-neighbour matches.
	Tolerance time.Duration
	// Interval overrides inference when positive.
	Interval time.Duration
}

// canonicalIntervals are the logger periods an inferred interval snaps to.
var canonicalIntervals = []float64{1, 2, 5, 10, 15, 20, 30, 60, 120, 300}

const snapWindow = 0.6

// InferInterval estimates the sampling period of times as the median
// positive delta, snapped to a canonical period when within 0.6 s and
// rounded to whole seconds otherwise. Fewer than two positive deltas give 1 s.
func InferInterval(times []time.Time) time.Duration {
	var deltas []float64
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]).Seconds(); d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return time.Second
	}
	sort.Float64s(deltas)
	mid := len(deltas) / 2
	median := deltas[mid]
	if len(deltas)%2 == 0 {
		median = (deltas[mid-1] + deltas[mid]) / 2
	}
	for _, c := range canonicalIntervals {
		if math.Abs(median-c) <= snapWindow {
			return time.Duration(c) * time.Second
		}
	}
	return time.Duration(math.RoundToEven(median)) * time.Second
}

// ShiftForStamp is how far a stamp lies after its bin start.
func ShiftForStamp(interval time.Duration, stamp Stamp) time.Duration {
	if interval <= 0 {
		return 0
	}
	switch stamp {
	case StampCenter:
		return interval / 2
	case StampEnd:
		return interval
	}
	return 0
}

// Engine merges one sample series into rows. It holds no per-file state and
// is safe for concurrent Apply calls.
type Engine struct {
	opts     Options
	starts   []time.Time
	values   []float64
	interval time.Duration
}

// NewEngine prepares samples, which must be sorted by time.
func NewEngine(samples []domain.MetSample, opts Options) *Engine {
	times := make([]time.Time, len(samples))
	values := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Time
		values[i] = s.WindSpeed
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = InferInterval(times)
	}
	shift := ShiftForStamp(interval, opts.Stamp)
	for i := range times {
		times[i] = times[i].Add(-shift)
	}
	return &Engine{opts: opts, starts: times, values: values, interval: interval}
}

// Interval is the sampling period in use.
func (e *Engine) Interval() time.Duration { return e.interval }

// BinStarts returns the shifted sample times.
func (e *Engine) BinStarts() []time.Time { return e.starts }

// Span reports the first and last shifted sample times.
func (e *Engine) Span() (first, last time.Time, ok bool) {
	if len(e.starts) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return e.starts[0], e.starts[len(e.starts)-1], true
}

// Result counts what Apply did.
type Result struct {
	Updated int
	Skipped int
}

// Apply writes WindSpeed into rows, which must be sorted by time.
func (e *Engine) Apply(rows []domain.Row) Result {
	var res Result
	if len(rows) == 0 || len(e.starts) == 0 {
		return res
	}
	switch e.opts.Method {
	case MethodForward:
		e.applyForward(rows, &res)
	case MethodNearest:
		e.applyNearest(rows, &res)
	default:
		e.applyBin(rows, &res)
	}
	return res
}

func (e *Engine) keep(r *domain.Row) bool {
	return !e.opts.Overwrite && r.Get(domain.ColWindSpeed) != ""
}

func (e *Engine) set(r *domain.Row, v float64, res *Result) {
	r.Set(domain.ColWindSpeed, domain.FormatRound1(v))
	res.Updated++
}

func (e *Engine) binEnd(j int) time.Time {
	if j+1 < len(e.starts) {
		return e.starts[j+1]
	}
	return e.starts[j].Add(e.interval)
}

func (e *Engine) applyBin(rows []domain.Row, res *Result) {
	j := 0
	for i := range rows {
		r := &rows[i]
		if e.keep(r) {
			res.Skipped++
			continue
		}
		t := r.Time
		for j < len(e.starts) && !t.Before(e.binEnd(j)) {
			j++
		}
		switch {
		case j < len(e.starts) && !t.Before(e.starts[j]):
			e.set(r, e.values[j], res)
		case e.opts.BackfillBeforeFirst && j == 0:
			e.set(r, e.values[0], res)
		}
	}
}

func (e *Engine) applyForward(rows []domain.Row, res *Result) {
	j := 0
	var latest float64
	have := false
	for i := range rows {
		r := &rows[i]
		if e.keep(r) {
			res.Skipped++
			continue
		}
		for j < len(e.starts) && !e.starts[j].After(r.Time) {
			latest, have = e.values[j], true
			j++
		}
		if have {
			e.set(r, latest, res)
		}
	}
}

func (e *Engine) applyNearest(rows []domain.Row, res *Result) {
	for i := range rows {
		r := &rows[i]
		if e.keep(r) {
			res.Skipped++
			continue
		}
		t := r.Time
		pos := sort.Search(len(e.starts), func(k int) bool { return !e.starts[k].Before(t) })

		best, bestDist := -1, time.Duration(0)
		for _, k := range []int{pos, pos - 1} {
			if k < 0 || k >= len(e.starts) {
				continue
			}
			d := absDuration(e.starts[k].Sub(t))
			if best < 0 || d < bestDist {
				best, bestDist = k, d
			}
		}
		if best >= 0 && bestDist <= e.opts.Tolerance {
			e.set(r, e.values[best], res)
		}
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Overlaps reports whether the row span [rowFirst, rowLast] intersects the
// sample span [metFirst, metLast].
func Overlaps(rowFirst, rowLast, metFirst, metLast time.Time) bool {
	return !rowLast.Before(metFirst) && !rowFirst.After(metLast)
}

// Hint explains an Apply that set nothing on a non-empty row set. It is
// empty when there is nothing to say.
func (e *Engine) Hint(rows []domain.Row, res Result) string {
	if res.Updated > 0 || len(rows) == 0 || len(e.starts) == 0 {
		return ""
	}
	switch e.opts.Method {
	case MethodForward:
		if rows[0].Time.Before(e.starts[0]) {
			return "forward fill leaves rows before the first MET sample blank"
		}
	case MethodNearest:
		return "no MET sample within tolerance; increase the nearest tolerance if MET intervals are coarse"
	}
	return ""
}

// Method is the configured merge policy.
func (e *Engine) Method() Method { return e.opts.Method }
