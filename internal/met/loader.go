// Package met loads meteorological wind logs exported as loosely formatted
// CSV. Encoding, delimiter and timestamp format are all discovered at load
// time; malformed rows are counted and skipped.
package met

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// MphToMps converts miles per hour to metres per second.
const MphToMps = 0.44704

// sniffSampleSize bounds the bytes decoded for delimiter sniffing.
const sniffSampleSize = 64 << 10

// Units of the wind column.
const (
	UnitsMPS = "mps"
	UnitsMPH = "mph"
)

// headerMarkers in a time field identify a header row.
var headerMarkers = []string{"Date", "Time", "GMT", "UTC"}

// Options describes the columns and conventions of a MET file.
type Options struct {
	TimeColumn int
	WindColumn int
	// TimeLayout is an optional Go layout tried before tolerant parsing.
	TimeLayout string
	SourceTZ   *time.Location
	TargetTZ   *time.Location
	Units      string
	ConvertMPH bool
	// Delimiter forces the first attempt's delimiter instead of sniffing.
	Delimiter rune
}

// Stats counts row outcomes for one attempt.
type Stats struct {
	HeaderSkips  int
	ShortRows    int
	TimeFailures int
	WindFailures int
	Parsed       int
}

// Stage identifies a step of the load ladder.
type Stage int

const (
	StageSniffed Stage = iota
	StageDelimiter
	StageEncoding
	StageManual
)

func (s Stage) String() string {
	switch s {
	case StageSniffed:
		return "sniffed"
	case StageDelimiter:
		return "delimiter"
	case StageEncoding:
		return "encoding"
	case StageManual:
		return "manual"
	}
	return "unknown"
}

// Attempt records one parse of the file.
type Attempt struct {
	Stage     Stage
	Encoding  Encoding
	Delimiter rune
	Stats     Stats
	Err       error
}

// Result is the outcome of a load: the samples of the best attempt and every
// attempt made.
type Result struct {
	Samples   []domain.MetSample
	Stage     Stage
	Encoding  Encoding
	Delimiter rune
	Stats     Stats
	Attempts  []Attempt
	// SniffErr is set when delimiter sniffing fell back to the presence rule.
	SniffErr error
}

func (r *Result) keep(a Attempt, samples []domain.MetSample) {
	r.Attempts = append(r.Attempts, a)
	if a.Stats.Parsed > r.Stats.Parsed {
		r.Samples, r.Stats, r.Stage = samples, a.Stats, a.Stage
		r.Encoding, r.Delimiter = a.Encoding, a.Delimiter
	}
}

// Loader reads MET files with fixed options.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

// NewLoader returns a loader. A nil logger discards output.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{opts: opts, logger: logger}
}

// stage is one rung of the load ladder. It runs only while the best result
// so far has parsed no rows.
type stage func(l *Loader, data []byte, res *Result)

var ladder = []stage{
	(*Loader).retryDelimiters,
	(*Loader).retryEncodings,
	(*Loader).manualFallback,
}

// Load reads path and parses it. It fails only when the file cannot be read;
// an unparseable file yields an empty result.
func (l *Loader) Load(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read met csv: %w", err)
	}
	res := l.Parse(data)
	l.logger.Info("met samples loaded",
		"path", path,
		"samples", len(res.Samples),
		"stage", res.Stage.String(),
		"encoding", string(res.Encoding),
		"delimiter", strconv.QuoteRune(res.Delimiter),
	)
	return res, nil
}

// Parse runs the load ladder over data.
func (l *Loader) Parse(data []byte) Result {
	enc := SniffEncoding(data)
	delim := l.opts.Delimiter
	var sniffErr error
	if delim == 0 {
		delim, sniffErr = SniffDelimiter(decodeLossy(data[:min(len(data), sniffSampleSize)], enc))
	}
	l.logger.Debug("met format sniffed", "encoding", string(enc), "delimiter", strconv.QuoteRune(delim))

	res := Result{Stage: StageSniffed, Encoding: enc, Delimiter: delim, SniffErr: sniffErr}
	a, samples := l.attempt(StageSniffed, data, enc, delim)
	res.Attempts = append(res.Attempts, a)
	res.Samples, res.Stats = samples, a.Stats

	for _, s := range ladder {
		if res.Stats.Parsed > 0 {
			break
		}
		s(l, data, &res)
	}
	sort.SliceStable(res.Samples, func(i, j int) bool {
		return res.Samples[i].Time.Before(res.Samples[j].Time)
	})
	return res
}

func (l *Loader) retryDelimiters(data []byte, res *Result) {
	enc, tried := res.Encoding, res.Delimiter
	for _, d := range Delimiters {
		if d == tried {
			continue
		}
		a, samples := l.attempt(StageDelimiter, data, enc, d)
		res.keep(a, samples)
	}
}

func (l *Loader) retryEncodings(data []byte, res *Result) {
	tried, delim := res.Encoding, res.Delimiter
	for _, e := range Encodings {
		if e == tried {
			continue
		}
		a, samples := l.attempt(StageEncoding, data, e, delim)
		res.keep(a, samples)
	}
}

func (l *Loader) manualFallback(data []byte, res *Result) {
	text := decodeLossy(data, res.Encoding)
	a := Attempt{Stage: StageManual, Encoding: res.Encoding}
	samples := l.readLines(text, &a.Stats)
	l.logAttempt(a)
	res.keep(a, samples)
}

func (l *Loader) attempt(st Stage, data []byte, enc Encoding, delim rune) (Attempt, []domain.MetSample) {
	a := Attempt{Stage: st, Encoding: enc, Delimiter: delim}
	text, err := Decode(data, enc)
	if err != nil {
		a.Err = err
		l.logAttempt(a)
		return a, nil
	}
	samples := l.readCSV(text, delim, &a.Stats)
	l.logAttempt(a)
	return a, samples
}

func (l *Loader) logAttempt(a Attempt) {
	attrs := []any{
		"stage", a.Stage.String(),
		"encoding", string(a.Encoding),
		"delimiter", strconv.QuoteRune(a.Delimiter),
		"parsed", a.Stats.Parsed,
		"header_skips", a.Stats.HeaderSkips,
		"short_rows", a.Stats.ShortRows,
		"time_failures", a.Stats.TimeFailures,
		"wind_failures", a.Stats.WindFailures,
	}
	if a.Err != nil {
		attrs = append(attrs, "error", a.Err)
	}
	l.logger.Debug("met load attempt", attrs...)
}

func (l *Loader) readCSV(text string, delim rune, st *Stats) []domain.MetSample {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var out []domain.MetSample
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			st.ShortRows++
			continue
		}
		if len(row) == 1 && strings.Contains(row[0], "Plot Title") {
			st.HeaderSkips++
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(row[0]), "#") {
			st.HeaderSkips++
			continue
		}
		if s, ok := l.sample(row, st); ok {
			out = append(out, s)
		}
	}
	return out
}

// readLines parses each line independently, trying every delimiter until
// one yields enough fields.
func (l *Loader) readLines(text string, st *Stats) []domain.MetSample {
	blanks := strings.NewReplacer("\u00a0", " ", "\ufeff", " ")
	need := max(l.opts.TimeColumn, l.opts.WindColumn)

	var out []domain.MetSample
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "Plot Title") || strings.HasPrefix(line, "#") {
			st.HeaderSkips++
			continue
		}
		line = blanks.Replace(line)

		var row []string
		for _, d := range []rune{'\t', ',', ';'} {
			if !strings.ContainsRune(line, d) {
				continue
			}
			r := csv.NewReader(strings.NewReader(line))
			r.Comma = d
			r.LazyQuotes = true
			fields, err := r.Read()
			if err == nil && len(fields) > need {
				row = fields
				break
			}
		}
		if row == nil {
			st.ShortRows++
			continue
		}
		if s, ok := l.sample(row, st); ok {
			out = append(out, s)
		}
	}
	return out
}

// sample applies the per-row rules shared by both readers.
func (l *Loader) sample(row []string, st *Stats) (domain.MetSample, bool) {
	if len(row) <= max(l.opts.TimeColumn, l.opts.WindColumn) {
		st.ShortRows++
		return domain.MetSample{}, false
	}
	rawTime, rawWind := row[l.opts.TimeColumn], row[l.opts.WindColumn]
	for _, m := range headerMarkers {
		if strings.Contains(rawTime, m) {
			st.HeaderSkips++
			return domain.MetSample{}, false
		}
	}

	t, ok := ParseTime(rawTime, l.opts.TimeLayout)
	if !ok {
		st.TimeFailures++
		return domain.MetSample{}, false
	}
	t = Align(t, l.opts.SourceTZ, l.opts.TargetTZ)

	w, err := strconv.ParseFloat(strings.TrimSpace(rawWind), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		st.WindFailures++
		return domain.MetSample{}, false
	}
	if strings.EqualFold(l.opts.Units, UnitsMPH) && l.opts.ConvertMPH {
		w *= MphToMps
	}

	st.Parsed++
	return domain.MetSample{Time: t, WindSpeed: w}, true
}
