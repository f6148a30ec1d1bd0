package met

import (
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

var (
	slashDateRe = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\s+(\d{1,2}:\d{2}(?::\d{2})?)\s*(\bAM\b|\bPM\b|\bam\b|\bpm\b)?`)
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?`)
)

// slashLayouts are tried month-first, then day-first.
var slashLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/06 3:04:05 PM",
	"1/2/06 3:04 PM",

	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2/1/06 15:04:05",
	"2/1/06 15:04",
	"2/1/06 3:04:05 PM",
	"2/1/06 3:04 PM",
}

var isoLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// normalizeTimeField drops BOMs and NBSPs, then trims whitespace and quotes.
func normalizeTimeField(s string) string {
	s = strings.ReplaceAll(s, "\ufeff", "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.Trim(s, "'")
}

// ParseTime reads a MET timestamp as a naive wall-clock time. An explicit Go
// layout, when given, is tried first against the trimmed field. Otherwise the
// date and time are extracted by pattern and tried against the ranked layouts.
func ParseTime(raw, layout string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Naive(t), true
		}
	}

	s = normalizeTimeField(s)
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		core := m[1] + " " + m[2]
		if m[3] != "" {
			core += " " + strings.ToUpper(m[3])
		}
		return parseFirst(core, slashLayouts)
	}
	if m := isoDateRe.FindString(s); m != "" {
		return parseFirst(m, isoLayouts)
	}
	return time.Time{}, false
}

func parseFirst(s string, layouts []string) (time.Time, bool) {
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Align converts a naive MET time between zones. With both zones set the
// wall clock moves from src to dst; with only src it moves to UTC; otherwise
// t is returned unchanged.
func Align(t time.Time, src, dst *time.Location) time.Time {
	if src == nil {
		return t
	}
	if dst == nil {
		dst = time.UTC
	}
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), src)
	return domain.Naive(local.In(dst))
}
