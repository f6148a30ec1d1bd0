package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the STime format: naive local time, millisecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000"

var (
	// anchorRe matches input stems like "SPL_CANYCOLO_2025_05_15_112147".
	anchorRe = regexp.MustCompile(`^SPL_([A-Za-z0-9]+)_(\d{4})_(\d{2})_(\d{2})_(\d{6})$`)

	statusCodes = [...]string{"0", "9901", "9910", "9911"}
)

// FormatTimestamp renders t in the STime layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses an STime value into a naive UTC-located time.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// Naive drops the location of t, keeping its wall clock.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// FormatRound1 renders x rounded to one decimal place. NaN and infinities
// render empty.
func FormatRound1(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', 1, 64)
}

// FormatDecibel converts a linear power value to dB. Non-positive power has
// no level and renders empty.
func FormatDecibel(power float64) string {
	if !(power > 0) || math.IsInf(power, 1) {
		return ""
	}
	return FormatRound1(10 * math.Log10(power))
}

// StatusFromFlag maps a record test flag to the NVSPL status code.
func StatusFromFlag(flag int32) string {
	idx := flag / 1024
	if flag < 0 || idx >= int32(len(statusCodes)) {
		return ""
	}
	return statusCodes[idx]
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SiteFromStem returns the second underscore-separated token of a file stem,
// or "" when the stem has no underscore.
func SiteFromStem(stem string) string {
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ParseAnchor extracts the site and nominal start instant declared by an
// input file stem of the form SPL_<SITE>_<YYYY>_<MM>_<DD>_<HHMMSS>.
func ParseAnchor(stem string) (site string, start time.Time, ok bool) {
	m := anchorRe.FindStringSubmatch(stem)
	if m == nil {
		return "", time.Time{}, false
	}
	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	hh, _ := strconv.Atoi(m[5][0:2])
	mm, _ := strconv.Atoi(m[5][2:4])
	ss, _ := strconv.Atoi(m[5][4:6])

	start = time.Date(year, time.Month(month), day, hh, mm, ss, 0, time.UTC)
	if start.Month() != time.Month(month) || start.Day() != day || start.Hour() != hh || start.Minute() != mm || start.Second() != ss {
		return "", time.Time{}, false
	}
	return m[1], start, true
}

// ShiftToAnchor moves every row by the constant delta that makes the first
// row start at anchor. It returns the applied delta.
func ShiftToAnchor(rows []Row, anchor time.Time) time.Duration {
	if len(rows) == 0 {
		return 0
	}
	delta := anchor.Sub(rows[0].Time)
	if delta == 0 {
		return 0
	}
	for i := range rows {
		rows[i].Time = rows[i].Time.Add(delta)
	}
	return delta
}

// HourFloor truncates a naive timestamp to the start of its hour.
func HourFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// BucketByHour groups rows by (site, hour). Buckets are returned in order of
// their earliest row and each bucket's rows are sorted ascending by time.
func BucketByHour(rows []Row) []HourBucket {
	index := make(map[BucketKey]int)
	var buckets []HourBucket
	for _, r := range rows {
		key := BucketKey{Site: r.Site, Hour: HourFloor(r.Time)}
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, HourBucket{Key: key})
		}
		buckets[i].Rows = append(buckets[i].Rows, r)
	}
	for i := range buckets {
		sort.SliceStable(buckets[i].Rows, func(a, b int) bool {
			return buckets[i].Rows[a].Time.Before(buckets[i].Rows[b].Time)
		})
	}
	sort.SliceStable(buckets, func(a, b int) bool {
		return buckets[a].Rows[0].Time.Before(buckets[b].Rows[0].Time)
	})
	return buckets
}

// BucketFileStem names the output unit for a bucket: NVSPL_<SITE>_<YYYY>_<MM>_<DD>_<HH>.
func BucketFileStem(key BucketKey) string {
	return fmt.Sprintf("NVSPL_%s_%s", key.Site, key.Hour.Format("2006_01_02_15"))
}

// EncodeBucket writes the NVSPL header and the bucket's rows as CSV.
func EncodeBucket(w io.Writer, b HourBucket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range b.Rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write row %s: %w", FormatTimestamp(r.Time), err)
		}
	}
	cw.Flush()
	return cw.Error()
}
