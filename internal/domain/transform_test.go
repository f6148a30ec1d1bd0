package domain

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSite = "CANYCOLO"

func naiveAt(h, m, s int) time.Time {
	return time.Date(2025, 5, 15, h, m, s, 0, time.UTC)
}

func TestFormatDecibel(t *testing.T) {
	tests := []struct {
		name     string
		power    float64
		expected string
	}{
		{"ten to minus four", 0.0001, "-40.0"},
		{"unity", 1, "0.0"},
		{"typical ambient", 3.1622776e-5, "-45.0"},
		{"loud", 1e6, "60.0"},
		{"zero", 0, ""},
		{"negative", -1e-4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDecibel(tt.power))
		})
	}
}

func TestFormatRound1(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{12.34, "12.3"},
		{12.36, "12.4"},
		{0, "0.0"},
		{-3.25, "-3.2"},
		{float64(float32(13.8)), "13.8"},
		{math.NaN(), ""},
		{math.Inf(1), ""},
		{math.Inf(-1), ""},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatRound1(tt.in))
		})
	}
}

func TestStatusFromFlag(t *testing.T) {
	tests := []struct {
		flag     int32
		expected string
	}{
		{0, "0"},
		{1024, "9901"},
		{2048, "9910"},
		{3072, "9911"},
		{4096, ""},
		{-1024, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, StatusFromFlag(tt.flag), "flag %d", tt.flag)
	}
}

func TestSiteFromStem(t *testing.T) {
	assert.Equal(t, testSite, SiteFromStem("SPL_CANYCOLO_2025_05_15_112147"))
	assert.Equal(t, "X", SiteFromStem("a_X"))
	assert.Equal(t, "", SiteFromStem("noseparator"))
	assert.Equal(t, "SPL_CANYCOLO_2025_05_15_112147", Stem("/data/spl/SPL_CANYCOLO_2025_05_15_112147.831"))
}

func TestParseAnchor(t *testing.T) {
	tests := []struct {
		name      string
		stem      string
		wantOK    bool
		wantSite  string
		wantStart time.Time
	}{
		{"valid", "SPL_CANYCOLO_2025_05_15_112147", true, testSite, naiveAt(11, 21, 47)},
		{"lowercase site", "SPL_site9_2024_12_31_235959", true, "site9", time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)},
		{"extension left on", "SPL_CANYCOLO_2025_05_15_112147.831", false, "", time.Time{}},
		{"wrong prefix", "NVSPL_CANYCOLO_2025_05_15_11", false, "", time.Time{}},
		{"short time", "SPL_CANYCOLO_2025_05_15_1121", false, "", time.Time{}},
		{"impossible date", "SPL_CANYCOLO_2025_02_30_000000", false, "", time.Time{}},
		{"impossible hour", "SPL_CANYCOLO_2025_05_15_250000", false, "", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, start, ok := ParseAnchor(tt.stem)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSite, site)
			assert.Equal(t, tt.wantStart, start)
		})
	}
}

func TestShiftToAnchor(t *testing.T) {
	t.Run("shifts every row by one delta", func(t *testing.T) {
		rows := []Row{
			NewRow(testSite, naiveAt(11, 0, 0)),
			NewRow(testSite, naiveAt(11, 0, 1)),
			NewRow(testSite, naiveAt(11, 0, 3)),
		}

		delta := ShiftToAnchor(rows, naiveAt(11, 21, 47))

		assert.Equal(t, 21*time.Minute+47*time.Second, delta)
		assert.Equal(t, naiveAt(11, 21, 47), rows[0].Time)
		assert.Equal(t, naiveAt(11, 21, 48), rows[1].Time)
		assert.Equal(t, naiveAt(11, 21, 50), rows[2].Time)
	})

	t.Run("anchor equal to first row is a no-op", func(t *testing.T) {
		rows := []Row{
			NewRow(testSite, naiveAt(11, 21, 47)),
			NewRow(testSite, naiveAt(11, 21, 48)),
		}
		before := []time.Time{rows[0].Time, rows[1].Time}

		delta := ShiftToAnchor(rows, naiveAt(11, 21, 47))

		assert.Zero(t, delta)
		assert.Equal(t, before, []time.Time{rows[0].Time, rows[1].Time})
	})

	t.Run("empty rows", func(t *testing.T) {
		assert.Zero(t, ShiftToAnchor(nil, naiveAt(0, 0, 0)))
	})
}

func TestBucketByHour(t *testing.T) {
	lastDay := time.Date(2025, 5, 15, 23, 59, 58, 0, time.UTC)
	rows := []Row{
		NewRow(testSite, lastDay.Add(time.Second)),
		NewRow(testSite, lastDay.Add(2*time.Second)),
		NewRow(testSite, lastDay),
	}

	buckets := BucketByHour(rows)

	require.Len(t, buckets, 2)
	assert.Equal(t, BucketKey{Site: testSite, Hour: time.Date(2025, 5, 15, 23, 0, 0, 0, time.UTC)}, buckets[0].Key)
	require.Len(t, buckets[0].Rows, 2)
	assert.Equal(t, lastDay, buckets[0].Rows[0].Time)
	assert.Equal(t, lastDay.Add(time.Second), buckets[0].Rows[1].Time)

	assert.Equal(t, BucketKey{Site: testSite, Hour: time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC)}, buckets[1].Key)
	require.Len(t, buckets[1].Rows, 1)
	assert.Equal(t, "NVSPL_CANYCOLO_2025_05_16_00", BucketFileStem(buckets[1].Key))
}

func TestBucketByHour_SeparatesSites(t *testing.T) {
	rows := []Row{
		NewRow("A", naiveAt(10, 0, 0)),
		NewRow("B", naiveAt(10, 0, 1)),
		NewRow("A", naiveAt(10, 0, 2)),
	}

	buckets := BucketByHour(rows)

	require.Len(t, buckets, 2)
	assert.Equal(t, "A", buckets[0].Key.Site)
	assert.Len(t, buckets[0].Rows, 2)
	assert.Equal(t, "B", buckets[1].Key.Site)
}

func TestRow_SetAndRecord(t *testing.T) {
	r := NewRow(testSite, time.Date(2025, 5, 15, 11, 21, 47, 250*int(time.Millisecond), time.UTC))
	r.Set(ColDBA, "41.2")
	r.Set(ThirdOctaveBand(0), "20.1")
	r.Set(ColSiteID, "ignored")

	rec := r.Record()

	require.Len(t, rec, int(ColumnCount))
	assert.Equal(t, testSite, rec[ColSiteID])
	assert.Equal(t, "2025-05-15 11:21:47.250", rec[ColSTime])
	assert.Equal(t, "20.1", rec[ColH12p5])
	assert.Equal(t, "41.2", rec[ColDBA])
	assert.Equal(t, "", rec[ColWindSpeed])
	assert.Equal(t, "dbA", ColDBA.String())
	assert.Equal(t, 33, ThirdOctaveBandCount)
}

func TestEncodeBucket(t *testing.T) {
	r1 := NewRow(testSite, naiveAt(11, 0, 0))
	r1.Set(ColDBA, "35.0")
	r1.Set(ColStatus, "0")
	r2 := NewRow(testSite, naiveAt(11, 0, 1))
	r2.Set(ColWindSpeed, "2.5")

	var buf bytes.Buffer
	err := EncodeBucket(&buf, HourBucket{Key: BucketKey{Site: testSite, Hour: naiveAt(11, 0, 0)}, Rows: []Row{r1, r2}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Header[:], ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "CANYCOLO,2025-05-15 11:00:00.000,"))
	assert.Len(t, strings.Split(lines[1], ","), int(ColumnCount))
	assert.Contains(t, lines[2], ",2.5,")
}

func TestSetClock(t *testing.T) {
	t.Run("set custom clock", func(t *testing.T) {
		fixedTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		mockClock := clockwork.NewFakeClockAt(fixedTime)

		SetClock(mockClock)
		assert.Equal(t, fixedTime, Now())

		mockClock.Advance(3 * time.Second)
		assert.Equal(t, 3*time.Second, Since(fixedTime))

		SetClock(nil)
	})

	t.Run("reset to real clock", func(t *testing.T) {
		SetClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		SetClock(nil)

		now := Now()
		assert.True(t, time.Since(now) < time.Second)
	})
}
