package met

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func utf16LE(t *testing.T, s string, bom bool) []byte {
	t.Helper()
	policy := unicode.IgnoreBOM
	if bom {
		policy = unicode.UseBOM
	}
	out, err := unicode.UTF16(unicode.LittleEndian, policy).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

// tabFixture is a ten-row tab-delimited export with a header.
func tabFixture() string {
	var b strings.Builder
	b.WriteString("Date Time, GMT-06:00\tWind Speed, m/s\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "5/15/2025 11:%02d:00\t%d.5\n", i, i)
	}
	return b.String()
}

func at(h, m, s int) time.Time {
	return time.Date(2025, 5, 15, h, m, s, 0, time.UTC)
}

func TestSniffEncoding(t *testing.T) {
	tests := []struct {
		head     []byte
		expected Encoding
	}{
		{[]byte{0xFF, 0xFE, 'a', 0}, EncodingUTF16LE},
		{[]byte{0xFE, 0xFF, 0, 'a'}, EncodingUTF16BE},
		{[]byte{0xEF, 0xBB, 0xBF, 'a'}, EncodingUTF8BOM},
		{[]byte("abc"), EncodingUTF8},
		{nil, EncodingUTF8},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, SniffEncoding(tt.head))
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("utf-16 with bom", func(t *testing.T) {
		text, err := Decode(utf16LE(t, "a\tb\n", true), EncodingUTF16LE)
		require.NoError(t, err)
		assert.Equal(t, "a\tb\n", text)
	})

	t.Run("utf-8 bom stripped", func(t *testing.T) {
		text, err := Decode([]byte("\xEF\xBB\xBFa,b"), EncodingUTF8BOM)
		require.NoError(t, err)
		assert.Equal(t, "a,b", text)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := Decode([]byte{0xFF, 0xFE, 0xFD}, EncodingUTF8)

		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, EncodingUTF8, encErr.Encoding)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := Decode([]byte("a"), Encoding("latin-9"))
		require.Error(t, err)
	})
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name     string
		sample   string
		expected rune
		fallback bool
	}{
		{"tab", tabFixture(), '\t', false},
		{"comma", "a,b,c\n1,2,3\n4,5,6\n", ',', false},
		{"semicolon with commas in values", "t;v\n1;2,5\n3;4,5\n", ';', false},
		{"title line tolerated", "Plot Title: X\n" + strings.Repeat("1,2\n", 20), ',', false},
		{"inconsistent prefers tab", "a\tb\nc,d\ne;f\n", '\t', true},
		{"inconsistent without tab", "a,b\nc;d\ne\n", ',', true},
		{"nothing", "abc\n", ';', true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SniffDelimiter(tt.sample)
			assert.Equal(t, tt.expected, d)
			if tt.fallback {
				var de *DelimiterError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.expected, de.Fallback)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse_UTF16TabRecoveredByDelimiterStage(t *testing.T) {
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1, Delimiter: ','}, nil)

	res := l.Parse(utf16LE(t, tabFixture(), true))

	require.Len(t, res.Samples, 10)
	assert.Equal(t, 10, res.Stats.Parsed)
	assert.Equal(t, StageDelimiter, res.Stage)
	assert.Equal(t, EncodingUTF16LE, res.Encoding)
	assert.Equal(t, '\t', res.Delimiter)
	assert.Equal(t, 0, res.Attempts[0].Stats.Parsed)
	assert.Equal(t, at(11, 0, 0), res.Samples[0].Time)
	assert.InDelta(t, 9.5, res.Samples[9].WindSpeed, 1e-9)
}

func TestParse_UTF16TabSniffed(t *testing.T) {
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1}, nil)

	res := l.Parse(utf16LE(t, tabFixture(), true))

	assert.Equal(t, StageSniffed, res.Stage)
	assert.Equal(t, 10, res.Stats.Parsed)
	assert.Equal(t, 1, res.Stats.HeaderSkips)
	assert.Len(t, res.Attempts, 1)
}

func TestParse_EncodingStage(t *testing.T) {
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1}, nil)

	res := l.Parse(utf16LE(t, tabFixture(), false))

	assert.Equal(t, StageEncoding, res.Stage)
	assert.Equal(t, EncodingUTF16LE, res.Encoding)
	assert.Equal(t, 10, res.Stats.Parsed)
}

func TestParse_ManualFallback(t *testing.T) {
	// The unbalanced quote swallows the whole file for any CSV reader.
	data := "\"Plot Title: Lathrop\n" +
		"5/15/2025 11:00:00,3.5\n" +
		"5/15/2025 11:00:01\t3.6\n" +
		"5/15/2025 11:00:02;3.7\n" +
		"5/15/2025 11:00:03\n"
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1}, nil)

	res := l.Parse([]byte(data))

	assert.Equal(t, StageManual, res.Stage)
	require.Len(t, res.Samples, 3)
	assert.Equal(t, Stats{HeaderSkips: 1, ShortRows: 1, Parsed: 3}, res.Stats)
	assert.InDelta(t, 3.7, res.Samples[2].WindSpeed, 1e-9)
}

func TestParse_RowRules(t *testing.T) {
	data := strings.Join([]string{
		"Plot Title: CANY COLO",
		"#,Date Time,Avg m/s,Gust m/s",
		"idx,Date Time GMT-06:00,Avg,Gust",
		"3,5/15/2025 11:00:20,4.0,10",
		"1,5/15/2025 11:00:00,2.0,5",
		"2,5/15/2025 11:00:10,3.0,n/a",
		"4,not a time,1.0,2",
		"5,5/15/2025 11:00:30",
		"",
	}, "\n")
	l := NewLoader(Options{TimeColumn: 1, WindColumn: 3, Units: "MPH", ConvertMPH: true}, nil)

	res := l.Parse([]byte(data))

	assert.Equal(t, Stats{HeaderSkips: 3, ShortRows: 1, TimeFailures: 1, WindFailures: 1, Parsed: 2}, res.Stats)
	require.Len(t, res.Samples, 2)
	assert.Equal(t, at(11, 0, 0), res.Samples[0].Time)
	assert.InDelta(t, 5*MphToMps, res.Samples[0].WindSpeed, 1e-9)
	assert.Equal(t, at(11, 0, 20), res.Samples[1].Time)
	assert.InDelta(t, 10*MphToMps, res.Samples[1].WindSpeed, 1e-9)
}

func TestParse_MphWithoutConversion(t *testing.T) {
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1, Units: UnitsMPH}, nil)

	res := l.Parse([]byte("2025-05-15 11:00:00,5\n2025-05-15 11:00:01,6\n"))

	require.Len(t, res.Samples, 2)
	assert.InDelta(t, 5.0, res.Samples[0].WindSpeed, 1e-9)
}

func TestParse_NothingParses(t *testing.T) {
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1}, nil)

	res := l.Parse([]byte("hello\nworld\n"))

	assert.Empty(t, res.Samples)
	assert.Equal(t, StageSniffed, res.Stage)
	assert.Len(t, res.Attempts, 1+2+3+1)
	assert.Error(t, res.SniffErr)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "met.csv")
	require.NoError(t, os.WriteFile(path, utf16LE(t, tabFixture(), true), 0o600))
	l := NewLoader(Options{TimeColumn: 0, WindColumn: 1}, nil)

	res, err := l.Load(path)
	require.NoError(t, err)
	assert.Len(t, res.Samples, 10)

	_, err = l.Load(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "sniffed", StageSniffed.String())
	assert.Equal(t, "manual", StageManual.String())
	assert.Equal(t, "unknown", Stage(9).String())
}
