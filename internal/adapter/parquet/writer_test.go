package parquet

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

var hour = time.Date(2025, 5, 15, 11, 0, 0, 0, time.UTC)

func sampleRow(sec int) domain.Row {
	r := domain.NewRow("CANYCOLO", hour.Add(time.Duration(sec)*time.Second))
	r.Set(domain.ColH1000, "35.2")
	r.Set(domain.ColDBA, "40.0")
	r.Set(domain.ColWindSpeed, "3.1")
	r.Set(domain.ColGChar1, "OBAnorm")
	r.Set(domain.ColGChar3, "LD831_10442v2.301")
	r.Set(domain.ColGainAdjustment, "0")
	r.Set(domain.ColStatus, "0")
	return r
}

func TestToRecord(t *testing.T) {
	rec := ToRecord(sampleRow(0))

	assert.Equal(t, "CANYCOLO", rec.SiteID)
	assert.Equal(t, hour, rec.STime)
	assert.Equal(t, map[string]float64{"H1000": 35.2, "dbA": 40.0}, rec.Levels)
	require.NotNil(t, rec.WindSpeed)
	assert.InDelta(t, 3.1, *rec.WindSpeed, 1e-9)
	assert.Nil(t, rec.Voltage)
	assert.Nil(t, rec.Humidity)
	assert.Equal(t, "OBAnorm", rec.OBARange)
	assert.Equal(t, "LD831_10442v2.301", rec.Device)
	assert.Equal(t, "0", rec.Gain)
}

func TestWriter_RoundTrip(t *testing.T) {
	for _, codec := range []string{"snappy", "zstd", "gzip", "none"} {
		t.Run(codec, func(t *testing.T) {
			dir := t.TempDir()
			w := NewWriter(dir, true, codec, slog.New(slog.NewTextHandler(io.Discard, nil)))
			b := domain.HourBucket{
				Key:  domain.BucketKey{Site: "CANYCOLO", Hour: hour},
				Rows: []domain.Row{sampleRow(0), sampleRow(1), sampleRow(2)},
			}

			require.NoError(t, w.LoadBucket(context.Background(), b))

			path := filepath.Join(dir, "CANYCOLO", "NVSPL_CANYCOLO_2025_05_15_11.parquet")
			assert.Equal(t, path, w.Path(b.Key))
			got, err := ReadFile(path)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.True(t, got[2].STime.Equal(hour.Add(2*time.Second)))
			assert.InDelta(t, 35.2, got[0].Levels["H1000"], 1e-9)
			assert.Nil(t, got[1].TempOut)
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.parquet"))
	assert.Error(t, err)
}
