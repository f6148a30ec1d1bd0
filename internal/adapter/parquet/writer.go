// Package parquet writes hour buckets as columnar sidecar files next to the
// NVSPL text output.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	pq "github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/adapter/nvspl"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// Ext is the sidecar file extension.
const Ext = ".parquet"

// Record is one NVSPL row in columnar form. Levels holds every non-empty
// band and weighted level in dB keyed by its NVSPL column name.
type Record struct {
	SiteID    string             `parquet:"site_id"`
	STime     time.Time          `parquet:"stime,timestamp(millisecond)"`
	Levels    map[string]float64 `parquet:"levels"`
	Voltage   *float64           `parquet:"voltage,optional"`
	WindSpeed *float64           `parquet:"wind_speed,optional"`
	WindDir   *float64           `parquet:"wind_dir,optional"`
	TempIns   *float64           `parquet:"temp_ins,optional"`
	TempOut   *float64           `parquet:"temp_out,optional"`
	Humidity  *float64           `parquet:"humidity,optional"`
	Device    string             `parquet:"device"`
	OBARange  string             `parquet:"oba_range"`
	Gain      string             `parquet:"gain_adjustment"`
	Status    string             `parquet:"status"`
}

var levelColumns = func() []domain.Column {
	var cols []domain.Column
	for j := 0; j < domain.ThirdOctaveBandCount; j++ {
		cols = append(cols, domain.ThirdOctaveBand(j))
	}
	return append(cols, domain.ColDBA, domain.ColDBC, domain.ColDBF)
}()

// ToRecord converts r. Cells that do not parse as numbers are left out.
func ToRecord(r domain.Row) Record {
	rec := Record{
		SiteID:    r.Site,
		STime:     r.Time,
		Levels:    make(map[string]float64),
		Voltage:   number(r.Get(domain.ColVoltage)),
		WindSpeed: number(r.Get(domain.ColWindSpeed)),
		WindDir:   number(r.Get(domain.ColWindDir)),
		TempIns:   number(r.Get(domain.ColTempIns)),
		TempOut:   number(r.Get(domain.ColTempOut)),
		Humidity:  number(r.Get(domain.ColHumidity)),
		Device:    r.Get(domain.ColGChar3),
		OBARange:  r.Get(domain.ColGChar1),
		Gain:      r.Get(domain.ColGainAdjustment),
		Status:    r.Get(domain.ColStatus),
	}
	for _, c := range levelColumns {
		if v := number(r.Get(c)); v != nil {
			rec.Levels[c.String()] = *v
		}
	}
	return rec
}

func number(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Compression maps a configured codec name to a writer option. Unknown
// names fall back to snappy.
func Compression(name string) pq.WriterOption {
	switch strings.ToLower(name) {
	case "zstd":
		return pq.Compression(&pq.Zstd)
	case "gzip", "gz":
		return pq.Compression(&pq.Gzip)
	case "none":
		return pq.Compression(&pq.Uncompressed)
	default:
		return pq.Compression(&pq.Snappy)
	}
}

// Writer stores each bucket as NVSPL_<SITE>_<YYYY>_<MM>_<DD>_<HH>.parquet.
// It implements pipeline.BucketLoader.
type Writer struct {
	dir         string
	siteFolders bool
	compression pq.WriterOption
	logger      *slog.Logger
}

// NewWriter creates a Writer rooted at dir using the named compression.
func NewWriter(dir string, siteFolders bool, compression string, logger *slog.Logger) *Writer {
	return &Writer{
		dir:         dir,
		siteFolders: siteFolders,
		compression: Compression(compression),
		logger:      logger,
	}
}

// Path is where the bucket for key is written.
func (w *Writer) Path(key domain.BucketKey) string {
	return nvspl.OutputPath(w.dir, w.siteFolders, key, Ext)
}

func (w *Writer) LoadBucket(_ context.Context, b domain.HourBucket) error {
	records := make([]Record, len(b.Rows))
	for i, r := range b.Rows {
		records[i] = ToRecord(r)
	}

	path := w.Path(b.Key)
	err := nvspl.WriteFileAtomic(path, func(f io.Writer) error {
		pw := pq.NewGenericWriter[Record](f, w.compression)
		if _, err := pw.Write(records); err != nil {
			return fmt.Errorf("write records: %w", err)
		}
		return pw.Close()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.logger.Debug("wrote", "path", path, "rows", len(records))
	return nil
}

// ReadFile loads every record of a sidecar file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	gr := pq.NewGenericReader[Record](f)
	defer gr.Close()

	out := make([]Record, 0, gr.NumRows())
	for {
		// Fresh each round: decoded maps and pointers must not be shared.
		batch := make([]Record, 1024)
		n, err := gr.Read(batch)
		out = append(out, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	}
	return out, nil
}
