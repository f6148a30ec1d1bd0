// Command validate checks an NVSPL output directory: file naming, header and
// column shape, timestamps against the file's hour, value ranges, and row
// parity with any parquet sidecars.
//
// Usage:
//
//	go run ./cmd/validate -dir NVSPL
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	pqadapter "github.com/couchcryptid/ld831-nvspl-etl/internal/adapter/parquet"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// nvsplNameRe matches output stems like "NVSPL_CANYCOLO_2025_05_15_11".
var nvsplNameRe = regexp.MustCompile(`^NVSPL_([A-Za-z0-9]*)_(\d{4}_\d{2}_\d{2}_\d{2})$`)

var validStatus = []string{"", "0", "9901", "9910", "9911"}

// Level columns hold dB values; anything outside this range is suspect.
const (
	minLevel = -20.0
	maxLevel = 200.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "NVSPL output directory")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*dir, os.Stdout))
}

func run(dir string, out io.Writer) int {
	fmt.Fprintln(out, "=== NVSPL Output Validation ===")
	fmt.Fprintln(out)

	files, err := loadOutputs(dir)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load outputs: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "FATAL: no NVSPL .txt files under %s\n", dir)
		return 1
	}

	phases := []*phase{
		validateNaming(files),
		validateShape(files),
		validateTimestamps(files),
		validateValues(files),
		validateParquetParity(files),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	rows := 0
	for _, f := range files {
		rows += len(f.rows)
	}
	fmt.Fprintf(out, "\nFiles: %d, rows: %d\n", len(files), rows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// outputFile is one NVSPL text file read into memory.
type outputFile struct {
	path   string
	rel    string
	header []string
	rows   [][]string
}

func (f outputFile) stem() string {
	return strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path))
}

func loadOutputs(dir string) ([]outputFile, error) {
	var files []outputFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".txt" {
			return nil
		}
		f, err := loadText(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		f.rel, _ = filepath.Rel(dir, path)
		files = append(files, f)
		return nil
	})
	return files, err
}

func loadText(path string) (outputFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return outputFile{}, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return outputFile{}, err
	}
	f := outputFile{path: path}
	if len(all) > 0 {
		f.header, f.rows = all[0], all[1:]
	}
	return f, nil
}

// ── Phase 1: Naming ──
// File names follow NVSPL_<SITE>_<YYYY>_<MM>_<DD>_<HH> and sit either in the
// output root or in a folder named for their site.

func validateNaming(files []outputFile) *phase {
	p := &phase{name: "Phase 1: File Naming"}
	for _, f := range files {
		m := nvsplNameRe.FindStringSubmatch(f.stem())
		if m == nil {
			p.errorf("%s: name does not match NVSPL_<SITE>_<YYYY>_<MM>_<DD>_<HH>", f.rel)
			continue
		}
		if _, err := time.Parse("2006_01_02_15", m[2]); err != nil {
			p.errorf("%s: bad hour in name: %v", f.rel, err)
		}
		if parent := filepath.Dir(f.rel); parent != "." && parent != m[1] {
			p.errorf("%s: file for site %q is in folder %q", f.rel, m[1], parent)
		}
	}
	return p
}

// ── Phase 2: Shape ──

func validateShape(files []outputFile) *phase {
	p := &phase{name: "Phase 2: Header and Columns"}
	for _, f := range files {
		if !slices.Equal(f.header, domain.Header[:]) {
			p.errorf("%s: header does not match the %d-column NVSPL header", f.rel, domain.ColumnCount)
		}
		if len(f.rows) == 0 {
			p.errorf("%s: no data rows", f.rel)
		}
		for i, row := range f.rows {
			if len(row) != int(domain.ColumnCount) {
				p.errorf("%s line %d: %d columns, want %d", f.rel, i+2, len(row), domain.ColumnCount)
			}
		}
	}
	return p
}

// ── Phase 3: Timestamps ──
// Every row belongs to the file's site and hour, and rows never go back in
// time within a file.

func validateTimestamps(files []outputFile) *phase {
	p := &phase{name: "Phase 3: Timestamps"}
	for _, f := range files {
		m := nvsplNameRe.FindStringSubmatch(f.stem())
		if m == nil {
			continue
		}
		hour, err := time.Parse("2006_01_02_15", m[2])
		if err != nil {
			continue
		}
		var prev time.Time
		for i, row := range f.rows {
			if len(row) <= int(domain.ColSTime) {
				continue
			}
			line := i + 2
			if row[domain.ColSiteID] != m[1] {
				p.errorf("%s line %d: site %q, file is for %q", f.rel, line, row[domain.ColSiteID], m[1])
			}
			t, err := domain.ParseTimestamp(row[domain.ColSTime])
			if err != nil {
				p.errorf("%s line %d: bad STime %q", f.rel, line, row[domain.ColSTime])
				continue
			}
			if !domain.HourFloor(t).Equal(hour) {
				p.errorf("%s line %d: %s is outside hour %s", f.rel, line, row[domain.ColSTime], m[2])
			}
			if t.Before(prev) {
				p.errorf("%s line %d: %s goes back in time", f.rel, line, row[domain.ColSTime])
			}
			prev = t
		}
	}
	return p
}

// ── Phase 4: Values ──

func validateValues(files []outputFile) *phase {
	p := &phase{name: "Phase 4: Value Ranges"}
	levels := []domain.Column{domain.ColDBA, domain.ColDBC, domain.ColDBF}
	for j := 0; j < domain.ThirdOctaveBandCount; j++ {
		levels = append(levels, domain.ThirdOctaveBand(j))
	}

	for _, f := range files {
		for i, row := range f.rows {
			if len(row) != int(domain.ColumnCount) {
				continue
			}
			line := i + 2
			for _, c := range levels {
				checkNumber(p, f.rel, line, c, row[c], minLevel, maxLevel)
			}
			checkNumber(p, f.rel, line, domain.ColWindSpeed, row[domain.ColWindSpeed], 0, 100)
			checkNumber(p, f.rel, line, domain.ColHumidity, row[domain.ColHumidity], -50, 150)
			if !slices.Contains(validStatus, row[domain.ColStatus]) {
				p.errorf("%s line %d: unknown status %q", f.rel, line, row[domain.ColStatus])
			}
		}
	}
	return p
}

func checkNumber(p *phase, rel string, line int, c domain.Column, cell string, lo, hi float64) {
	if cell == "" {
		return
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		p.errorf("%s line %d: %s %q is not a number", rel, line, c, cell)
		return
	}
	if v < lo || v > hi {
		p.errorf("%s line %d: %s %g outside [%g, %g]", rel, line, c, v, lo, hi)
	}
}

// ── Phase 5: Parquet Parity ──
// A parquet sidecar, when present, holds the same rows as its text file.

func validateParquetParity(files []outputFile) *phase {
	p := &phase{name: "Phase 5: Parquet Parity"}
	for _, f := range files {
		path := strings.TrimSuffix(f.path, filepath.Ext(f.path)) + pqadapter.Ext
		recs, err := pqadapter.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			p.errorf("%s: read parquet sidecar: %v", f.rel, err)
			continue
		}
		if len(recs) != len(f.rows) {
			p.errorf("%s: %d text rows, %d parquet rows", f.rel, len(f.rows), len(recs))
			continue
		}
		for i, rec := range recs {
			row := f.rows[i]
			if len(row) <= int(domain.ColSTime) {
				continue
			}
			if got := domain.FormatTimestamp(rec.STime); got != row[domain.ColSTime] || rec.SiteID != row[domain.ColSiteID] {
				p.errorf("%s line %d: parquet row %s/%s, text row %s/%s",
					f.rel, i+2, rec.SiteID, got, row[domain.ColSiteID], row[domain.ColSTime])
			}
		}
	}
	return p
}
