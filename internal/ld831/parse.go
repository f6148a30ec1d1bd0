package ld831

import (
	"fmt"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// Options controls how a log is normalized.
type Options struct {
	// Location is the device clock's time zone. Nil means time.Local.
	Location *time.Location
}

// Result is the output of parsing one log.
type Result struct {
	File   domain.ConvertedFile
	Layout Layout
	Stats  DecodeStats
}

// ParseFile reads, decodes, normalizes and anchors the log at path.
func ParseFile(path string, opts Options) (Result, error) {
	b, err := Open(path)
	if err != nil {
		return Result{}, err
	}
	res, err := Parse(b, domain.Stem(path), opts)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", path, err)
	}
	res.File.Path = path
	return res, nil
}

// Parse decodes b. The site comes from stem, and when stem follows the
// SPL_<SITE>_<YYYY>_<MM>_<DD>_<HHMMSS> contract every row is shifted so the
// first one starts at the declared instant.
func Parse(b *BinaryLog, stem string, opts Options) (Result, error) {
	layout, err := Resolve(b)
	if err != nil {
		return Result{Layout: layout}, err
	}

	site := domain.SiteFromStem(stem)
	dec := NewDecoder(b, layout)
	var rows []domain.Row
	for dec.Next() {
		rows = append(rows, Normalize(dec.Record(), layout, site, opts.Location))
	}

	file := domain.ConvertedFile{
		Site:    site,
		Variant: layout.Variant.String(),
		Rows:    rows,
	}
	if _, anchor, ok := domain.ParseAnchor(stem); ok && len(rows) > 0 {
		file.Anchored = true
		file.Shift = domain.ShiftToAnchor(rows, anchor)
	}
	return Result{File: file, Layout: layout, Stats: dec.Stats()}, nil
}
