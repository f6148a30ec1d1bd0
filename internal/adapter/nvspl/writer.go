// Package nvspl writes hour buckets as NVSPL text files.
package nvspl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// Ext is the NVSPL text file extension.
const Ext = ".txt"

// OutputPath places the file for key under dir, inside a per-site folder
// when siteFolders is set and the site is known.
func OutputPath(dir string, siteFolders bool, key domain.BucketKey, ext string) string {
	if siteFolders && key.Site != "" {
		dir = filepath.Join(dir, key.Site)
	}
	return filepath.Join(dir, domain.BucketFileStem(key)+ext)
}

// WriteFileAtomic writes path through a temporary file in the same
// directory, so readers never observe a partial file.
func WriteFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Writer stores each bucket as NVSPL_<SITE>_<YYYY>_<MM>_<DD>_<HH>.txt,
// replacing any earlier file for the same hour.
// It implements pipeline.BucketLoader.
type Writer struct {
	dir         string
	siteFolders bool
	logger      *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, siteFolders bool, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, siteFolders: siteFolders, logger: logger}
}

// Path is where the bucket for key is written.
func (w *Writer) Path(key domain.BucketKey) string {
	return OutputPath(w.dir, w.siteFolders, key, Ext)
}

func (w *Writer) LoadBucket(_ context.Context, b domain.HourBucket) error {
	path := w.Path(b.Key)
	err := WriteFileAtomic(path, func(f io.Writer) error {
		bw := bufio.NewWriter(f)
		if err := domain.EncodeBucket(bw, b); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.logger.Info("wrote", "path", path, "rows", len(b.Rows))
	return nil
}
