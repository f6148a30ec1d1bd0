package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/merge"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/met"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/pipeline"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "SPL_B_2025_05_15_000000.831"))
	touch(t, filepath.Join(dir, "SPL_A_2025_05_15_000000.831"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "site2", "SPL_C_2025_05_15_000000.831"))

	t.Run("top level only", func(t *testing.T) {
		files, err := pipeline.Discover(dir, false)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "SPL_A_2025_05_15_000000.831"),
			filepath.Join(dir, "SPL_B_2025_05_15_000000.831"),
		}, files)
	})

	t.Run("recursive", func(t *testing.T) {
		files, err := pipeline.Discover(dir, true)
		require.NoError(t, err)
		assert.Len(t, files, 3)
		assert.Equal(t, filepath.Join(dir, "site2", "SPL_C_2025_05_15_000000.831"), files[2])
	})

	t.Run("single file", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		files, err := pipeline.Discover(path, false)
		require.NoError(t, err)
		assert.Equal(t, []string{path}, files)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := pipeline.Discover(filepath.Join(dir, "nope"), false)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadWind(t *testing.T) {
	dir := t.TempDir()
	loader := met.NewLoader(met.Options{TimeColumn: 0, WindColumn: 1, Units: met.UnitsMPS}, discardLogger())
	opts := merge.Options{Method: merge.MethodBin, Stamp: merge.StampEnd}

	t.Run("samples", func(t *testing.T) {
		path := filepath.Join(dir, "met.csv")
		csv := "Date Time,Wind\n2025-05-15 11:01:00,3.0\n2025-05-15 11:02:00,4.0\n"
		require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))
		metrics := newTestMetrics()

		merger, res := pipeline.LoadWind(loader, path, opts, discardLogger(), metrics)

		require.NotNil(t, merger)
		assert.Len(t, res.Samples, 2)
		first, _, ok := merger.Span()
		require.True(t, ok)
		assert.Equal(t, at(11, 0, 0), first)
	})

	t.Run("unusable file", func(t *testing.T) {
		path := filepath.Join(dir, "junk.csv")
		require.NoError(t, os.WriteFile(path, []byte("nothing,here\n"), 0o600))

		merger, _ := pipeline.LoadWind(loader, path, opts, discardLogger(), newTestMetrics())
		assert.Nil(t, merger)
	})

	t.Run("missing file", func(t *testing.T) {
		merger, _ := pipeline.LoadWind(loader, filepath.Join(dir, "none.csv"), opts, discardLogger(), newTestMetrics())
		assert.Nil(t, merger)
	})
}
