package clients

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTempScopeReleasesEverything(t *testing.T) {
	scope := NewTempScope()

	file, err := scope.File(".mp4")
	require.NoError(t, err)
	require.FileExists(t, file)
	require.Equal(t, ".mp4", filepath.Ext(file))

	dir, err := scope.Dir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_000.ts"), []byte("x"), 0644))

	scope.Release()
	require.NoFileExists(t, file)
	require.NoDirExists(t, dir)

	// releasing twice is safe
	scope.Release()
}

func TestCleanUpStaleTempFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "videoflix-stale.mp4")
	require.NoError(t, os.WriteFile(stale, nil, 0644))
	old := time.Now().Add(-12 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(dir, "videoflix-fresh.mp4")
	require.NoError(t, os.WriteFile(fresh, nil, 0644))

	unrelated := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(unrelated, nil, 0644))

	require.NoError(t, CleanUpStaleTempFiles(dir, 6*time.Hour))
	require.NoFileExists(t, stale)
	require.FileExists(t, fresh)
	require.FileExists(t, unrelated)
}
