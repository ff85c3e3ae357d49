package clients

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/videoflix/videoflix-api/log"
)

const tempFilePattern = "videoflix-*"

// TempScope is a scoped acquisition of local scratch space. Release is
// safe to call multiple times and on all exit paths, including panics:
//
//	scope := clients.NewTempScope()
//	defer scope.Release()
type TempScope struct {
	paths []string
}

func NewTempScope() *TempScope {
	return &TempScope{}
}

// File creates a temp file with the given suffix and registers it for
// cleanup. Only the path is returned; the file is closed.
func (s *TempScope) File(suffix string) (string, error) {
	f, err := os.CreateTemp(os.TempDir(), tempFilePattern+suffix)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	s.paths = append(s.paths, f.Name())
	return f.Name(), nil
}

// Dir creates a temp directory and registers it for recursive cleanup.
func (s *TempScope) Dir() (string, error) {
	dir, err := os.MkdirTemp(os.TempDir(), tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	s.paths = append(s.paths, dir)
	return dir, nil
}

func (s *TempScope) Release() {
	for _, p := range s.paths {
		if err := os.RemoveAll(p); err != nil {
			log.LogNoJobID("failed to remove temp path", "path", p, "err", err)
		}
	}
	s.paths = nil
}

// CleanUpStaleTempFiles removes scratch files left behind by jobs that
// were interrupted by a restart. Only files older than minAge and
// matching our temp pattern are touched.
func CleanUpStaleTempFiles(dir string, minAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(dir, tempFilePattern))
	if err != nil {
		return err
	}
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > minAge {
			if err := os.RemoveAll(file); err != nil {
				log.LogNoJobID("failed to remove stale temp file", "path", file, "err", err)
			}
		}
	}
	return nil
}
