package rawpeek

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sink writes preview bytes beneath the output root.
//
// Data goes to a temporary file in the destination directory and is renamed
// to the final path once fully written, so a failed task never leaves a
// partial output behind.
type sink struct {
	root      string
	overwrite bool
}

// dest maps a relative input path to its output path, substituting the
// extension with .jpg.
func (s *sink) dest(rel string) string {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(s.root, base+".jpg")
}

// shouldWrite returns false if the output already exists and overwrite is
// disabled.
func (s *sink) shouldWrite(rel string) bool {
	if s.overwrite {
		return true
	}
	_, err := os.Stat(s.dest(rel))
	return os.IsNotExist(err)
}

// write stores data at the output path for rel and returns the byte count.
// The destination directory must already exist (the walk phase mirrors it).
func (s *sink) write(rel string, data []byte) (int64, error) {
	destPath := s.dest(rel)

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".rawpeek-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write %s: %w", destPath, err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("rename to %s: %w", destPath, err)
	}
	return int64(n), nil
}
