package rawpeek

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions lists the recognized RAW file extensions across camera
// vendors. Matching is case-insensitive; callers may extend the set with
// WithExtensions.
var DefaultExtensions = []string{
	"arw", "cr2", "crw", "dng", "erf", "kdc", "mef", "mrw", "nef", "nrw",
	"orf", "pef", "raf", "raw", "rw2", "rwl", "sr2", "srf", "srw", "x3f",
}

type extSet map[string]struct{}

func newExtSet(exts []string) extSet {
	s := make(extSet, len(exts))
	for _, e := range exts {
		s[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return s
}

func (s extSet) match(name string) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	_, ok := s[strings.ToLower(ext[1:])]
	return ok
}

// walk recursively discovers RAW files under inputRoot and returns them in
// traversal order. For every directory holding at least one match, the
// mirrored directory is created under outputRoot during this sequential
// pass, so output directories always exist before the concurrent phase
// writes into them. Symbolic links are not followed.
func walk(inputRoot, outputRoot string, exts extSet) ([]File, error) {
	var files []File
	mirrored := make(map[string]struct{})

	err := fs.WalkDir(os.DirFS(inputRoot), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() || !exts.match(d.Name()) {
			return nil
		}

		rel := filepath.FromSlash(path)
		dir := filepath.Dir(rel)
		if _, ok := mirrored[dir]; !ok {
			if err := os.MkdirAll(filepath.Join(outputRoot, dir), 0o750); err != nil {
				return fmt.Errorf("mirror directory %s: %w", dir, err)
			}
			mirrored[dir] = struct{}{}
		}

		files = append(files, File{Path: filepath.Join(inputRoot, rel), Rel: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
