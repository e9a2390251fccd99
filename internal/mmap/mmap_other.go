//go:build !linux

package mmap

import "os"

// Source holds the file contents read into memory. Platforms without the
// advisory syscalls trade the no-copy property for portability.
type Source struct {
	data []byte
}

// Open reads path into memory and returns a view over it.
func Open(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Source{data: data}, nil
}

// Advise is a no-op; there is no kernel mapping to hint about.
func (s *Source) Advise(off, length int64, advice Advice) error {
	return nil
}

// Close releases the buffered contents.
func (s *Source) Close() error {
	s.data = nil
	return nil
}
