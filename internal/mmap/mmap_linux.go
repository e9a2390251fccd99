package mmap

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Source is a read-only memory mapping of a file.
type Source struct {
	f    *os.File
	data []byte
}

// Open maps path read-only. The whole mapping is immediately advised for
// random access, since callers touch only the IFD chain and one preview
// range out of a file that may be hundreds of megabytes.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		// Zero-length mappings are invalid; an empty view is still usable.
		return &Source{f: f}, nil
	}
	if size != int64(int(size)) {
		_ = f.Close()
		return nil, fmt.Errorf("mmap %s: %d bytes exceeds address space", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	s := &Source{f: f, data: data}
	// Hint failures never fail the open.
	_ = s.Advise(0, size, Random)
	return s, nil
}

// Advise forwards an access-pattern hint for the given range to the kernel,
// as fadvise on the file and madvise on the page-aligned mapping span.
// Errors are advisory; callers log and continue.
func (s *Source) Advise(off, length int64, advice Advice) error {
	if s.f == nil || len(s.data) == 0 {
		return nil
	}
	off, length, ok := s.clamp(off, length)
	if !ok {
		return nil
	}

	var fadv, madv int
	switch advice {
	case Random:
		fadv, madv = unix.FADV_RANDOM, unix.MADV_RANDOM
	case WillNeed:
		fadv, madv = unix.FADV_WILLNEED, unix.MADV_WILLNEED
	case Prefetch:
		fadv, madv = unix.FADV_WILLNEED, unix.MADV_POPULATE_READ
	default:
		return fmt.Errorf("mmap: unknown advice %d", advice)
	}

	if err := unix.Fadvise(int(s.f.Fd()), off, length, fadv); err != nil {
		return fmt.Errorf("fadvise: %w", err)
	}

	start, end := pageSpan(off, length, int64(len(s.data)))
	err := unix.Madvise(s.data[start:end], madv)
	if errors.Is(err, unix.EINVAL) && madv == unix.MADV_POPULATE_READ {
		// Pre-5.14 kernels reject MADV_POPULATE_READ.
		err = unix.Madvise(s.data[start:end], unix.MADV_WILLNEED)
	}
	if err != nil {
		return fmt.Errorf("madvise: %w", err)
	}
	return nil
}

// pageSpan widens [off, off+length) to page boundaries, capped at size.
// madvise requires a page-aligned start address and the mapping base is
// already page-aligned.
func pageSpan(off, length, size int64) (int64, int64) {
	page := int64(os.Getpagesize())
	start := off &^ (page - 1)
	end := (off + length + page - 1) &^ (page - 1)
	if end > size {
		end = size
	}
	return start, end
}

// Close unmaps the view and closes the file. The view must not be used
// afterwards.
func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	var err error
	if len(s.data) > 0 {
		err = unix.Munmap(s.data)
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f, s.data = nil, nil
	return err
}
