// Package mmap provides zero-copy, read-only views of whole files with
// best-effort access-pattern advice to the operating system.
//
// On Linux files are memory-mapped and hints are forwarded via fadvise and
// madvise. Elsewhere the file is read into memory once and all hints are
// no-ops; advice is never a correctness requirement.
package mmap

// Advice communicates an expected access pattern over a byte range.
type Advice int

const (
	// Random disables aggressive sequential readahead for the range.
	Random Advice = iota

	// WillNeed tells the kernel the range will be read soon.
	WillNeed

	// Prefetch asks the kernel to populate the range's pages eagerly so
	// subsequent reads see no page-fault stalls.
	Prefetch
)

// Bytes returns the whole-file view. The slice is valid until Close and
// must not be retained past it.
func (s *Source) Bytes() []byte {
	return s.data
}

// Size returns the length of the view in bytes.
func (s *Source) Size() int64 {
	return int64(len(s.data))
}

// clamp trims an advisory range to the view, returning ok=false when
// nothing remains. Out-of-range hints are ignored rather than rejected.
func (s *Source) clamp(off, length int64) (int64, int64, bool) {
	size := int64(len(s.data))
	if off < 0 {
		length += off
		off = 0
	}
	if off >= size || length <= 0 {
		return 0, 0, false
	}
	if off+length > size {
		length = size - off
	}
	return off, length, true
}
