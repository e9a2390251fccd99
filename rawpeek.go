package rawpeek

import "errors"

// Sentinel errors.
var (
	// ErrContainer is returned when a file does not begin with a recognized
	// TIFF byte-order magic.
	ErrContainer = errors.New("rawpeek: not a TIFF container")

	// ErrBounds is returned when an offset or length read during IFD
	// traversal falls outside the mapped region.
	ErrBounds = errors.New("rawpeek: offset outside mapped region")

	// ErrNoPreview is returned when the IFD chain was fully walked and no
	// directory carried both JPEG interchange tags.
	ErrNoPreview = errors.New("rawpeek: no embedded JPEG found")

	// ErrNotJpeg is returned when a located preview does not begin with the
	// JPEG start-of-image marker and the SOI check is enabled.
	ErrNotJpeg = errors.New("rawpeek: preview missing JPEG SOI marker")

	// ErrExtractFailed is the aggregate error returned by Run when at least
	// one file failed. Per-file causes are in the returned outcomes.
	ErrExtractFailed = errors.New("rawpeek: extraction failed")
)

// File pairs an absolute input path with its path relative to the scan root.
// The relative path determines output placement.
type File struct {
	Path string
	Rel  string
}

// Preview locates an embedded JPEG inside a container by byte range.
type Preview struct {
	Offset int64
	Length int64
}

// Outcome is the per-file result of a run. Exactly one outcome is produced
// for every discovered file; failures are recorded, never dropped.
type Outcome struct {
	// Rel is the file's path relative to the input root.
	Rel string

	// Written is the number of preview bytes written.
	Written int64

	// Skipped reports that an existing output was left in place.
	Skipped bool

	// Err is the failure attributed to this file, nil on success.
	Err error
}
