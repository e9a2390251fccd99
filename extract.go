package rawpeek

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rawpeek/rawpeek/internal/mmap"
)

// DefaultConcurrency caps the number of files mapped and processed at once.
// It doubles as the ceiling on simultaneously open file descriptors.
const DefaultConcurrency = 256

// Extractor runs preview extraction over a directory tree.
type Extractor struct {
	concurrency int64
	exts        []string
	soiCheck    bool
	overwrite   bool
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithConcurrency caps the number of files processed at once.
// Values < 1 keep DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n >= 1 {
			e.concurrency = int64(n)
		}
	}
}

// WithExtensions adds recognized RAW extensions beyond the default set.
// Extensions match case-insensitively, with or without a leading dot.
func WithExtensions(exts ...string) Option {
	return func(e *Extractor) {
		e.exts = append(e.exts, exts...)
	}
}

// WithSOICheck controls whether located previews must begin with the JPEG
// start-of-image marker. Enabled by default; disabling accepts previews
// that some vendors store without a leading SOI.
func WithSOICheck(enabled bool) Option {
	return func(e *Extractor) {
		e.soiCheck = enabled
	}
}

// WithOverwrite allows replacing existing output files.
// By default, existing outputs are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(e *Extractor) {
		e.overwrite = overwrite
	}
}

// WithLogger sets the logger for progress and advisory diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor with the default extension set,
// DefaultConcurrency, and the SOI check enabled.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		concurrency: DefaultConcurrency,
		exts:        DefaultExtensions,
		soiCheck:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// log returns the logger, falling back to a discard logger if nil.
func (e *Extractor) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.logger
}

// Run discovers RAW files under inputRoot and writes one preview JPEG per
// file beneath outputRoot, mirroring the directory structure with the
// extension substituted by .jpg.
//
// Discovery and output-directory creation complete sequentially before any
// extraction starts. Extraction then fans out with at most the configured
// concurrency of files mapped at once; a permit is acquired before any I/O
// on a file and released when its task finishes, on success or failure.
//
// A failing file never aborts its siblings. Run returns one Outcome per
// discovered file, in discovery order, and a non-nil error wrapping
// ErrExtractFailed if any file failed. Cancelling ctx stops admission of
// new tasks; tasks already running finish.
func (e *Extractor) Run(ctx context.Context, inputRoot, outputRoot string) ([]Outcome, error) {
	files, err := walk(inputRoot, outputRoot, newExtSet(e.exts))
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", inputRoot, err)
	}
	e.log().Debug("discovered", "files", len(files), "input", inputRoot, "output", outputRoot)

	out := &sink{root: outputRoot, overwrite: e.overwrite}
	outcomes := make([]Outcome, len(files))
	sem := semaphore.NewWeighted(e.concurrency)
	eg, ctx := errgroup.WithContext(ctx)

	for i, f := range files {
		i, f := i, f
		eg.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{Rel: f.Rel, Err: err}
				return err
			}
			defer sem.Release(1)
			outcomes[i] = e.processFile(f, out)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return outcomes, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return outcomes, fmt.Errorf("%w: %d of %d files", ErrExtractFailed, failed, len(files))
	}
	return outcomes, nil
}

// processFile maps one RAW file, locates its largest embedded preview, and
// hands the byte range to the sink. The mapping is scoped to this call.
func (e *Extractor) processFile(f File, out *sink) Outcome {
	e.log().Info("extracting", "file", f.Rel)

	if !out.shouldWrite(f.Rel) {
		e.log().Debug("output exists, skipping", "file", f.Rel)
		return Outcome{Rel: f.Rel, Skipped: true}
	}

	src, err := mmap.Open(f.Path)
	if err != nil {
		return Outcome{Rel: f.Rel, Err: fmt.Errorf("open %s: %w", f.Path, err)}
	}
	defer src.Close()

	p, err := Locate(src.Bytes())
	if err != nil {
		return Outcome{Rel: f.Rel, Err: fmt.Errorf("locate preview in %s: %w", f.Path, err)}
	}

	// Pull the preview pages in ahead of the write. Refused hints cost
	// latency, not correctness.
	if err := src.Advise(p.Offset, p.Length, mmap.WillNeed); err != nil {
		e.log().Debug("advise will-need", "file", f.Rel, "error", err)
	}
	if err := src.Advise(p.Offset, p.Length, mmap.Prefetch); err != nil {
		e.log().Debug("advise prefetch", "file", f.Rel, "error", err)
	}

	data := src.Bytes()[p.Offset : p.Offset+p.Length]
	if e.soiCheck && !hasSOI(data) {
		return Outcome{Rel: f.Rel, Err: fmt.Errorf("%s: %w", f.Path, ErrNotJpeg)}
	}

	n, err := out.write(f.Rel, data)
	if err != nil {
		return Outcome{Rel: f.Rel, Err: err}
	}
	e.log().Debug("wrote", "file", f.Rel, "bytes", n)
	return Outcome{Rel: f.Rel, Written: n}
}
