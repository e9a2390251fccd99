package rawpeek

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()

	img1 := buildTIFF(t, binary.LittleEndian, 1300, []ifdEntry{
		{tag: tagJpegOffset, value: 1000},
		{tag: tagJpegLength, value: 200},
	})
	placeJpeg(img1, 1000, 200)
	writeFile(t, in, "a/img1.ARW", img1)

	img2 := buildTIFF(t, binary.BigEndian, 1300,
		[]ifdEntry{{tag: tagJpegOffset, value: 600}, {tag: tagJpegLength, value: 150}},
		[]ifdEntry{{tag: tagJpegOffset, value: 800}, {tag: tagJpegLength, value: 500}},
	)
	placeJpeg(img2, 600, 150)
	placeJpeg(img2, 800, 500)
	writeFile(t, in, "a/img2.NEF", img2)

	outcomes, err := NewExtractor().Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.NoError(t, o.Err, o.Rel)
	}

	got1, err := os.ReadFile(filepath.Join(out, "a", "img1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, img1[1000:1200], got1)

	// The larger of img2's two previews wins.
	got2, err := os.ReadFile(filepath.Join(out, "a", "img2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, img2[800:1300], got2)
}

func TestRunFailureIsolation(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()

	good := buildTIFF(t, binary.LittleEndian, 600, []ifdEntry{
		{tag: tagJpegOffset, value: 400},
		{tag: tagJpegLength, value: 100},
	})
	placeJpeg(good, 400, 100)
	writeFile(t, in, "good.arw", good)

	corrupt := make([]byte, 600)
	copy(corrupt, "GARBAGE")
	writeFile(t, in, "corrupt.arw", corrupt)

	outcomes, err := NewExtractor().Run(context.Background(), in, out)
	require.ErrorIs(t, err, ErrExtractFailed)
	require.Len(t, outcomes, 2)

	byRel := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byRel[o.Rel] = o
	}
	assert.ErrorIs(t, byRel["corrupt.arw"].Err, ErrContainer)
	assert.NoError(t, byRel["good.arw"].Err)
	assert.Equal(t, int64(100), byRel["good.arw"].Written)

	// The good file was still extracted; the corrupt one left nothing behind.
	assert.FileExists(t, filepath.Join(out, "good.jpg"))
	assert.NoFileExists(t, filepath.Join(out, "corrupt.jpg"))
}

func TestRunSOICheck(t *testing.T) {
	t.Parallel()

	newInput := func(t *testing.T) (string, []byte) {
		in := t.TempDir()
		img := buildTIFF(t, binary.LittleEndian, 600, []ifdEntry{
			{tag: tagJpegOffset, value: 400},
			{tag: tagJpegLength, value: 100},
		})
		// Preview range deliberately lacks the SOI marker.
		writeFile(t, in, "img.arw", img)
		return in, img
	}

	t.Run("strict by default", func(t *testing.T) {
		t.Parallel()
		in, _ := newInput(t)
		outcomes, err := NewExtractor().Run(context.Background(), in, t.TempDir())
		require.ErrorIs(t, err, ErrExtractFailed)
		require.Len(t, outcomes, 1)
		assert.ErrorIs(t, outcomes[0].Err, ErrNotJpeg)
	})

	t.Run("lenient when disabled", func(t *testing.T) {
		t.Parallel()
		in, img := newInput(t)
		out := t.TempDir()
		outcomes, err := NewExtractor(WithSOICheck(false)).Run(context.Background(), in, out)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		require.NoError(t, outcomes[0].Err)

		got, err := os.ReadFile(filepath.Join(out, "img.jpg"))
		require.NoError(t, err)
		assert.Equal(t, img[400:500], got)
	})
}

func TestRunSkipsExistingOutput(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()

	img := buildTIFF(t, binary.LittleEndian, 600, []ifdEntry{
		{tag: tagJpegOffset, value: 400},
		{tag: tagJpegLength, value: 100},
	})
	placeJpeg(img, 400, 100)
	writeFile(t, in, "img.arw", img)
	writeFile(t, out, "img.jpg", []byte("existing"))

	outcomes, err := NewExtractor().Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)

	got, err := os.ReadFile(filepath.Join(out, "img.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("existing"), got)

	outcomes, err = NewExtractor(WithOverwrite(true)).Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Skipped)

	got, err = os.ReadFile(filepath.Join(out, "img.jpg"))
	require.NoError(t, err)
	assert.Equal(t, img[400:500], got)
}

func TestRunEmptyTree(t *testing.T) {
	t.Parallel()

	outcomes, err := NewExtractor().Run(context.Background(), t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

// gaugeHandler tracks how many file tasks are in flight by pairing the
// "extracting" progress event with the "wrote" completion event.
type gaugeHandler struct {
	mu       sync.Mutex
	inFlight int
	max      int
}

func (h *gaugeHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *gaugeHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch r.Message {
	case "extracting":
		h.inFlight++
		if h.inFlight > h.max {
			h.max = h.inFlight
		}
	case "wrote":
		h.inFlight--
	}
	return nil
}

func (h *gaugeHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *gaugeHandler) WithGroup(string) slog.Handler      { return h }

func TestRunBoundedConcurrency(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()

	img := buildTIFF(t, binary.LittleEndian, 600, []ifdEntry{
		{tag: tagJpegOffset, value: 400},
		{tag: tagJpegLength, value: 100},
	})
	placeJpeg(img, 400, 100)
	const total = 24
	for i := 0; i < total; i++ {
		writeFile(t, in, fmt.Sprintf("d%d/img%d.arw", i%4, i), img)
	}

	h := &gaugeHandler{}
	ex := NewExtractor(WithConcurrency(3), WithLogger(slog.New(h)))
	outcomes, err := ex.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, outcomes, total)
	for _, o := range outcomes {
		require.NoError(t, o.Err, o.Rel)
	}

	assert.LessOrEqual(t, h.max, 3, "more than N tasks ran at once")
	assert.Zero(t, h.inFlight)
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	img := buildTIFF(t, binary.LittleEndian, 600, []ifdEntry{
		{tag: tagJpegOffset, value: 400},
		{tag: tagJpegLength, value: 100},
	})
	placeJpeg(img, 400, 100)
	writeFile(t, in, "img.arw", img)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor().Run(ctx, in, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}
