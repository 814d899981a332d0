package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"github.com/MeKo-Tech/noisegradient/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompression(t *testing.T) {
	tests := map[string]png.CompressionLevel{
		"":        png.DefaultCompression,
		"default": png.DefaultCompression,
		"speed":   png.BestSpeed,
		"BEST":    png.BestCompression,
		"none":    png.NoCompression,
	}
	for in, want := range tests {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("ultra")
	assert.Error(t, err)
}

func TestFolderWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	w, err := NewFolderWriter(dir, png.BestSpeed)
	require.NoError(t, err)

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(1, 1, color.NRGBA{200, 100, 50, 255})

	loc, err := w.WriteFrame(7, 0, img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_00007.png"), loc)
	require.NoError(t, w.Close())

	f, err := os.Open(loc)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{200, 100, 50, 255}, color.NRGBAModel.Convert(decoded.At(1, 1)))

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGIFWriter_OrdersFrames(t *testing.T) {
	lut := testLUT(t)
	path := filepath.Join(t.TempDir(), "anim.gif")
	w, err := NewGIFWriter(path, lut, 25)
	require.NoError(t, err)

	frame := func(v uint8) *image.NRGBA {
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
		return img
	}

	_, err = w.WriteFrame(2, 0, frame(255))
	require.NoError(t, err)
	_, err = w.WriteFrame(0, 0, frame(0))
	require.NoError(t, err)
	_, err = w.WriteFrame(1, 0, frame(128))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	require.Len(t, anim.Image, 3)
	assert.Equal(t, []int{4, 4, 4}, anim.Delay)

	first := color.NRGBAModel.Convert(anim.Image[0].At(0, 0)).(color.NRGBA)
	last := color.NRGBAModel.Convert(anim.Image[2].At(0, 0)).(color.NRGBA)
	assert.Less(t, first.R, last.R)
}

func TestGIFWriter_Empty(t *testing.T) {
	w, err := NewGIFWriter(filepath.Join(t.TempDir(), "a.gif"), testLUT(t), 10)
	require.NoError(t, err)
	assert.Error(t, w.Close())

	_, err = NewGIFWriter(filepath.Join(t.TempDir(), "b.gif"), testLUT(t), 0)
	assert.Error(t, err)
}

func TestPaletteFromLUT(t *testing.T) {
	p := PaletteFromLUT(testLUT(t), 16)
	require.Len(t, p, 16)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, p[0])
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, p[15])
}

type memWriter struct {
	frames map[int]time.Duration
	err    error
}

func (m *memWriter) WriteFrame(index int, ts time.Duration, _ image.Image) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.frames[index] = ts
	return "mem", nil
}

func (m *memWriter) Close() error { return nil }

func TestJob_RenderFrame(t *testing.T) {
	r, err := New(testField(t, constSource(0.5)), testLUT(t), Options{Width: 2, Height: 2}, nil)
	require.NoError(t, err)

	out := &memWriter{frames: map[int]time.Duration{}}
	job := &Job{Renderer: r, Out: out}

	loc, err := job.RenderFrame(context.Background(), worker.Task{Index: 3, Timestamp: time.Second, Clocks: noise.Snapshot{}})
	require.NoError(t, err)
	assert.Equal(t, "mem", loc)
	assert.Equal(t, time.Second, out.frames[3])

	out.err = errors.New("disk full")
	_, err = job.RenderFrame(context.Background(), worker.Task{Index: 4})
	assert.ErrorContains(t, err, "frame 4")
	assert.ErrorIs(t, err, out.err)
}
