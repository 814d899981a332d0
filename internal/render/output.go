package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/worker"
)

// FrameWriter receives rendered frames. Implementations must accept frames in
// any order and from several goroutines.
type FrameWriter interface {
	// WriteFrame stores one frame and returns where it went.
	WriteFrame(index int, ts time.Duration, img image.Image) (string, error)
	Close() error
}

// ParseCompression maps a level name to a png.CompressionLevel.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed", "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return 0, fmt.Errorf("unknown png compression %q (want default, speed, best or none)", name)
	}
}

// EncodePNG encodes img with the given compression level.
func EncodePNG(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FolderWriter writes each frame as frame_00000.png into a directory.
type FolderWriter struct {
	dir   string
	level png.CompressionLevel
}

// NewFolderWriter creates dir if needed.
func NewFolderWriter(dir string, level png.CompressionLevel) (*FolderWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FolderWriter{dir: dir, level: level}, nil
}

// FramePath returns the file a frame index is written to.
func (w *FolderWriter) FramePath(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("frame_%05d.png", index))
}

// WriteFrame encodes into a temp file next to the target and renames it into
// place, so readers never see a partial frame.
func (w *FolderWriter) WriteFrame(index int, _ time.Duration, img image.Image) (string, error) {
	data, err := EncodePNG(img, w.level)
	if err != nil {
		return "", err
	}
	target := w.FramePath(index)
	if err := WriteFileAtomic(target, data); err != nil {
		return "", err
	}
	return target, nil
}

// Close is a no-op; every frame is complete once WriteFrame returns.
func (w *FolderWriter) Close() error { return nil }

// WriteFileAtomic writes data to a temp file next to target and renames it
// into place.
func WriteFileAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".frame-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        // nolint:errcheck
		os.Remove(tmpPath) // nolint:errcheck
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) // nolint:errcheck
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath) // nolint:errcheck
		return fmt.Errorf("failed to move %s into place: %w", target, err)
	}
	return nil
}

// GIFWriter collects frames in memory and encodes an animated GIF on Close.
// The palette is sampled from the gradient's lookup table, so every frame is
// quantized to colors the gradient can actually produce.
type GIFWriter struct {
	frames  map[int]*image.Paletted
	palette color.Palette
	path    string
	delay   int
	mu      sync.Mutex
}

// NewGIFWriter prepares a GIF at path playing at fps.
func NewGIFWriter(path string, lut *gradient.LookupTable, fps float64) (*GIFWriter, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %g", fps)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &GIFWriter{
		path:    path,
		palette: PaletteFromLUT(lut, 256),
		delay:   max(1, int(math.Round(100/fps))),
		frames:  make(map[int]*image.Paletted),
	}, nil
}

// PaletteFromLUT samples n evenly spaced colors from the table.
func PaletteFromLUT(lut *gradient.LookupTable, n int) color.Palette {
	if n < 2 {
		n = 2
	}
	p := make(color.Palette, n)
	for i := range p {
		p[i] = lut.At(float64(i) / float64(n-1))
	}
	return p
}

// WriteFrame quantizes img and keeps it until Close.
func (w *GIFWriter) WriteFrame(index int, _ time.Duration, img image.Image) (string, error) {
	pal := image.NewPaletted(img.Bounds(), w.palette)
	draw.FloydSteinberg.Draw(pal, img.Bounds(), img, img.Bounds().Min)

	w.mu.Lock()
	w.frames[index] = pal
	w.mu.Unlock()
	return fmt.Sprintf("%s#%d", w.path, index), nil
}

// Close writes all collected frames in index order.
func (w *GIFWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return fmt.Errorf("gif %s: no frames written", w.path)
	}

	indices := make([]int, 0, len(w.frames))
	for i := range w.frames {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	anim := &gif.GIF{}
	for _, i := range indices {
		anim.Image = append(anim.Image, w.frames[i])
		anim.Delay = append(anim.Delay, w.delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return fmt.Errorf("failed to encode gif: %w", err)
	}
	return WriteFileAtomic(w.path, buf.Bytes())
}

// Job renders scheduled frames and hands them to a FrameWriter. It
// implements worker.Generator.
type Job struct {
	Renderer *Renderer
	Out      FrameWriter
}

// RenderFrame renders one task and writes it out.
func (j *Job) RenderFrame(ctx context.Context, task worker.Task) (string, error) {
	img, err := j.Renderer.Render(ctx, task.Clocks)
	if err != nil {
		return "", fmt.Errorf("frame %d: %w", task.Index, err)
	}
	loc, err := j.Out.WriteFrame(task.Index, task.Timestamp, img)
	if err != nil {
		return "", fmt.Errorf("frame %d: %w", task.Index, err)
	}
	return loc, nil
}
