// Package render turns a noise field and a gradient lookup table into frames.
package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"runtime"

	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"golang.org/x/sync/errgroup"
)

// Options control frame size and post-processing.
type Options struct {
	Width  int
	Height int
	// Workers bounds the number of rows sampled concurrently (default: number of CPUs).
	Workers int
	// RenderScale in (0,1] samples the field at reduced resolution and
	// upscales the result; 0 means 1.
	RenderScale float64
	// Blur is a Gaussian blur sigma applied after upscaling; 0 disables it.
	Blur float32
}

// RowWorkers returns the row concurrency for each of frames renders running
// at once. A configured value > 0 is kept; otherwise the CPUs are divided
// among the frames, with at least one worker each.
func RowWorkers(frames, configured int) int {
	if configured > 0 {
		return configured
	}
	return max(1, runtime.NumCPU()/max(1, frames))
}

// Renderer samples a field once per pixel and maps the value through a
// lookup table. A Renderer is immutable and safe for concurrent use.
type Renderer struct {
	field  *noise.Field
	lut    *gradient.LookupTable
	logger *slog.Logger
	opts   Options
}

// New validates the options and creates a renderer.
func New(field *noise.Field, lut *gradient.LookupTable, opts Options, logger *slog.Logger) (*Renderer, error) {
	if field == nil {
		return nil, fmt.Errorf("render: nil field")
	}
	if lut == nil || len(lut.Samples) == 0 {
		return nil, fmt.Errorf("render: empty lookup table")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("render: frame size must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if opts.RenderScale == 0 {
		opts.RenderScale = 1
	}
	if opts.RenderScale < 0 || opts.RenderScale > 1 {
		return nil, fmt.Errorf("render: render scale must be within (0,1], got %g", opts.RenderScale)
	}
	if opts.Blur < 0 {
		return nil, fmt.Errorf("render: blur must be non-negative, got %g", opts.Blur)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Renderer{field: field, lut: lut, opts: opts, logger: logger}, nil
}

// Options returns the effective options.
func (r *Renderer) Options() Options { return r.opts }

// Field returns the renderer's noise field.
func (r *Renderer) Field() *noise.Field { return r.field }

// WithField returns a renderer drawing a different field.
func (r *Renderer) WithField(f *noise.Field) *Renderer {
	c := *r
	c.field = f
	return &c
}

// WithLUT returns a renderer using a different lookup table.
func (r *Renderer) WithLUT(lut *gradient.LookupTable) *Renderer {
	c := *r
	c.lut = lut
	return &c
}

// WithSize returns a renderer producing frames of a different size.
func (r *Renderer) WithSize(width, height int) (*Renderer, error) {
	opts := r.opts
	opts.Width, opts.Height = width, height
	return New(r.field, r.lut, opts, r.logger)
}

// Render produces one frame for the given clock snapshot. Rows are sampled
// concurrently; every pixel depends only on its coordinates and clocks.
func (r *Renderer) Render(ctx context.Context, clocks noise.Snapshot) (*image.NRGBA, error) {
	scale := r.opts.RenderScale
	sw := max(1, int(math.Round(float64(r.opts.Width)*scale)))
	sh := max(1, int(math.Round(float64(r.opts.Height)*scale)))
	// Map sample grid coordinates back into full-resolution pixel space.
	sx := float64(r.opts.Width) / float64(sw)
	sy := float64(r.opts.Height) / float64(sh)

	img := image.NewNRGBA(image.Rect(0, 0, sw, sh))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for y := 0; y < sh; y++ {
		y := y
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fy := (float64(y) + 0.5) * sy
			row := img.Pix[y*img.Stride : y*img.Stride+sw*4]
			for x := 0; x < sw; x++ {
				v := r.field.Sample((float64(x)+0.5)*sx, fy, clocks)
				c := r.lut.At(v)
				row[x*4+0] = c.R
				row[x*4+1] = c.G
				row[x*4+2] = c.B
				row[x*4+3] = c.A
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := PostProcess(img, r.opts.Width, r.opts.Height, r.opts.Blur)
	r.log().Debug("frame rendered", "width", r.opts.Width, "height", r.opts.Height, "sampled", fmt.Sprintf("%dx%d", sw, sh))
	return out, nil
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
