package render

import (
	"context"
	"image"
	"image/color"
	"runtime"
	"testing"

	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource returns the same value everywhere.
type constSource float64

func (c constSource) Eval3(_, _, _ float64) float64 { return float64(c) }

// rampSource returns x so that columns map to increasing field values.
type rampSource struct{}

func (rampSource) Eval3(x, _, _ float64) float64 { return x }

func testLUT(t *testing.T) *gradient.LookupTable {
	t.Helper()
	lut, err := gradient.RasterizeString("linear-gradient(90deg, black, white)", 256)
	require.NoError(t, err)
	return lut
}

func testField(t *testing.T, src noise.Source) *noise.Field {
	t.Helper()
	f, err := noise.NewField(src, noise.Params{Scale: 1, Base: 0}, []noise.Octave{
		{Channel: noise.ChannelPrimary, FreqX: 1, FreqY: 1, Weight: 1},
	})
	require.NoError(t, err)
	return f
}

func TestNew_Validation(t *testing.T) {
	lut := testLUT(t)
	field := testField(t, constSource(0.5))

	tests := []struct {
		name  string
		field *noise.Field
		lut   *gradient.LookupTable
		opts  Options
	}{
		{name: "nil field", lut: lut, opts: Options{Width: 2, Height: 2}},
		{name: "nil lut", field: field, opts: Options{Width: 2, Height: 2}},
		{name: "zero width", field: field, lut: lut, opts: Options{Height: 2}},
		{name: "render scale too large", field: field, lut: lut, opts: Options{Width: 2, Height: 2, RenderScale: 1.5}},
		{name: "negative blur", field: field, lut: lut, opts: Options{Width: 2, Height: 2, Blur: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.field, tt.lut, tt.opts, nil)
			assert.Error(t, err)
		})
	}

	r, err := New(field, lut, Options{Width: 2, Height: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Options().RenderScale)
	assert.Positive(t, r.Options().Workers)
}

func TestRender_ConstantField(t *testing.T) {
	r, err := New(testField(t, constSource(0.5)), testLUT(t), Options{Width: 8, Height: 5}, nil)
	require.NoError(t, err)

	img, err := r.Render(context.Background(), noise.Snapshot{noise.ChannelPrimary: 1})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 8, 5), img.Bounds())

	want := testLUT(t).At(0.5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, want, img.NRGBAAt(x, y))
		}
	}
}

func TestRender_ClampsField(t *testing.T) {
	lut := testLUT(t)

	hi, err := New(testField(t, constSource(3)), lut, Options{Width: 2, Height: 2}, nil)
	require.NoError(t, err)
	img, err := hi.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(0, 0))

	lo, err := New(testField(t, constSource(-3)), lut, Options{Width: 2, Height: 2}, nil)
	require.NoError(t, err)
	img, err = lo.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(0, 0))
}

func TestRender_SamplesPixelCenters(t *testing.T) {
	f, err := noise.NewField(rampSource{}, noise.Params{Scale: 0.1}, []noise.Octave{
		{Channel: noise.ChannelPrimary, FreqX: 1, FreqY: 1, Weight: 1},
	})
	require.NoError(t, err)
	lut := testLUT(t)

	r, err := New(f, lut, Options{Width: 10, Height: 1}, nil)
	require.NoError(t, err)
	img, err := r.Render(context.Background(), nil)
	require.NoError(t, err)

	for x := 0; x < 10; x++ {
		assert.Equal(t, lut.At((float64(x)+0.5)*0.1), img.NRGBAAt(x, 0), "column %d", x)
	}
}

func TestRender_DeterministicAcrossWorkers(t *testing.T) {
	src, err := noise.NewSource(noise.KindSimplex, 7)
	require.NoError(t, err)
	f, err := noise.NewField(src, noise.DefaultParams(), noise.DefaultOctaves())
	require.NoError(t, err)
	lut, err := gradient.RasterizeString("linear-gradient(90deg, #060607 0%, #201847 20%, #362A7A 40%, #33A6C7 60%, #BC00B7 80%, #6C00A0 100%)", gradient.DefaultWidth)
	require.NoError(t, err)

	snap := noise.Snapshot{noise.ChannelPrimary: 1.25, noise.ChannelSecondary: 3.5}

	one, err := New(f, lut, Options{Width: 40, Height: 30, Workers: 1}, nil)
	require.NoError(t, err)
	many, err := New(f, lut, Options{Width: 40, Height: 30, Workers: 8}, nil)
	require.NoError(t, err)

	a, err := one.Render(context.Background(), snap)
	require.NoError(t, err)
	b, err := many.Render(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestRender_ReducedScaleKeepsSize(t *testing.T) {
	r, err := New(testField(t, constSource(0.25)), testLUT(t), Options{Width: 16, Height: 12, RenderScale: 0.5, Blur: 1}, nil)
	require.NoError(t, err)

	img, err := r.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 12), img.Bounds())
}

func TestRender_Cancelled(t *testing.T) {
	r, err := New(testField(t, constSource(0.5)), testLUT(t), Options{Width: 4, Height: 64, Workers: 1}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderer_WithHelpers(t *testing.T) {
	r, err := New(testField(t, constSource(0.5)), testLUT(t), Options{Width: 4, Height: 4}, nil)
	require.NoError(t, err)

	r2, err := r.WithSize(8, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, r2.Options().Width)
	assert.Equal(t, 4, r.Options().Width)

	_, err = r.WithSize(0, 2)
	assert.Error(t, err)

	white, err := gradient.RasterizeString("linear-gradient(white, white)", 2)
	require.NoError(t, err)
	img, err := r.WithLUT(white).Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(0, 0))

	other := testField(t, constSource(0))
	assert.Same(t, other, r.WithField(other).Field())
}

func TestPostProcess_NoOp(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	assert.Same(t, src, PostProcess(src, 3, 3, 0))
}

func TestPostProcess_BlurKeepsUniformImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	c := color.NRGBA{40, 80, 120, 255}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			src.SetNRGBA(x, y, c)
		}
	}
	out := PostProcess(src, 12, 12, 1.5)
	require.Equal(t, image.Rect(0, 0, 12, 12), out.Bounds())

	got := out.NRGBAAt(6, 6)
	assert.InDelta(t, 40, int(got.R), 1)
	assert.InDelta(t, 80, int(got.G), 1)
	assert.InDelta(t, 120, int(got.B), 1)
}

func TestRowWorkers(t *testing.T) {
	cpus := runtime.NumCPU()

	assert.Equal(t, 3, RowWorkers(8, 3), "explicit value wins")
	assert.Equal(t, cpus, RowWorkers(1, 0))
	assert.Equal(t, cpus, RowWorkers(0, 0))
	assert.Equal(t, 1, RowWorkers(cpus, 0), "one frame per CPU leaves one row worker each")
	assert.Equal(t, 1, RowWorkers(cpus*4, 0))
	assert.LessOrEqual(t, RowWorkers(2, 0)*2, max(cpus, 2))
}
