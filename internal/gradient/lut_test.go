package gradient

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(v float64) *float64 { return &v }

func TestRasterizeSingleStopIsUniform(t *testing.T) {
	g, err := Parse("linear-gradient(red)")
	require.NoError(t, err)

	lut, err := Rasterize(g.Stops, 64)
	require.NoError(t, err)
	require.Len(t, lut.Samples, 64)
	for i, c := range lut.Samples {
		assert.Equal(t, color.NRGBA{255, 0, 0, 255}, c, "sample %d", i)
	}
}

func TestRasterizeBlackToWhite(t *testing.T) {
	lut, err := RasterizeString("linear-gradient(90deg, #000000 0%, #ffffff 100%)", 256)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, lut.Samples[0])
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, lut.Samples[255])
	for i, c := range lut.Samples {
		assert.Equal(t, uint8(i), c.R, "sample %d", i)
	}
}

func TestRasterizeStopPlacementAndLinearity(t *testing.T) {
	stops := []ColorStop{
		{Color: "red", Position: pos(0)},
		{Color: "lime", Position: pos(0.25)},
		{Color: "blue", Position: pos(0.5)},
		{Color: "white", Position: pos(1)},
	}
	lut, err := Rasterize(stops, 101)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, lut.At(0))
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, lut.At(0.25))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, lut.At(0.5))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, lut.At(1))

	// Between red and lime every sample lies on the straight line between them.
	for i := 1; i < 25; i++ {
		f := float64(i) / 25
		c := lut.Samples[i]
		assert.InDelta(t, 255*(1-f), float64(c.R), 1, "R at %d", i)
		assert.InDelta(t, 255*f, float64(c.G), 1, "G at %d", i)
		assert.Equal(t, uint8(0), c.B)
		assert.Equal(t, uint8(255), c.A)
	}
}

func TestRasterizeEvenDistributionWithoutPositions(t *testing.T) {
	lut, err := RasterizeString("linear-gradient(to right, red, lime, blue)", 201)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, lut.Samples[0])
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, lut.Samples[100])
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, lut.Samples[200])
}

func TestRasterizeInterpolatesAlpha(t *testing.T) {
	lut, err := RasterizeString("linear-gradient(rgba(0,0,0,0) 0%, rgba(0,0,0,1) 100%)", 3)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), lut.Samples[0].A)
	assert.Equal(t, uint8(128), lut.Samples[1].A)
	assert.Equal(t, uint8(255), lut.Samples[2].A)
}

func TestRasterizeIsDeterministic(t *testing.T) {
	src := "linear-gradient(90deg, #060607 0%, #201847 20%, #362A7A 40%, #33A6C7 60%, #BC00B7 80%, #6C00A0 100%)"
	a, err := RasterizeString(src, DefaultWidth)
	require.NoError(t, err)
	b, err := RasterizeString(src, DefaultWidth)
	require.NoError(t, err)
	assert.Equal(t, a.Samples, b.Samples)
}

func TestRasterizeErrors(t *testing.T) {
	_, err := Rasterize(nil, 10)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	_, err = Rasterize([]ColorStop{{Color: "red"}}, 1)
	require.True(t, errors.As(err, &cfgErr))

	_, err = Rasterize([]ColorStop{{Color: "red"}, {Color: "not-a-color"}}, 10)
	var colErr *ColorError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, "not-a-color", colErr.Literal)
}

func TestResolvePositions(t *testing.T) {
	tests := []struct {
		name  string
		stops []ColorStop
		want  []float64
	}{
		{
			name:  "none positioned",
			stops: []ColorStop{{Color: "a"}, {Color: "b"}, {Color: "c"}},
			want:  []float64{0, 0.5, 1},
		},
		{
			name:  "single",
			stops: []ColorStop{{Color: "a"}},
			want:  []float64{0},
		},
		{
			name: "interior gaps",
			stops: []ColorStop{
				{Color: "a"}, {Color: "b", Position: pos(0.2)}, {Color: "c"},
				{Color: "d"}, {Color: "e", Position: pos(0.8)}, {Color: "f"},
			},
			want: []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
		},
		{
			name:  "decreasing positions are raised",
			stops: []ColorStop{{Color: "a", Position: pos(0.5)}, {Color: "b", Position: pos(0.2)}},
			want:  []float64{0.5, 0.5},
		},
		{
			name:  "out of range positions are clamped",
			stops: []ColorStop{{Color: "a", Position: pos(-0.5)}, {Color: "b", Position: pos(1.5)}},
			want:  []float64{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePositions(tt.stops)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "position %d", i)
			}
		})
	}
}

func TestLookupTableAtClampsAndInterpolates(t *testing.T) {
	lut := &LookupTable{Width: 2, Samples: []color.NRGBA{{0, 0, 0, 255}, {200, 100, 50, 255}}}

	assert.Equal(t, lut.Samples[0], lut.At(-1))
	assert.Equal(t, lut.Samples[0], lut.At(math.NaN()))
	assert.Equal(t, lut.Samples[1], lut.At(2))
	assert.Equal(t, color.NRGBA{100, 50, 25, 255}, lut.At(0.5))
}

func TestLookupTableImage(t *testing.T) {
	lut, err := RasterizeString("linear-gradient(red, blue)", 16)
	require.NoError(t, err)

	img := lut.Image(2)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, lut.Samples[15], img.NRGBAAt(15, 1))
}
