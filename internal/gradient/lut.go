package gradient

import (
	"fmt"
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultWidth is the lookup table width used when none is configured.
const DefaultWidth = 1000

// LookupTable is a gradient resampled into Width evenly spaced RGBA samples.
type LookupTable struct {
	Samples []color.NRGBA
	Width   int
}

// anchor is a stop with a resolved position and color.
type anchor struct {
	col   colorful.Color
	alpha float64
	pos   float64
}

// ResolvePositions assigns a position to every stop. When no stop has a
// position they are spread evenly by index. Otherwise a missing first position
// is 0, a missing last position is 1, and interior runs of missing positions
// are spread evenly between their positioned neighbours. Explicit positions are
// clamped to [0,1] and never decrease.
func ResolvePositions(stops []ColorStop) []float64 {
	n := len(stops)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		if stops[0].Position != nil {
			out[0] = clamp01(*stops[0].Position)
		}
		return out
	}

	known := make([]bool, n)
	for i, s := range stops {
		if s.Position != nil {
			out[i] = clamp01(*s.Position)
			known[i] = true
		}
	}
	if !known[0] {
		out[0], known[0] = 0, true
	}
	if !known[n-1] {
		out[n-1], known[n-1] = 1, true
	}

	for i := 1; i < n; i++ {
		if known[i] && out[i] < out[i-1] {
			out[i] = out[i-1]
		}
		if known[i] {
			continue
		}
		// i-1 is resolved; find the next known stop and spread the run evenly.
		j := i
		for !known[j] {
			j++
		}
		end := math.Max(out[j], out[i-1])
		span := float64(j - i + 1)
		for k := i; k < j; k++ {
			out[k] = out[i-1] + (end-out[i-1])*float64(k-i+1)/span
			known[k] = true
		}
	}
	return out
}

// Rasterize builds a width-sample lookup table from the stops. Colors are
// resolved with ParseColor and interpolated channel-wise in sRGB with
// straight alpha.
func Rasterize(stops []ColorStop, width int) (*LookupTable, error) {
	if len(stops) == 0 {
		return nil, &ConfigurationError{Reason: "no color stops"}
	}
	if width < 2 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("width must be > 1, got %d", width)}
	}

	positions := ResolvePositions(stops)
	anchors := make([]anchor, len(stops))
	for i, s := range stops {
		c, err := ParseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		anchors[i] = anchor{
			col:   colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255},
			alpha: float64(c.A) / 255,
			pos:   positions[i],
		}
	}

	lut := &LookupTable{Width: width, Samples: make([]color.NRGBA, width)}
	last := float64(width - 1)
	seg := 0
	for i := 0; i < width; i++ {
		t := float64(i) / last
		for seg < len(anchors)-1 && anchors[seg+1].pos < t {
			seg++
		}
		lut.Samples[i] = colorAt(anchors, seg, t)
	}
	return lut, nil
}

// RasterizeString parses src and rasterizes its stops.
func RasterizeString(src string, width int) (*LookupTable, error) {
	g, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Rasterize(g.Stops, width)
}

func colorAt(anchors []anchor, seg int, t float64) color.NRGBA {
	a := anchors[seg]
	if seg == len(anchors)-1 || t <= a.pos {
		return toNRGBA(a.col, a.alpha)
	}
	b := anchors[seg+1]
	if t >= b.pos {
		return toNRGBA(b.col, b.alpha)
	}
	f := (t - a.pos) / (b.pos - a.pos)
	return toNRGBA(a.col.BlendRgb(b.col, f), a.alpha+(b.alpha-a.alpha)*f)
}

func toNRGBA(c colorful.Color, alpha float64) color.NRGBA {
	c = c.Clamped()
	return color.NRGBA{
		R: uint8(math.Round(c.R * 255)),
		G: uint8(math.Round(c.G * 255)),
		B: uint8(math.Round(c.B * 255)),
		A: uint8(math.Round(clamp01(alpha) * 255)),
	}
}

// At samples the table at t in [0,1] with clamp-to-edge addressing and linear
// interpolation between neighbouring samples.
func (l *LookupTable) At(t float64) color.NRGBA {
	if t <= 0 || math.IsNaN(t) {
		return l.Samples[0]
	}
	if t >= 1 {
		return l.Samples[l.Width-1]
	}
	x := t * float64(l.Width-1)
	i := int(x)
	f := x - float64(i)
	if f == 0 || i >= l.Width-1 {
		return l.Samples[i]
	}
	a, b := l.Samples[i], l.Samples[i+1]
	return color.NRGBA{
		R: lerp8(a.R, b.R, f),
		G: lerp8(a.G, b.G, f),
		B: lerp8(a.B, b.B, f),
		A: lerp8(a.A, b.A, f),
	}
}

// Image returns the table as a Width x height texture, each row identical.
func (l *LookupTable) Image(height int) *image.NRGBA {
	if height < 1 {
		height = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, l.Width, height))
	for y := 0; y < height; y++ {
		for x, c := range l.Samples {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func lerp8(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
