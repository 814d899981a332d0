package noise

import "fmt"

// ConfigurationError reports an unusable field or clock configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "noise configuration: " + e.Reason
}

const (
	// maxScaleControl and unitLength map the editor's scale slider
	// onto a spatial frequency: larger control values zoom in.
	maxScaleControl = 20.0
	unitLength      = 0.0015
)

// SpatialScale converts a zoom control in (0, 20] to the field's spatial scale.
func SpatialScale(control float64) float64 {
	return (maxScaleControl - control) * unitLength
}

// Octave is one weighted, frequency-scaled noise layer. Phase is multiplied by
// the field's frequency offset and added to the x coordinate. Channel names
// the clock that supplies the layer's time coordinate.
type Octave struct {
	Channel string
	FreqX   float64
	FreqY   float64
	Weight  float64
	Phase   float64
}

// Params are the per-configuration spatial controls of a Field.
type Params struct {
	Scale           float64
	FrequencyOffset float64
	OffsetX         float64
	OffsetY         float64
	Base            float64
}

// DefaultParams returns the reference controls.
func DefaultParams() Params {
	return Params{
		Scale:           SpatialScale(15),
		FrequencyOffset: 0.01,
		Base:            0.5,
	}
}

// DefaultOctaves returns the reference three-layer configuration.
func DefaultOctaves() []Octave {
	return []Octave{
		{Channel: ChannelPrimary, FreqX: 1.0, FreqY: 1.00, Weight: 0.30, Phase: 1},
		{Channel: ChannelSecondary, FreqX: 0.6, FreqY: 0.85, Weight: 0.26, Phase: -2},
		{Channel: ChannelPrimary, FreqX: 0.4, FreqY: 0.70, Weight: 0.22, Phase: 3},
	}
}

// Snapshot maps clock channel names to their current time values. It is
// read-only while a frame is sampled.
type Snapshot map[string]float64

// Field is a fractal sum of coherent-noise octaves. It holds no mutable
// state; time enters only through the Snapshot passed to Sample.
type Field struct {
	src     Source
	octaves []Octave
	params  Params
}

// NewField validates the octaves and builds a field over src.
func NewField(src Source, params Params, octaves []Octave) (*Field, error) {
	if src == nil {
		return nil, &ConfigurationError{Reason: "nil noise source"}
	}
	if len(octaves) == 0 {
		return nil, &ConfigurationError{Reason: "at least one octave is required"}
	}
	for i, o := range octaves {
		if o.Channel == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("octave %d has no clock channel", i)}
		}
	}

	own := make([]Octave, len(octaves))
	copy(own, octaves)
	return &Field{src: src, octaves: own, params: params}, nil
}

// WithParams returns a field with new controls sharing the same source and
// octaves.
func (f *Field) WithParams(p Params) *Field {
	return &Field{src: f.src, octaves: f.octaves, params: p}
}

// Params returns the field's controls.
func (f *Field) Params() Params { return f.params }

// Octaves returns a copy of the field's layers.
func (f *Field) Octaves() []Octave {
	out := make([]Octave, len(f.octaves))
	copy(out, f.octaves)
	return out
}

// Channels returns the distinct clock channels the octaves read, in order of
// first use.
func (f *Field) Channels() []string {
	seen := make(map[string]bool, len(f.octaves))
	var out []string
	for _, o := range f.octaves {
		if !seen[o.Channel] {
			seen[o.Channel] = true
			out = append(out, o.Channel)
		}
	}
	return out
}

// Sample evaluates the field at (x, y). Channels absent from clocks sample at
// time 0. The result is clamped to [0, 1].
func (f *Field) Sample(x, y float64, clocks Snapshot) float64 {
	p := f.params
	sum := p.Base
	px := (x + p.OffsetX) * p.Scale
	py := (y + p.OffsetY) * p.Scale
	for _, o := range f.octaves {
		n := f.src.Eval3(
			px*o.FreqX+o.Phase*p.FrequencyOffset,
			py*o.FreqY,
			clocks[o.Channel],
		)
		sum += n * o.Weight
	}
	return clamp01(sum)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
