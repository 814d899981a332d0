// Package config holds the renderer configuration shared by all commands.
package config

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"github.com/MeKo-Tech/noisegradient/internal/render"
)

// DefaultGradient is the palette the renderer starts with.
const DefaultGradient = "linear-gradient(90deg, #060607 0%, #201847 20%, #362A7A 40%, #33A6C7 60%, #BC00B7 80%, #6C00A0 100%)"

// OctaveConfig is one noise layer.
type OctaveConfig struct {
	Channel string  `mapstructure:"channel"`
	FreqX   float64 `mapstructure:"freq_x"`
	FreqY   float64 `mapstructure:"freq_y"`
	Weight  float64 `mapstructure:"weight"`
	Phase   float64 `mapstructure:"phase"`
}

// ChannelConfig is one clock channel.
type ChannelConfig struct {
	Name  string  `mapstructure:"name"`
	Seed  float64 `mapstructure:"seed"`
	Speed float64 `mapstructure:"speed"`
}

// NoiseConfig selects the noise source and the field controls. Scale is the
// zoom control in [0, 20); larger values zoom in.
type NoiseConfig struct {
	Kind            string         `mapstructure:"kind"`
	Octaves         []OctaveConfig `mapstructure:"octaves"`
	Seed            int64          `mapstructure:"seed"`
	Scale           float64        `mapstructure:"scale"`
	FrequencyOffset float64        `mapstructure:"frequency_offset"`
	OffsetX         float64        `mapstructure:"offset_x"`
	OffsetY         float64        `mapstructure:"offset_y"`
	Base            float64        `mapstructure:"base"`
}

// RenderConfig controls rasterization of frames.
type RenderConfig struct {
	PNGCompression string  `mapstructure:"png_compression"`
	Workers        int     `mapstructure:"workers"`
	RenderScale    float64 `mapstructure:"render_scale"`
	Blur           float64 `mapstructure:"blur"`
}

// AnimationConfig controls frame scheduling.
type AnimationConfig struct {
	Frames int     `mapstructure:"frames"`
	FPS    float64 `mapstructure:"fps"`
}

// Config is the full renderer configuration.
type Config struct {
	Gradient  string          `mapstructure:"gradient"`
	Channels  []ChannelConfig `mapstructure:"channels"`
	Noise     NoiseConfig     `mapstructure:"noise"`
	Render    RenderConfig    `mapstructure:"render"`
	Animation AnimationConfig `mapstructure:"animation"`
	LUTWidth  int             `mapstructure:"lut_width"`
	Width     int             `mapstructure:"width"`
	Height    int             `mapstructure:"height"`
}

// Default returns the reference configuration.
func Default() Config {
	octaves := noise.DefaultOctaves()
	oc := make([]OctaveConfig, len(octaves))
	for i, o := range octaves {
		oc[i] = OctaveConfig{Channel: o.Channel, FreqX: o.FreqX, FreqY: o.FreqY, Weight: o.Weight, Phase: o.Phase}
	}
	channels := noise.DefaultChannels()
	cc := make([]ChannelConfig, len(channels))
	for i, c := range channels {
		cc[i] = ChannelConfig{Name: c.Name, Seed: c.Seed, Speed: c.Speed}
	}
	p := noise.DefaultParams()

	return Config{
		Gradient: DefaultGradient,
		LUTWidth: gradient.DefaultWidth,
		Width:    800,
		Height:   600,
		Noise: NoiseConfig{
			Kind:            string(noise.KindSimplex),
			Seed:            1337,
			Scale:           15,
			FrequencyOffset: p.FrequencyOffset,
			OffsetX:         p.OffsetX,
			OffsetY:         p.OffsetY,
			Base:            p.Base,
			Octaves:         oc,
		},
		Channels: cc,
		Render: RenderConfig{
			RenderScale:    1,
			PNGCompression: "default",
		},
		Animation: AnimationConfig{
			Frames: 60,
			FPS:    30,
		},
	}
}

// Load decodes v over the defaults. Lists given in v replace the default
// lists instead of being merged element by element.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	}); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if _, err := gradient.Parse(c.Gradient); err != nil {
		errs = append(errs, err)
	}
	if c.LUTWidth < 2 {
		errs = append(errs, fmt.Errorf("lut_width must be > 1, got %d", c.LUTWidth))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Noise.Scale < 0 || c.Noise.Scale >= 20 {
		errs = append(errs, fmt.Errorf("noise.scale must be within [0, 20), got %g", c.Noise.Scale))
	}
	if !validKind(c.Noise.Kind) {
		errs = append(errs, fmt.Errorf("unknown noise.kind %q (want one of %v)", c.Noise.Kind, noise.Kinds()))
	}
	if len(c.Noise.Octaves) == 0 {
		errs = append(errs, errors.New("noise.octaves must not be empty"))
	}
	if c.Render.RenderScale <= 0 || c.Render.RenderScale > 1 {
		errs = append(errs, fmt.Errorf("render.render_scale must be within (0, 1], got %g", c.Render.RenderScale))
	}
	if c.Render.Blur < 0 {
		errs = append(errs, fmt.Errorf("render.blur must be non-negative, got %g", c.Render.Blur))
	}
	if _, err := render.ParseCompression(c.Render.PNGCompression); err != nil {
		errs = append(errs, fmt.Errorf("render.png_compression: %w", err))
	}
	if c.Animation.Frames <= 0 {
		errs = append(errs, fmt.Errorf("animation.frames must be positive, got %d", c.Animation.Frames))
	}
	if c.Animation.FPS <= 0 {
		errs = append(errs, fmt.Errorf("animation.fps must be positive, got %g", c.Animation.FPS))
	}

	if clocks, err := c.Clocks(); err != nil {
		errs = append(errs, err)
	} else if err := clocks.Require(c.channelNames()...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validKind(k string) bool {
	if k == "" {
		return true
	}
	for _, kind := range noise.Kinds() {
		if string(kind) == k {
			return true
		}
	}
	return false
}

func (c Config) channelNames() []string {
	names := make([]string, 0, len(c.Noise.Octaves))
	for _, o := range c.Noise.Octaves {
		names = append(names, o.Channel)
	}
	return names
}

// Params converts the noise controls into field parameters.
func (c Config) Params() noise.Params {
	return noise.Params{
		Scale:           noise.SpatialScale(c.Noise.Scale),
		FrequencyOffset: c.Noise.FrequencyOffset,
		OffsetX:         c.Noise.OffsetX,
		OffsetY:         c.Noise.OffsetY,
		Base:            c.Noise.Base,
	}
}

// Octaves converts the configured layers.
func (c Config) Octaves() []noise.Octave {
	out := make([]noise.Octave, len(c.Noise.Octaves))
	for i, o := range c.Noise.Octaves {
		out[i] = noise.Octave{Channel: o.Channel, FreqX: o.FreqX, FreqY: o.FreqY, Weight: o.Weight, Phase: o.Phase}
	}
	return out
}

// Field builds the noise field.
func (c Config) Field() (*noise.Field, error) {
	src, err := noise.NewSource(noise.Kind(c.Noise.Kind), c.Noise.Seed)
	if err != nil {
		return nil, err
	}
	return noise.NewField(src, c.Params(), c.Octaves())
}

// Clocks builds fresh clocks from the channel list.
func (c Config) Clocks() (*noise.Clocks, error) {
	cfgs := make([]noise.ChannelConfig, len(c.Channels))
	for i, ch := range c.Channels {
		cfgs[i] = noise.ChannelConfig{Name: ch.Name, Seed: ch.Seed, Speed: ch.Speed}
	}
	return noise.NewClocks(cfgs...)
}

// Seeds returns the configured starting value of every channel.
func (c Config) Seeds() map[string]float64 {
	out := make(map[string]float64, len(c.Channels))
	for _, ch := range c.Channels {
		out[ch.Name] = ch.Seed
	}
	return out
}

// RenderOptions returns the renderer options for the configured frame size.
func (c Config) RenderOptions() render.Options {
	return render.Options{
		Width:       c.Width,
		Height:      c.Height,
		Workers:     c.Render.Workers,
		RenderScale: c.Render.RenderScale,
		Blur:        float32(c.Render.Blur),
	}
}
