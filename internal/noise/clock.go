package noise

import (
	"fmt"
	"time"
)

const (
	ChannelPrimary   = "primary"
	ChannelSecondary = "secondary"
)

// ChannelConfig describes one clock channel.
type ChannelConfig struct {
	Name  string
	Seed  float64
	Speed float64
}

// DefaultChannels returns the reference pair of channels running at the same
// speed with different starting times.
func DefaultChannels() []ChannelConfig {
	return []ChannelConfig{
		{Name: ChannelPrimary, Seed: 1, Speed: 1},
		{Name: ChannelSecondary, Seed: 3, Speed: 1},
	}
}

// Channel is an elapsed-time accumulator running at its own speed.
type Channel struct {
	Name      string
	Seed      float64
	Speed     float64
	LastTime  time.Duration
	ElapsedMs float64
	started   bool
}

// Start records now as the reference time without accumulating.
func (c *Channel) Start(now time.Duration) {
	c.LastTime = now
	c.started = true
}

// Tick accumulates (now - LastTime) * Speed. The first tick of a channel that
// was never started only records now.
func (c *Channel) Tick(now time.Duration) {
	if !c.started {
		c.Start(now)
		return
	}
	c.ElapsedMs += float64(now-c.LastTime) / float64(time.Millisecond) * c.Speed
	c.LastTime = now
}

// Value is the time coordinate fed to the noise: Seed + ElapsedMs/1000.
func (c *Channel) Value() float64 {
	return c.Seed + c.ElapsedMs/1000
}

// Reset re-seeds the channel and clears its accumulated time.
func (c *Channel) Reset(seed float64) {
	c.Seed = seed
	c.ElapsedMs = 0
	c.LastTime = 0
	c.started = false
}

// Clocks is an ordered set of named channels. It is owned by a single driver
// and is not safe for concurrent use.
type Clocks struct {
	index    map[string]int
	channels []*Channel
}

// NewClocks builds clocks from channel configs. Names must be unique and
// non-empty.
func NewClocks(cfgs ...ChannelConfig) (*Clocks, error) {
	if len(cfgs) == 0 {
		return nil, &ConfigurationError{Reason: "at least one clock channel is required"}
	}
	c := &Clocks{index: make(map[string]int, len(cfgs))}
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, &ConfigurationError{Reason: "clock channel without a name"}
		}
		if _, dup := c.index[cfg.Name]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate clock channel %q", cfg.Name)}
		}
		c.index[cfg.Name] = len(c.channels)
		c.channels = append(c.channels, &Channel{Name: cfg.Name, Seed: cfg.Seed, Speed: cfg.Speed})
	}
	return c, nil
}

// Start starts every channel at now.
func (c *Clocks) Start(now time.Duration) {
	for _, ch := range c.channels {
		ch.Start(now)
	}
}

// Tick advances every channel to now.
func (c *Clocks) Tick(now time.Duration) {
	for _, ch := range c.channels {
		ch.Tick(now)
	}
}

// Snapshot returns the current time value of every channel.
func (c *Clocks) Snapshot() Snapshot {
	s := make(Snapshot, len(c.channels))
	for _, ch := range c.channels {
		s[ch.Name] = ch.Value()
	}
	return s
}

// Channel looks up a channel by name.
func (c *Clocks) Channel(name string) (*Channel, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.channels[i], true
}

// Names returns the channel names in configuration order.
func (c *Clocks) Names() []string {
	out := make([]string, len(c.channels))
	for i, ch := range c.channels {
		out[i] = ch.Name
	}
	return out
}

// SetSpeed changes one channel's speed multiplier. Time already accumulated
// is kept.
func (c *Clocks) SetSpeed(name string, speed float64) error {
	ch, ok := c.Channel(name)
	if !ok {
		return fmt.Errorf("unknown clock channel %q", name)
	}
	ch.Speed = speed
	return nil
}

// Reset re-seeds the channels named in seeds and restarts all channels.
// Channels not present in seeds keep their seed.
func (c *Clocks) Reset(seeds map[string]float64) {
	for _, ch := range c.channels {
		seed := ch.Seed
		if s, ok := seeds[ch.Name]; ok {
			seed = s
		}
		ch.Reset(seed)
	}
}

// Require checks that every name is a configured channel.
func (c *Clocks) Require(names ...string) error {
	for _, name := range names {
		if _, ok := c.index[name]; !ok {
			return &ConfigurationError{Reason: fmt.Sprintf("octave uses unknown clock channel %q", name)}
		}
	}
	return nil
}
