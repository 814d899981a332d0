package gradient

import "sync"

// CacheStats reports how often the cache rebuilt its table.
type CacheStats struct {
	Builds int64  `json:"builds"`
	Hits   int64  `json:"hits"`
	Key    uint64 `json:"key"`
}

// Cache keeps the lookup table for the most recent gradient and rebuilds it
// only when the parsed gradient changes. It is safe for concurrent use.
type Cache struct {
	lut      *LookupTable
	gradient Gradient
	src      string
	key      uint64
	width    int
	builds   int64
	hits     int64
	mu       sync.Mutex
}

// NewCache creates a cache producing tables of the given width.
func NewCache(width int) *Cache {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Cache{width: width}
}

// Get returns the lookup table for src. The source string is compared first;
// on a mismatch the gradient is parsed and its hash compared, so cosmetic
// rewrites of the same gradient do not trigger a rebuild.
func (c *Cache) Get(src string) (*LookupTable, Gradient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lut != nil && src == c.src {
		c.hits++
		return c.lut, c.gradient, nil
	}

	g, err := Parse(src)
	if err != nil {
		return nil, Gradient{}, err
	}
	key := g.Hash()
	if c.lut != nil && key == c.key {
		c.src = src
		c.hits++
		return c.lut, c.gradient, nil
	}

	lut, err := Rasterize(g.Stops, c.width)
	if err != nil {
		return nil, Gradient{}, err
	}
	c.lut, c.gradient, c.src, c.key = lut, g, src, key
	c.builds++
	return lut, g, nil
}

// Width returns the width of the tables this cache builds.
func (c *Cache) Width() int { return c.width }

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Builds: c.builds, Hits: c.hits, Key: c.key}
}
