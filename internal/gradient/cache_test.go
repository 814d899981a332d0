package gradient

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRebuildsOnlyOnChange(t *testing.T) {
	c := NewCache(32)

	first, _, err := c.Get("linear-gradient(to right, red, blue)")
	require.NoError(t, err)

	again, _, err := c.Get("linear-gradient(to right, red, blue)")
	require.NoError(t, err)
	assert.Same(t, first, again)

	// Same gradient spelled differently hashes equal and reuses the table.
	equivalent, _, err := c.Get("linear-gradient(90deg,red,blue)")
	require.NoError(t, err)
	assert.Same(t, first, equivalent)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Builds)
	assert.Equal(t, int64(2), stats.Hits)

	changed, g, err := c.Get("linear-gradient(90deg, blue, red)")
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Equal(t, "blue", g.Stops[0].Color)
	assert.Equal(t, int64(2), c.Stats().Builds)
}

func TestCacheKeepsTableOnError(t *testing.T) {
	c := NewCache(8)
	lut, _, err := c.Get("linear-gradient(red, blue)")
	require.NoError(t, err)

	_, _, err = c.Get("linear-gradient(")
	require.Error(t, err)

	again, _, err := c.Get("linear-gradient(red, blue)")
	require.NoError(t, err)
	assert.Same(t, lut, again)
}

func TestCacheConcurrentGet(t *testing.T) {
	c := NewCache(DefaultWidth)
	src := "linear-gradient(90deg, #060607 0%, #6C00A0 100%)"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Get(src)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), c.Stats().Builds)
	assert.Equal(t, DefaultWidth, c.Width())
}
