package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOverwritesAndGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)

	c.Set("k", "a", 0)
	c.Set("k", "b", 0)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, c.Size())
}

func TestTakeConsumes(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	c.Set("k", "v", 0)

	v, ok := c.Take("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = c.Take("k")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	c.Set("k", "v", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTakePrefixDrainsInKeyOrder(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	c.Set("room1_ice_1", "a", 0)
	c.Set("room1_ice_2", "b", 0)
	c.Set("room2_ice_1", "other", 0)

	values := c.TakePrefix("room1_ice_")
	require.Len(t, values, 2)
	assert.Equal(t, "a", values[0])
	assert.Equal(t, "b", values[1])

	// drained exactly once, other prefixes untouched
	assert.Empty(t, c.TakePrefix("room1_ice_"))
	_, ok := c.Get("room2_ice_1")
	assert.True(t, ok)
}

func TestMaxSizeEvictsOldest(t *testing.T) {
	c := NewMemoryCache(time.Minute, 2)
	c.Set("first", 1, 0)
	time.Sleep(time.Millisecond)
	c.Set("second", 2, 0)
	time.Sleep(time.Millisecond)
	c.Set("third", 3, 0)

	_, ok := c.Get("first")
	assert.False(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}
