package semantic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := NewCache(time.Minute, 10)
	require.NoError(t, err)

	dets := []Detection{{Label: "person", Confidence: 0.9, Phrase: "a person in a red jacket"}}
	c.Put("person in red", "abc123", dets)

	got, ok := c.Get("person in red", "abc123")
	require.True(t, ok)
	require.Equal(t, dets, got)
}

func TestCacheMissOnDifferentKey(t *testing.T) {
	c, err := NewCache(time.Minute, 10)
	require.NoError(t, err)
	c.Put("a", "hash1", []Detection{{Label: "x"}})

	_, ok := c.Get("a", "hash2")
	require.False(t, ok)
	_, ok = c.Get("b", "hash1")
	require.False(t, ok)
}

func TestCacheExpiresByTTL(t *testing.T) {
	c, err := NewCache(10*time.Millisecond, 10)
	require.NoError(t, err)
	c.Put("a", "hash1", []Detection{{Label: "x"}})

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("a", "hash1")
	require.False(t, ok, "entry should have expired")
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	c, err := NewCache(time.Minute, 2)
	require.NoError(t, err)
	c.Put("a", "1", []Detection{{Label: "a"}})
	c.Put("b", "2", []Detection{{Label: "b"}})
	c.Put("c", "3", []Detection{{Label: "c"}})

	require.Equal(t, 2, c.Stats().CachedResults)
	_, ok := c.Get("a", "1")
	require.False(t, ok, "oldest entry should be LRU-evicted")
}

func TestCacheClear(t *testing.T) {
	c, err := NewCache(time.Minute, 10)
	require.NoError(t, err)
	c.Put("a", "1", []Detection{{Label: "a"}})
	c.Put("b", "2", []Detection{{Label: "b"}})

	n := c.Clear()
	require.Equal(t, 2, n)
	require.Zero(t, c.Stats().CachedResults)
}

func TestCacheStatsReportsConfiguredMax(t *testing.T) {
	c, err := NewCache(5*time.Minute, 500)
	require.NoError(t, err)
	stats := c.Stats()
	require.Equal(t, 500, stats.MaxCacheSize)
	require.Equal(t, 5*time.Minute, stats.CacheTTL)
}
