package localcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	c := New(10 * time.Minute)

	c.Set("k1", "v1")

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewWithClock(10*time.Minute, func() time.Time { return now })

	c.Set("k1", "v1")

	// TTL 内可见
	now = now.Add(9 * time.Minute)
	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", got)

	// 过期后不可见且被惰性清理
	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheOverwriteRefreshesTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewWithClock(10*time.Minute, func() time.Time { return now })

	c.Set("k1", "v1")
	now = now.Add(8 * time.Minute)
	c.Set("k1", "v2")

	now = now.Add(8 * time.Minute)
	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestCacheEvict(t *testing.T) {
	c := New(time.Minute)
	c.Set("k1", "v1")
	c.Evict("k1")

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

func TestContentKey(t *testing.T) {
	k1 := ContentKey("chapter", "story-1", "en", "ja", "hello world")
	k2 := ContentKey("chapter", "story-1", "en", "ja", "hello world")
	k3 := ContentKey("chapter", "story-1", "en", "ja", "hello world!")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
