package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryTreeCache_SetGet(t *testing.T) {
	cache := NewMemoryTreeCache(time.Minute)

	cache.Set("hier:t1:tree:R:0", []string{"a"})
	v, ok := cache.Get("hier:t1:tree:R:0")
	require.True(t, ok)
	require.Equal(t, []string{"a"}, v)

	_, ok = cache.Get("hier:t1:tree:missing:0")
	require.False(t, ok)
}

func TestMemoryTreeCache_TTLExpiry(t *testing.T) {
	cache := NewMemoryTreeCache(time.Minute).(*memoryTreeCache)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("key", 1)
	_, ok := cache.Get("key")
	require.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = cache.Get("key")
	require.False(t, ok)

	// Expired entries are removed on read.
	require.Empty(t, cache.entries)
}

func TestMemoryTreeCache_InvalidateByPrefix(t *testing.T) {
	cache := NewMemoryTreeCache(time.Minute)

	cache.Set("hier:t1:tree:A:0", 1)
	cache.Set("hier:t1:tree:B:0", 2)
	cache.Set("hier:t2:tree:A:0", 3)

	cache.Invalidate("hier:t1:")

	_, ok := cache.Get("hier:t1:tree:A:0")
	require.False(t, ok)
	_, ok = cache.Get("hier:t1:tree:B:0")
	require.False(t, ok)
	_, ok = cache.Get("hier:t2:tree:A:0")
	require.True(t, ok)
}

func TestMemoryTreeCache_IgnoresEmptyKeys(t *testing.T) {
	cache := NewMemoryTreeCache(time.Minute).(*memoryTreeCache)

	cache.Set("", 1)
	require.Empty(t, cache.entries)

	cache.Set("key", 1)
	cache.Invalidate("")
	require.Len(t, cache.entries, 1)
}
