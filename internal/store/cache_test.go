package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxEntries int) *ResponseCache {
	t.Helper()
	c, err := NewResponseCache(filepath.Join(t.TempDir(), "cache.db"), maxEntries)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachePutGet(t *testing.T) {
	c := newTestCache(t, 100)

	key := Key("analyze", "report-body")
	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, "the model's answer"))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "the model's answer", got)
}

func TestCacheContentAddressing(t *testing.T) {
	// Same parts, same key; any difference changes it.
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("a", "b"), Key("ab"))
	assert.NotEqual(t, Key("a", "b"), Key("a", "c"))
}

func TestCacheUpsert(t *testing.T) {
	c := newTestCache(t, 100)

	key := Key("prompt")
	require.NoError(t, c.Put(key, "first"))
	require.NoError(t, c.Put(key, "second"))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCacheEviction(t *testing.T) {
	c := newTestCache(t, 3)

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, c.Put(Key(s), s))
	}

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// The most recent insert survives eviction.
	_, ok, err := c.Get(Key("e"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(t, 100)

	require.NoError(t, c.Put(Key("x"), "y"))
	require.NoError(t, c.Clear())

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
