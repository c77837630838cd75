package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	l := NewLRU[string, int](2, func(k string, _ int) {
		evicted = append(evicted, k)
	})

	l.Put("a", 1)
	l.Put("b", 2)

	// touch a so that b becomes the eviction candidate
	v, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	l.Put("c", 3)

	_, ok = l.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, l.Len())
}

func TestLRUPutReplacesValue(t *testing.T) {
	l := NewLRU[string, int](2, nil)

	l.Put("a", 1)
	l.Put("a", 2)

	v, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, l.Len())
}

func TestLRURemoveAndPurge(t *testing.T) {
	var evicted []string
	l := NewLRU[string, int](4, func(k string, _ int) {
		evicted = append(evicted, k)
	})

	l.Put("a", 1)
	l.Put("b", 2)
	l.Put("c", 3)

	l.Remove("b")
	l.Remove("missing")
	assert.Equal(t, []string{"b"}, evicted)

	l.Purge()
	assert.Equal(t, 0, l.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, evicted)

	// evicting an empty cache is a no-op
	l.Evict()
}
