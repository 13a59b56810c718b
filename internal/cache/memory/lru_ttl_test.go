package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUTTLGetSet(t *testing.T) {
	c := NewLRUTTL[string, int](4, 0, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1, 0)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	// Overwrite keeps a single entry.
	c.Set("a", 2, 0)
	got, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRUTTL[string, string](4, 0, 20*time.Millisecond)
	c.Set("k", "v", 0)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestLRUTTLEvictsOldestAtMaxEntries(t *testing.T) {
	c := NewLRUTTL[string, int](2, 0, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	// Touch "a" so "b" is the least recently used.
	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Set("c", 3, 0)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUTTLEvictsByByteBudget(t *testing.T) {
	c := NewLRUTTL[string, []byte](100, 10, time.Minute)
	c.Set("a", []byte("aaaa"), 4)
	c.Set("b", []byte("bbbb"), 4)
	c.Set("c", []byte("cccc"), 4)

	// 12 bytes > 10, so the oldest entry goes.
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUTTLDeleteAndClear(t *testing.T) {
	c := NewLRUTTL[string, int](4, 0, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	// Deleting a missing key is a no-op.
	c.Delete("never")
}

func TestLRUTTLNilReceiver(t *testing.T) {
	var c *LRUTTL[string, int]
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Delete("a")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestLRUTTLDefaults(t *testing.T) {
	// Non-positive limits fall back to safe values instead of panicking.
	c := NewLRUTTL[string, int](0, 0, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
	got, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}
