package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUOverwriteKeepsSize(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)
	c.SetWithTTL("short", "x", time.Second)
	c.Set("long", "y")
	clock.advance(2 * time.Second)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 0, c.CleanExpired())
	assert.Equal(t, 1, c.Size())

	clock.advance(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestSetWithTTLClampsToDefault(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Second).WithClock(clock.now)
	c.SetWithTTL("k", "v", time.Hour)
	clock.advance(2 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTouchExtendsLifetime(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)
	c.Set("k", "v")

	clock.advance(50 * time.Second)
	assert.True(t, c.Touch("k"))
	clock.advance(50 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "touched entry should outlive its first deadline")

	clock.advance(2 * time.Minute)
	assert.False(t, c.Touch("k"))
	assert.False(t, c.Touch("missing"))
}

func TestManagerCleanNow(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[int](10, time.Second).WithClock(clock.now)
	c.Set("a", 1)
	c.Set("b", 2)
	m := NewManager(nil)
	m.Register(c)
	clock.advance(2 * time.Second)

	assert.Equal(t, 2, m.CleanNow())
	m.Stop()
}
