package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestGetAfterPutWithinTTL(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(Config{MaxEntries: 10, DefaultTTL: time.Minute}).WithClock(clk)

	c.Put("fp1", "simbad", "value-1", 0)
	v, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, "value-1", v)

	clk.advance(30 * time.Second)
	v, ok = c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, "value-1", v)
}

func TestGetAfterExpiryMisses(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(Config{MaxEntries: 10, DefaultTTL: time.Minute}).WithClock(clk)
	c.Put("fp1", "simbad", "value-1", 0)
	clk.advance(61 * time.Second)
	_, ok := c.Get("fp1")
	assert.False(t, ok)
}

func TestLRUEvictsOldest(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(Config{MaxEntries: 2, DefaultTTL: time.Hour}).WithClock(clk)
	c.Put("a", "p", 1, 0)
	c.Put("b", "p", 2, 0)
	_, _ = c.Get("a")
	c.Put("c", "p", 3, 0)
	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted as least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestContainsIsTrueLookup(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(Config{MaxEntries: 10, DefaultTTL: time.Second}).WithClock(clk)
	assert.False(t, c.Contains("fp"))
	c.Put("fp", "p", 1, 0)
	assert.True(t, c.Contains("fp"))
	clk.advance(2 * time.Second)
	assert.False(t, c.Contains("fp"))
}

func TestClearProvider(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(Config{MaxEntries: 10, DefaultTTL: time.Hour}).WithClock(clk)
	c.Put("a", "simbad", 1, 0)
	c.Put("b", "ned", 2, 0)
	c.ClearProvider("simbad")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestHitRate(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(Config{MaxEntries: 10, DefaultTTL: time.Hour}).WithClock(clk)
	c.Put("a", "p", 1, 0)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	stats := c.Stats()
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}
