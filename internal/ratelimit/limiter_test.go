package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time        { return f.now }
func (f *fakeClock) Sleep(d time.Duration) { f.now = f.now.Add(d) }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestTryAcquireAllowsWithinBurst(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(Rule{RPS: 1, Burst: 1}).WithClock(clock)
	l.SetRule("synthetic", Rule{RPS: 1, Burst: 1})

	wait := l.TryAcquire("synthetic")
	assert.Zero(t, wait)
	l.Complete("synthetic", true)

	wait = l.TryAcquire("synthetic")
	assert.True(t, wait >= 500*time.Millisecond && wait <= 1000*time.Millisecond, "wait=%v", wait)

	stats := l.Stats("synthetic")
	assert.Equal(t, int64(1), stats.TotalRequests)
}

func TestRetryAfterBlocksThenPasses(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(Rule{RPS: 100, Burst: 100}).WithClock(clock)
	l.RecordRateLimitResponse("jpl_horizons", 2*time.Second)

	wait := l.TryAcquire("jpl_horizons")
	assert.Greater(t, wait, time.Duration(0))

	clock.advance(2100 * time.Millisecond)
	wait = l.TryAcquire("jpl_horizons")
	assert.Zero(t, wait)
}

func TestRateBucketWaitAfterExhaustion(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rps := 5.0
	l := New(Rule{RPS: rps, Burst: rps}).WithClock(clock)
	l.SetRule("p", Rule{RPS: rps, Burst: rps})

	n := 8
	for i := 0; i < n; i++ {
		l.Complete("p", true)
	}
	wait := l.TryAcquire("p")
	if n > int(rps) {
		minExpected := time.Duration(float64(n-int(rps))/rps*float64(time.Second)) - time.Millisecond
		assert.GreaterOrEqual(t, wait, minExpected)
	}
}

func TestAcquireBlocksUsingSleeper(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(Rule{RPS: 1000, Burst: 1}).WithClock(clock)
	l.SetRule("p", Rule{RPS: 1000, Burst: 1})
	require.Zero(t, l.TryAcquire("p"))
	l.Complete("p", true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "p")
	// Acquire sleeps on the injected clock, so the fake clock's Sleep moves
	// time past the 1ms token deficit and Acquire returns nil.
	assert.NoError(t, err)
}

func TestResetPreservesRule(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(Rule{RPS: 1, Burst: 1}).WithClock(clock)
	l.SetRule("p", Rule{RPS: 2, Burst: 2})
	l.Complete("p", true)
	l.Reset("p")
	stats := l.Stats("p")
	assert.Zero(t, stats.TotalRequests)
	wait := l.TryAcquire("p")
	assert.Zero(t, wait)
}

func TestPerMinuteWindowGate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := New(Rule{RPS: 1000, Burst: 1000}).WithClock(clock)
	l.SetRule("p", Rule{RPS: 1000, Burst: 1000, RPM: 2})
	for i := 0; i < 2; i++ {
		require.Zero(t, l.TryAcquire("p"))
		l.Complete("p", true)
	}
	wait := l.TryAcquire("p")
	assert.Greater(t, wait, time.Duration(0))
	clock.advance(61 * time.Second)
	assert.Zero(t, l.TryAcquire("p"))
}
