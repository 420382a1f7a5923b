package gate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/gate"
)

// fakeClock is a controllable time source for window tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestLimiter(limits gate.Limits) (*gate.RateLimiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return gate.NewRateLimiter(limits, gate.WithClock(clock.now)), clock
}

func TestRateLimiter_MinuteCeiling(t *testing.T) {
	limiter, _ := newTestLimiter(gate.Limits{PerMinute: 10, PerHour: 100, PerDay: 500})

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Check("1", "s")
		require.True(t, allowed, "request %d should be allowed", i+1)
		limiter.Track("1", "s")
	}

	allowed, retry := limiter.Check("1", "s")
	assert.False(t, allowed, "11th request within a minute must be rejected")
	assert.Greater(t, retry, time.Duration(0), "reset estimate must be positive")
	assert.LessOrEqual(t, retry, time.Minute)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter, clock := newTestLimiter(gate.Limits{PerMinute: 2, PerHour: 100, PerDay: 500})

	limiter.Track("1", "s")
	limiter.Track("1", "s")

	allowed, _ := limiter.Check("1", "s")
	assert.False(t, allowed)

	clock.advance(61 * time.Second)
	allowed, _ = limiter.Check("1", "s")
	assert.True(t, allowed, "window must slide after a minute")
}

func TestRateLimiter_HourCeiling(t *testing.T) {
	limiter, clock := newTestLimiter(gate.Limits{PerMinute: 0, PerHour: 3, PerDay: 0})

	for i := 0; i < 3; i++ {
		limiter.Track("1", "s")
		clock.advance(2 * time.Minute)
	}

	allowed, retry := limiter.Check("1", "s")
	assert.False(t, allowed)
	assert.Greater(t, retry, time.Duration(0))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(gate.Limits{PerMinute: 1, PerHour: 10, PerDay: 10})

	limiter.Track("1", "s")
	allowed, _ := limiter.Check("1", "s")
	assert.False(t, allowed)

	allowed, _ = limiter.Check("1", "other-session")
	assert.True(t, allowed, "different session must have its own windows")

	allowed, _ = limiter.Check("2", "s")
	assert.True(t, allowed, "different user must have its own windows")
}

func TestRateLimiter_Compact(t *testing.T) {
	limiter, clock := newTestLimiter(gate.Limits{PerMinute: 5, PerHour: 50, PerDay: 100})

	limiter.Track("1", "s")
	clock.advance(25 * time.Hour)
	limiter.Compact()

	allowed, _ := limiter.Check("1", "s")
	assert.True(t, allowed, "entries older than the day window must be dropped")
}

func TestRateLimiter_ZeroLimitDisablesWindow(t *testing.T) {
	limiter, _ := newTestLimiter(gate.Limits{PerMinute: 0, PerHour: 0, PerDay: 0})

	for i := 0; i < 100; i++ {
		limiter.Track("1", "s")
	}
	allowed, _ := limiter.Check("1", "s")
	assert.True(t, allowed)
}
