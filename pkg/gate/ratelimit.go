package gate

import (
	"sync"
	"time"
)

// Limits are the per-window request ceilings for one (user, session) pair.
type Limits struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

// DefaultLimits are conservative ceilings for interactive banking dialogue.
var DefaultLimits = Limits{PerMinute: 10, PerHour: 100, PerDay: 500}

// RateLimiter tracks request timestamps in three sliding windows
// (minute/hour/day) per (userID, sessionID) key. It is shared across all
// sessions and safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	limits  Limits
	entries map[string][]time.Time
	now     func() time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock injects a time source, used by tests to control the windows.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter creates a limiter with the given ceilings. Zero or negative
// ceilings disable the corresponding window.
func NewRateLimiter(limits Limits, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		limits:  limits,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func limiterKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

// Check reports whether another request is currently allowed. On rejection it
// returns the duration until the tightest violated window frees a slot.
// Check does not record the request; callers pair it with Track on success.
func (l *RateLimiter) Check(userID, sessionID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.prune(limiterKey(userID, sessionID), now)

	windows := []struct {
		span  time.Duration
		limit int
	}{
		{time.Minute, l.limits.PerMinute},
		{time.Hour, l.limits.PerHour},
		{24 * time.Hour, l.limits.PerDay},
	}

	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, oldest := countWithin(stamps, now, w.span)
		if count >= w.limit {
			retry := oldest.Add(w.span).Sub(now)
			if retry <= 0 {
				retry = time.Second
			}
			return false, retry
		}
	}
	return true, 0
}

// Track records a request timestamp for the key.
func (l *RateLimiter) Track(userID, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := limiterKey(userID, sessionID)
	l.entries[key] = append(l.entries[key], l.now())
}

// Compact drops entries older than the longest window across all keys.
// Intended to be called periodically by the host.
func (l *RateLimiter) Compact() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.entries {
		l.prune(key, now)
	}
}

// prune removes timestamps older than the day window for a key and returns
// the remaining slice. Caller must hold l.mu.
func (l *RateLimiter) prune(key string, now time.Time) []time.Time {
	stamps := l.entries[key]
	cutoff := now.Add(-24 * time.Hour)
	keep := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	if len(keep) == 0 {
		delete(l.entries, key)
		return nil
	}
	l.entries[key] = keep
	return keep
}

// countWithin returns the number of timestamps inside the window ending now,
// and the oldest such timestamp.
func countWithin(stamps []time.Time, now time.Time, span time.Duration) (int, time.Time) {
	cutoff := now.Add(-span)
	count := 0
	var oldest time.Time
	for _, ts := range stamps {
		if ts.After(cutoff) {
			if count == 0 || ts.Before(oldest) {
				oldest = ts
			}
			count++
		}
	}
	return count, oldest
}
