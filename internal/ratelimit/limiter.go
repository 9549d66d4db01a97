// Package ratelimit implements a fixed-window request counter keyed by
// principal and operation class. State is process-local and never persisted;
// deployments needing global limits must externalize the counter store, which
// is why callers depend on the Limiter interface rather than this type.
package ratelimit

import (
	"sync"
	"time"
)

// Operation classes budgeted separately per principal.
const (
	OpUpload   = "upload"
	OpDownload = "download"
	OpGrant    = "grant"
)

// Limiter gates operations per principal and operation class.
type Limiter interface {
	// TryConsume reports whether principalID may perform another op within the
	// current window. On success the counter is incremented; on rejection no
	// state changes.
	TryConsume(principalID, op string, limit int, window time.Duration) bool
}

type counter struct {
	count       int
	windowStart time.Time
}

// FixedWindow is an in-memory fixed-window Limiter. Windows reset entirely at
// their boundary, so a burst straddling the boundary may see up to 2x the
// limit in a continuous interval. That imprecision is accepted; the first call
// after rollover always succeeds.
type FixedWindow struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// NewFixedWindow constructs an empty FixedWindow using the wall clock.
func NewFixedWindow() *FixedWindow {
	return &FixedWindow{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// NewFixedWindowWithClock constructs a FixedWindow with an injected clock.
// Intended for tests.
func NewFixedWindowWithClock(now func() time.Time) *FixedWindow {
	return &FixedWindow{
		counters: make(map[string]*counter),
		now:      now,
	}
}

func (l *FixedWindow) TryConsume(principalID, op string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := principalID + "|" + op
	now := l.now()

	c, ok := l.counters[key]
	if !ok {
		c = &counter{windowStart: now}
		l.counters[key] = c
	}

	// Window elapsed: reset before checking, so the first call after rollover
	// is always admitted.
	if now.Sub(c.windowStart) > window {
		c.count = 0
		c.windowStart = now
	}

	if c.count >= limit {
		return false
	}
	c.count++
	return true
}
