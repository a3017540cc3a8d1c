// Package ratelimit throttles repetitive log lines while still counting every
// occurrence.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Counter tracks a total count and the last time a line was let through.
// It is safe for concurrent use.
type Counter struct {
	interval time.Duration
	now      func() time.Time
	lastLog  atomic.Int64
	total    atomic.Uint64
	logged   atomic.Uint64
}

// NewCounter allows one line per interval. A zero or negative interval
// disables throttling.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval, now: time.Now}
}

// Inc counts one occurrence and reports whether it may be logged.
func (c *Counter) Inc() (uint64, bool) {
	if c == nil {
		return 0, false
	}
	total := c.total.Add(1)
	if c.interval <= 0 {
		c.logged.Add(1)
		return total, true
	}
	now := c.now().UnixNano()
	last := c.lastLog.Load()
	if last != 0 && now-last < c.interval.Nanoseconds() {
		return total, false
	}
	if c.lastLog.CompareAndSwap(last, now) {
		c.logged.Add(1)
		return total, true
	}
	return total, false
}

// Total returns every occurrence counted so far.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// Suppressed returns how many occurrences were not logged.
func (c *Counter) Suppressed() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load() - c.logged.Load()
}
