// Package stats tracks per-attribute compute counters for progress lines and
// the end-of-run summary.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Counts is a point-in-time copy of one attribute's counters.
type Counts struct {
	Computed  uint64
	CacheHits uint64
	Failures  uint64
	Samples   uint64
}

// Tracker counts computed traces, cache hits, failures and computed samples
// per attribute name.
type Tracker struct {
	// sync.Map + atomic.Uint64 so compute fan-out never fights over a mutex
	computed  sync.Map // attribute -> *atomic.Uint64
	cacheHits sync.Map
	failures  sync.Map
	samples   sync.Map
	start     atomic.Int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementComputed records one computed trace of nrsamples samples.
func (t *Tracker) IncrementComputed(attr string, nrsamples int) {
	if t == nil {
		return
	}
	addCounter(&t.computed, attr, 1)
	if nrsamples > 0 {
		addCounter(&t.samples, attr, uint64(nrsamples))
	}
}

// IncrementCacheHit records a request served from a provider's line buffer.
func (t *Tracker) IncrementCacheHit(attr string) {
	if t == nil {
		return
	}
	addCounter(&t.cacheHits, attr, 1)
}

// IncrementFailure records a position an attribute could not produce.
func (t *Tracker) IncrementFailure(attr string) {
	if t == nil {
		return
	}
	addCounter(&t.failures, attr, 1)
}

// Snapshot returns a copy of every attribute's counters.
func (t *Tracker) Snapshot() map[string]Counts {
	out := make(map[string]Counts)
	collect := func(m *sync.Map, set func(*Counts, uint64)) {
		m.Range(func(key, value any) bool {
			c := out[key.(string)]
			set(&c, value.(*atomic.Uint64).Load())
			out[key.(string)] = c
			return true
		})
	}
	collect(&t.computed, func(c *Counts, v uint64) { c.Computed = v })
	collect(&t.cacheHits, func(c *Counts, v uint64) { c.CacheHits = v })
	collect(&t.failures, func(c *Counts, v uint64) { c.Failures = v })
	collect(&t.samples, func(c *Counts, v uint64) { c.Samples = v })
	return out
}

// Get returns the counters of one attribute.
func (t *Tracker) Get(attr string) Counts {
	return t.Snapshot()[attr]
}

// TotalComputed returns the computed-trace count summed over attributes.
func (t *Tracker) TotalComputed() uint64 {
	var total uint64
	t.computed.Range(func(_, value any) bool {
		total += value.(*atomic.Uint64).Load()
		return true
	})
	return total
}

// GetUptime returns how long the tracker has been running.
func (t *Tracker) GetUptime() time.Duration {
	return time.Since(time.Unix(0, t.start.Load()))
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	for _, m := range []*sync.Map{&t.computed, &t.cacheHits, &t.failures, &t.samples} {
		m.Range(func(key, _ any) bool {
			m.Delete(key)
			return true
		})
	}
	t.start.Store(time.Now().UnixNano())
}

// SnapshotLines returns one human-readable line per attribute, sorted by name.
func (t *Tracker) SnapshotLines() []string {
	snap := t.Snapshot()
	if len(snap) == 0 {
		return []string{"Attributes: (none)"}
	}
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		c := snap[name]
		var b strings.Builder
		fmt.Fprintf(&b, "%s: computed=%s cached=%s samples=%s",
			name, humanize.Comma(int64(c.Computed)), humanize.Comma(int64(c.CacheHits)),
			humanize.Comma(int64(c.Samples)))
		if c.Failures > 0 {
			fmt.Fprintf(&b, " failed=%s", humanize.Comma(int64(c.Failures)))
		}
		lines = append(lines, b.String())
	}
	return lines
}

func addCounter(m *sync.Map, key string, delta uint64) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(delta)
		return
	}
	counter := &atomic.Uint64{}
	actual, _ := m.LoadOrStore(key, counter)
	actual.(*atomic.Uint64).Add(delta)
}
