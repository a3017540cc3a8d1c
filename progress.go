package main

import (
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"seisattrib/attrib"
)

const (
	progressInterval = 500 * time.Millisecond
	progressLogEvery = 10 * time.Second
)

// statusSetter draws a transient status line; it reports false when the
// console cannot show one.
type statusSetter interface {
	SetStatus(text string) bool
}

// progressReporter shows how far a run got: in place on a terminal, as
// periodic log lines otherwise.
type progressReporter struct {
	status   statusSetter
	expected int
	start    time.Time
	lastDraw time.Time
	lastLog  time.Time
	now      func() time.Time
	mem      *memWatch
}

func newProgressReporter(status statusSetter, expected int) *progressReporter {
	now := time.Now()
	return &progressReporter{status: status, expected: expected, start: now, lastLog: now, now: time.Now, mem: newMemWatch()}
}

// Update is called once per produced trace; it redraws at most every
// progressInterval.
func (p *progressReporter) Update(st attrib.ProcessorStats) {
	now := p.now()
	if now.Sub(p.lastDraw) < progressInterval {
		return
	}
	p.lastDraw = now
	p.mem.sample()
	line := p.line(st, now)
	if p.status != nil && p.status.SetStatus(line) {
		return
	}
	if now.Sub(p.lastLog) >= progressLogEvery {
		p.lastLog = now
		log.Printf("Progress: %s", line)
	}
}

// Done clears the status line.
func (p *progressReporter) Done() {
	if p.status != nil {
		p.status.SetStatus("")
	}
}

func (p *progressReporter) line(st attrib.ProcessorStats, now time.Time) string {
	elapsed := now.Sub(p.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(st.Produced) / elapsed
	}
	pct := 0.0
	if p.expected > 0 {
		pct = min(100, 100*float64(st.Produced)/float64(p.expected))
	}
	return fmt.Sprintf("%s / %s traces (%.1f%%) %s traces/s",
		humanize.Comma(int64(st.Produced)), humanize.Comma(int64(p.expected)), pct,
		humanize.CommafWithDigits(rate, 0))
}
