package main

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// memWatch follows heap size and GC pauses over a run. Line buffers of wide
// step-outs are the main memory consumer, so the peak heap is what matters.
// Ownership: the progress reporter samples it serially from the run goroutine.
type memWatch struct {
	lastNumGC uint32
	pauses    []uint64
	truncated bool
	peakHeap  uint64
	read      func(*runtime.MemStats)
}

func newMemWatch() *memWatch {
	w := &memWatch{read: runtime.ReadMemStats}
	var mem runtime.MemStats
	w.read(&mem)
	w.lastNumGC = mem.NumGC
	w.peakHeap = mem.HeapAlloc
	return w
}

// sample reads the runtime statistics and records what changed.
func (w *memWatch) sample() {
	if w == nil {
		return
	}
	var mem runtime.MemStats
	w.read(&mem)
	w.collect(&mem)
}

// collect adds the pauses of GCs since the previous call. When more GCs ran
// than the runtime's pause ring holds, only the most recent ones are seen.
func (w *memWatch) collect(mem *runtime.MemStats) {
	w.peakHeap = max(w.peakHeap, mem.HeapAlloc)
	if mem.NumGC <= w.lastNumGC {
		return
	}
	delta := mem.NumGC - w.lastNumGC
	w.lastNumGC = mem.NumGC

	ringLen := len(mem.PauseNs)
	needed := int(delta)
	if needed > ringLen {
		needed = ringLen
		w.truncated = true
	}
	idx := int((mem.NumGC - 1) % uint32(ringLen))
	for i := 0; i < needed; i++ {
		if v := mem.PauseNs[idx]; v > 0 {
			w.pauses = append(w.pauses, v)
		}
		idx--
		if idx < 0 {
			idx = ringLen - 1
		}
	}
}

// p99 returns the 99th percentile pause seen so far.
func (w *memWatch) p99() time.Duration {
	if len(w.pauses) == 0 {
		return 0
	}
	sorted := append([]uint64(nil), w.pauses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return time.Duration(sorted[int(float64(len(sorted)-1)*0.99)])
}

// Summary describes the run's memory behaviour in one line.
func (w *memWatch) Summary() string {
	if w == nil {
		return ""
	}
	w.sample()
	gcs := fmt.Sprintf("%d", len(w.pauses))
	if w.truncated {
		gcs += "+"
	}
	return fmt.Sprintf("peak heap %s, %s GCs, p99 pause %s",
		humanize.IBytes(w.peakHeap), gcs, w.p99())
}
