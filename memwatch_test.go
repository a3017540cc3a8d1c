package main

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestMemWatchNoGC(t *testing.T) {
	w := &memWatch{lastNumGC: 5}
	var mem runtime.MemStats
	mem.NumGC = 5
	mem.PauseNs[4] = 10
	mem.HeapAlloc = 1 << 20
	w.collect(&mem)
	if len(w.pauses) != 0 || w.p99() != 0 {
		t.Fatalf("expected no pauses, got %v", w.pauses)
	}
	if w.peakHeap != 1<<20 {
		t.Fatalf("peak heap not tracked: %d", w.peakHeap)
	}
}

func TestMemWatchDeltaP99(t *testing.T) {
	w := &memWatch{lastNumGC: 2}
	var mem runtime.MemStats
	mem.NumGC = 5
	mem.PauseNs[2] = 10
	mem.PauseNs[3] = 20
	mem.PauseNs[4] = 30
	w.collect(&mem)
	if len(w.pauses) != 3 || w.truncated {
		t.Fatalf("expected 3 pauses, got %v truncated=%v", w.pauses, w.truncated)
	}
	if want := 20 * time.Nanosecond; w.p99() != want {
		t.Fatalf("expected p99 %v; got %v", want, w.p99())
	}
	mem.HeapAlloc = 100
	w.collect(&mem)
	if len(w.pauses) != 3 {
		t.Fatalf("unchanged NumGC must not add pauses")
	}
}

func TestMemWatchTruncatesAndSummarizes(t *testing.T) {
	var mem runtime.MemStats
	mem.NumGC = 300
	for i := range mem.PauseNs {
		mem.PauseNs[i] = 50
	}
	mem.HeapAlloc = 3 << 20
	w := &memWatch{read: func(m *runtime.MemStats) { *m = mem }}
	w.sample()
	if !w.truncated || len(w.pauses) != len(mem.PauseNs) {
		t.Fatalf("expected truncation to the pause ring, got %d pauses", len(w.pauses))
	}
	got := w.Summary()
	if !strings.Contains(got, "3.0 MiB") || !strings.Contains(got, "256+ GCs") || !strings.Contains(got, "50ns") {
		t.Fatalf("unexpected summary %q", got)
	}
}
