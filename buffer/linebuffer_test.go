package buffer

import (
	"testing"

	"seisattrib/geom"
)

func bid(inl, crl int) geom.BinID {
	return geom.BinID{Inl: inl, Crl: crl}
}

// Purpose: Verify create/get round trip and that create never resizes.
// Key aspects: A second create at another window returns the first buffer.
// Upstream: go test execution.
// Downstream: LineBuffer.CreateDataHolder and GetDataHolder.
func TestLineBufferCreateAndGet(t *testing.T) {
	lb := NewLineBuffer()
	first := lb.CreateDataHolder(bid(10, 5), 100, 20)
	if first == nil || first.T0 != 100 || first.NrSamples != 20 {
		t.Fatalf("unexpected buffer %+v", first)
	}
	again := lb.CreateDataHolder(bid(10, 5), 90, 40)
	if again != first {
		t.Fatalf("expected existing buffer to be returned")
	}
	if again.T0 != 100 || again.NrSamples != 20 {
		t.Fatalf("existing buffer must keep its window, got t0=%d n=%d", again.T0, again.NrSamples)
	}
	if got := lb.GetDataHolder(bid(10, 6)); got != nil {
		t.Fatalf("expected nil for uncached position")
	}
	if got := lb.GetDataHolder(bid(10, 5)); got != first {
		t.Fatalf("expected cached buffer")
	}
}

func TestLineBufferKeepsSortedAlignedSets(t *testing.T) {
	lb := NewLineBuffer()
	order := []geom.BinID{bid(12, 3), bid(10, 7), bid(12, 1), bid(10, 2), bid(11, 5), bid(12, 2)}
	for i, b := range order {
		buf := lb.CreateDataHolder(b, i, 1)
		buf.Alloc(0)[0] = float32(i)
	}
	want := []geom.BinID{bid(10, 2), bid(10, 7), bid(11, 5), bid(12, 1), bid(12, 2), bid(12, 3)}
	got := lb.Bins()
	if len(got) != len(want) {
		t.Fatalf("expected %d bins, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bin %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	for i, b := range order {
		if v, ok := lb.GetDataHolder(b).Value(0, i); !ok || v != float32(i) {
			t.Fatalf("buffer at %v lost its content", b)
		}
	}
}

func TestLineBufferRemoveDataHolderDropsEmptyInline(t *testing.T) {
	lb := NewLineBuffer()
	lb.CreateDataHolder(bid(1, 1), 0, 4)
	lb.CreateDataHolder(bid(2, 1), 0, 4)
	lb.RemoveDataHolder(bid(1, 1))
	if lb.Len() != 1 {
		t.Fatalf("expected one buffer left, got %d", lb.Len())
	}
	if len(lb.lines) != 1 || lb.lines[0].inl != 2 {
		t.Fatalf("expected inline 1 to be dropped, lines=%+v", lb.lines)
	}
	lb.RemoveDataHolder(bid(7, 7))
	if lb.Len() != 1 {
		t.Fatalf("removing an absent position must be a no-op")
	}
}

// Purpose: Verify sliding-window eviction.
// Key aspects: Inlines in [from, to) go; the rest stays.
// Upstream: go test execution.
// Downstream: LineBuffer.RemoveBefore.
func TestLineBufferRemoveBefore(t *testing.T) {
	lb := NewLineBuffer()
	for inl := 1; inl <= 5; inl++ {
		for crl := 1; crl <= 3; crl++ {
			lb.CreateDataHolder(bid(inl, crl), 0, 1)
		}
	}
	lb.RemoveBefore(bid(2, 0), bid(4, 0))
	for _, b := range lb.Bins() {
		if b.Inl == 2 || b.Inl == 3 {
			t.Fatalf("expected inline %d to be evicted", b.Inl)
		}
	}
	if lb.Len() != 9 {
		t.Fatalf("expected 9 buffers left, got %d", lb.Len())
	}
}

func TestLineBufferRemoveAllExcept(t *testing.T) {
	lb := NewLineBuffer()
	keep := lb.CreateDataHolder(bid(3, 3), 5, 5)
	lb.CreateDataHolder(bid(3, 4), 5, 5)
	lb.CreateDataHolder(bid(4, 3), 5, 5)
	lb.RemoveAllExcept(bid(3, 3))
	if lb.Len() != 1 || lb.GetDataHolder(bid(3, 3)) != keep {
		t.Fatalf("expected only the kept buffer to survive")
	}
	lb.RemoveAllExcept(bid(9, 9))
	if lb.Len() != 0 {
		t.Fatalf("expected empty cache when the kept position is absent")
	}
}

func TestSampleBufferItems(t *testing.T) {
	buf := NewSampleBuffer(10, 4)
	if buf.Item(0) != nil {
		t.Fatalf("expected nil item on empty buffer")
	}
	if idx := buf.Add(); idx != 0 || buf.NrItems() != 1 || buf.Item(0) != nil {
		t.Fatalf("Add must append a disabled slot")
	}
	item := buf.Alloc(1)
	if len(item) != 4 || buf.NrItems() != 2 {
		t.Fatalf("Alloc must size the item to the window")
	}
	buf.SetValue(1, 12, 3.5)
	if v, ok := buf.Value(1, 12); !ok || v != 3.5 {
		t.Fatalf("expected 3.5 at sample 12, got %v (%v)", v, ok)
	}
	if _, ok := buf.Value(1, 14); ok {
		t.Fatalf("sample 14 lies outside [10,14)")
	}
	buf.Replace(1, nil)
	if buf.Item(1) != nil {
		t.Fatalf("Replace with nil must disable the slot")
	}
	if !buf.Matches(10, 4) || buf.Matches(10, 5) || buf.Matches(9, 4) {
		t.Fatalf("window matching must be exact")
	}
}
