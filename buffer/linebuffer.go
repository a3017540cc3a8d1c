package buffer

import (
	"sort"

	"seisattrib/geom"
)

// LineBuffer caches SampleBuffers by bin position, two levels deep: a sorted
// set of inlines, and per inline a sorted crossline set with an index-aligned
// buffer set. Providers slide it along with the traversal, dropping inlines the
// buffer step-out no longer reaches.
type LineBuffer struct {
	lines []line
}

// line keeps crls and bufs index-aligned and equal length.
type line struct {
	inl  int
	crls []int
	bufs []*SampleBuffer
}

// NewLineBuffer returns an empty cache.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// CreateDataHolder returns the buffer at bin, creating it for the window
// (t0, nrsamples) when absent. An existing buffer is returned untouched even if
// its window differs; the caller decides whether to re-derive or replace it.
func (lb *LineBuffer) CreateDataHolder(bin geom.BinID, t0, nrsamples int) *SampleBuffer {
	li, found := lb.findLine(bin.Inl)
	if !found {
		lb.lines = append(lb.lines, line{})
		copy(lb.lines[li+1:], lb.lines[li:])
		lb.lines[li] = line{inl: bin.Inl}
	}
	ln := &lb.lines[li]
	ci, ok := findCrl(ln.crls, bin.Crl)
	if ok {
		return ln.bufs[ci]
	}
	buf := NewSampleBuffer(t0, nrsamples)
	ln.crls = append(ln.crls, 0)
	copy(ln.crls[ci+1:], ln.crls[ci:])
	ln.crls[ci] = bin.Crl
	ln.bufs = append(ln.bufs, nil)
	copy(ln.bufs[ci+1:], ln.bufs[ci:])
	ln.bufs[ci] = buf
	return buf
}

// ReplaceDataHolder installs a fresh buffer for (t0, nrsamples) at bin,
// discarding any buffer cached there.
func (lb *LineBuffer) ReplaceDataHolder(bin geom.BinID, t0, nrsamples int) *SampleBuffer {
	lb.RemoveDataHolder(bin)
	return lb.CreateDataHolder(bin, t0, nrsamples)
}

// GetDataHolder returns the cached buffer at bin, or nil. It never creates.
func (lb *LineBuffer) GetDataHolder(bin geom.BinID) *SampleBuffer {
	if lb == nil {
		return nil
	}
	li, found := lb.findLine(bin.Inl)
	if !found {
		return nil
	}
	ln := &lb.lines[li]
	ci, ok := findCrl(ln.crls, bin.Crl)
	if !ok {
		return nil
	}
	return ln.bufs[ci]
}

// RemoveDataHolder drops the buffer at bin. An inline left without crosslines
// is dropped as well.
func (lb *LineBuffer) RemoveDataHolder(bin geom.BinID) {
	li, found := lb.findLine(bin.Inl)
	if !found {
		return
	}
	ln := &lb.lines[li]
	ci, ok := findCrl(ln.crls, bin.Crl)
	if !ok {
		return
	}
	ln.crls = append(ln.crls[:ci], ln.crls[ci+1:]...)
	ln.bufs[ci] = nil
	ln.bufs = append(ln.bufs[:ci], ln.bufs[ci+1:]...)
	if len(ln.crls) == 0 {
		lb.removeLine(li)
	}
}

// RemoveBefore drops every inline in [from.Inl, to.Inl).
func (lb *LineBuffer) RemoveBefore(from, to geom.BinID) {
	kept := lb.lines[:0]
	for _, ln := range lb.lines {
		if ln.inl >= from.Inl && ln.inl < to.Inl {
			continue
		}
		kept = append(kept, ln)
	}
	clearTail(lb.lines, len(kept))
	lb.lines = kept
}

// RemoveAllExcept drops every buffer but the one at bin.
func (lb *LineBuffer) RemoveAllExcept(bin geom.BinID) {
	keep := lb.GetDataHolder(bin)
	clearTail(lb.lines, 0)
	lb.lines = lb.lines[:0]
	if keep == nil {
		return
	}
	lb.lines = append(lb.lines, line{
		inl:  bin.Inl,
		crls: []int{bin.Crl},
		bufs: []*SampleBuffer{keep},
	})
}

// Len returns the number of cached buffers.
func (lb *LineBuffer) Len() int {
	if lb == nil {
		return 0
	}
	n := 0
	for _, ln := range lb.lines {
		n += len(ln.bufs)
	}
	return n
}

// Bins returns the cached positions in ascending order.
func (lb *LineBuffer) Bins() []geom.BinID {
	if lb == nil {
		return nil
	}
	out := make([]geom.BinID, 0, lb.Len())
	for _, ln := range lb.lines {
		for _, crl := range ln.crls {
			out = append(out, geom.BinID{Inl: ln.inl, Crl: crl})
		}
	}
	return out
}

// SizeBytes approximates the memory held by all cached buffers.
func (lb *LineBuffer) SizeBytes() int {
	if lb == nil {
		return 0
	}
	total := 0
	for _, ln := range lb.lines {
		for _, buf := range ln.bufs {
			total += buf.SizeBytes()
		}
	}
	return total
}

func (lb *LineBuffer) findLine(inl int) (int, bool) {
	idx := sort.Search(len(lb.lines), func(i int) bool { return lb.lines[i].inl >= inl })
	return idx, idx < len(lb.lines) && lb.lines[idx].inl == inl
}

func (lb *LineBuffer) removeLine(idx int) {
	copy(lb.lines[idx:], lb.lines[idx+1:])
	lb.lines[len(lb.lines)-1] = line{}
	lb.lines = lb.lines[:len(lb.lines)-1]
}

func findCrl(crls []int, crl int) (int, bool) {
	idx := sort.SearchInts(crls, crl)
	return idx, idx < len(crls) && crls[idx] == crl
}

// clearTail zeroes the abandoned part of the backing array so evicted buffers
// can be collected.
func clearTail(lines []line, from int) {
	for i := from; i < len(lines); i++ {
		lines[i] = line{}
	}
}
