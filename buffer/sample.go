// Package buffer holds the per-position sample containers produced by attribute
// providers and the line cache that keeps them alive while the traversal window
// still needs them. Nothing here is safe for concurrent mutation; the engine
// walks positions on one goroutine and only fans out the numeric fill of a
// buffer whose items are already allocated.
package buffer

// SampleBuffer is the per-position container of output series.
// Every item is either nil (output disabled) or a dense slice of NrSamples
// values covering absolute sample indices [T0, T0+NrSamples).
type SampleBuffer struct {
	T0        int
	NrSamples int
	items     [][]float32
}

// NewSampleBuffer allocates an empty buffer for the window starting at t0.
func NewSampleBuffer(t0, nrsamples int) *SampleBuffer {
	if nrsamples < 0 {
		nrsamples = 0
	}
	return &SampleBuffer{T0: t0, NrSamples: nrsamples}
}

// NrItems returns the number of item slots, enabled or not.
func (b *SampleBuffer) NrItems() int {
	return len(b.items)
}

// Item returns the series at idx or nil when the slot is disabled or absent.
func (b *SampleBuffer) Item(idx int) []float32 {
	if b == nil || idx < 0 || idx >= len(b.items) {
		return nil
	}
	return b.items[idx]
}

// Add appends a disabled slot and returns its index.
func (b *SampleBuffer) Add() int {
	b.items = append(b.items, nil)
	return len(b.items) - 1
}

// Replace swaps the series at idx; the previous series is dropped.
func (b *SampleBuffer) Replace(idx int, item []float32) {
	for len(b.items) <= idx {
		b.items = append(b.items, nil)
	}
	b.items[idx] = item
}

// Alloc enables slot idx with a zeroed series of NrSamples values, keeping an
// existing series of the right length.
func (b *SampleBuffer) Alloc(idx int) []float32 {
	if cur := b.Item(idx); cur != nil && len(cur) == b.NrSamples {
		return cur
	}
	item := make([]float32, b.NrSamples)
	b.Replace(idx, item)
	return item
}

// Matches reports whether the buffer covers exactly the window (t0, nrsamples).
// Partially overlapping windows never match.
func (b *SampleBuffer) Matches(t0, nrsamples int) bool {
	return b != nil && b.T0 == t0 && b.NrSamples == nrsamples
}

// Includes reports whether absolute sample index s lies inside the window.
func (b *SampleBuffer) Includes(s int) bool {
	return s >= b.T0 && s < b.T0+b.NrSamples
}

// Value returns item idx at absolute sample s, and false when either is absent.
func (b *SampleBuffer) Value(idx, s int) (float32, bool) {
	item := b.Item(idx)
	if item == nil || !b.Includes(s) {
		return 0, false
	}
	return item[s-b.T0], true
}

// SetValue stores v at absolute sample s of item idx when that slot is enabled.
func (b *SampleBuffer) SetValue(idx, s int, v float32) {
	item := b.Item(idx)
	if item == nil || !b.Includes(s) {
		return
	}
	item[s-b.T0] = v
}

// SizeBytes approximates the memory held by the enabled items.
func (b *SampleBuffer) SizeBytes() int {
	total := 0
	for _, item := range b.items {
		total += 4 * len(item)
	}
	return total
}
