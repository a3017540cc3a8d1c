package geom

import (
	"fmt"
	"math"
)

// SampleRange is an inclusive range of integer sample indices at the graph
// reference step. A defined range has Stop >= Start.
type SampleRange struct {
	Start int
	Stop  int
}

// Width returns Stop-Start.
func (r SampleRange) Width() int {
	return r.Stop - r.Start
}

// NrSamples returns the number of samples covered by the inclusive range.
func (r SampleRange) NrSamples() int {
	return r.Width() + 1
}

// Include widens r to also cover o.
func (r SampleRange) Include(o SampleRange) SampleRange {
	return SampleRange{Start: min(r.Start, o.Start), Stop: max(r.Stop, o.Stop)}
}

// Clamp limits r to [lo, hi].
func (r SampleRange) Clamp(lo, hi int) SampleRange {
	if r.Start < lo {
		r.Start = lo
	}
	if r.Stop > hi {
		r.Stop = hi
	}
	return r
}

// Scale multiplies both ends by f.
func (r SampleRange) Scale(f int) SampleRange {
	return SampleRange{Start: r.Start * f, Stop: r.Stop * f}
}

func (r SampleRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.Stop)
}

// Interval is a real-unit range, used for Z margins and gates.
type Interval struct {
	Start float64
	Stop  float64
}

// Include returns the hull of i and o.
func (i Interval) Include(o Interval) Interval {
	return Interval{Start: math.Min(i.Start, o.Start), Stop: math.Max(i.Stop, o.Stop)}
}

// Div divides both ends by f, e.g. a millisecond gate by the survey Z factor.
// A zero factor leaves the interval untouched.
func (i Interval) Div(f float64) Interval {
	if f == 0 {
		return i
	}
	return Interval{Start: i.Start / f, Stop: i.Stop / f}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%g,%g]", i.Start, i.Stop)
}

// HorRange is the lateral extent of a volume. Step holds the grid increments.
type HorRange struct {
	Start BinID
	Stop  BinID
	Step  BinID
}

// Includes reports whether b lies inside the range (step alignment is not checked).
func (h HorRange) Includes(b BinID) bool {
	return b.Inl >= h.Start.Inl && b.Inl <= h.Stop.Inl &&
		b.Crl >= h.Start.Crl && b.Crl <= h.Stop.Crl
}

// IsEmpty reports whether the range covers no position.
func (h HorRange) IsEmpty() bool {
	return h.Stop.Inl < h.Start.Inl || h.Stop.Crl < h.Start.Crl
}

// NrInl returns the number of inlines in the range.
func (h HorRange) NrInl() int {
	return nrSteps(h.Start.Inl, h.Stop.Inl, h.Step.Inl)
}

// NrCrl returns the number of crosslines in the range.
func (h HorRange) NrCrl() int {
	return nrSteps(h.Start.Crl, h.Stop.Crl, h.Step.Crl)
}

// Limit shrinks h to its intersection with o.
func (h HorRange) Limit(o HorRange) HorRange {
	h.Start = h.Start.Max(o.Start)
	h.Stop = BinID{Inl: min(h.Stop.Inl, o.Stop.Inl), Crl: min(h.Stop.Crl, o.Stop.Crl)}
	return h
}

// SafeStep returns Step with zero components replaced by 1.
func (h HorRange) SafeStep() BinID {
	step := h.Step.Abs()
	if step.Inl == 0 {
		step.Inl = 1
	}
	if step.Crl == 0 {
		step.Crl = 1
	}
	return step
}

// ZRange is the vertical extent of a volume in survey Z units.
type ZRange struct {
	Start float64
	Stop  float64
	Step  float64
}

// Includes reports whether z lies within the range, with a small tolerance.
func (z ZRange) Includes(v float64) bool {
	eps := z.Step * 1e-3
	return v >= z.Start-eps && v <= z.Stop+eps
}

// Volume is a lateral range plus a Z range.
type Volume struct {
	Hor HorRange
	Z   ZRange
}

// Includes reports whether the lateral position lies inside the volume.
func (v Volume) Includes(b BinID) bool {
	return v.Hor.Includes(b)
}

// TotalNrPos returns the number of trace positions the volume covers.
func (v Volume) TotalNrPos(is2D bool) int {
	if is2D {
		return v.Hor.NrCrl()
	}
	return v.Hor.NrInl() * v.Hor.NrCrl()
}

func (v Volume) String() string {
	return fmt.Sprintf("inl %d-%d crl %d-%d z %g-%g", v.Hor.Start.Inl, v.Hor.Stop.Inl,
		v.Hor.Start.Crl, v.Hor.Stop.Crl, v.Z.Start, v.Z.Stop)
}

func nrSteps(start, stop, step int) int {
	if stop < start {
		return 0
	}
	if step <= 0 {
		step = 1
	}
	return (stop-start)/step + 1
}

// Include returns the hull of h and o, keeping h's step.
func (h HorRange) Include(o HorRange) HorRange {
	h.Start = BinID{Inl: min(h.Start.Inl, o.Start.Inl), Crl: min(h.Start.Crl, o.Start.Crl)}
	h.Stop = h.Stop.Max(o.Stop)
	return h
}

// Include returns the hull of z and o, keeping z's step.
func (z ZRange) Include(o ZRange) ZRange {
	z.Start = math.Min(z.Start, o.Start)
	z.Stop = math.Max(z.Stop, o.Stop)
	return z
}

// Limit returns the intersection of z and o, keeping z's step.
func (z ZRange) Limit(o ZRange) ZRange {
	z.Start = math.Max(z.Start, o.Start)
	z.Stop = math.Min(z.Stop, o.Stop)
	return z
}

// Include returns the hull of both volumes.
func (v Volume) Include(o Volume) Volume {
	return Volume{Hor: v.Hor.Include(o.Hor), Z: v.Z.Include(o.Z)}
}

// Limit returns the intersection of both volumes.
func (v Volume) Limit(o Volume) Volume {
	return Volume{Hor: v.Hor.Limit(o.Hor), Z: v.Z.Limit(o.Z)}
}

// Contains reports whether o lies entirely inside v.
func (v Volume) Contains(o Volume) bool {
	return o.Hor.Start.Inl >= v.Hor.Start.Inl && o.Hor.Start.Crl >= v.Hor.Start.Crl &&
		o.Hor.Stop.Inl <= v.Hor.Stop.Inl && o.Hor.Stop.Crl <= v.Hor.Stop.Crl &&
		o.Z.Start >= v.Z.Start && o.Z.Stop <= v.Z.Stop
}
