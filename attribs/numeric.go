package attribs

import (
	"math"
	"sort"

	"seisattrib/trace"
)

// window samples series (whose first sample has absolute index t0) at the
// fractional absolute positions start, start+1, ... start+sz. It reports
// false when any position falls outside the series.
func window(dst []float64, series []float32, t0 int, start float64, sz int) ([]float64, bool) {
	dst = dst[:0]
	if series == nil {
		return dst, false
	}
	for k := 0; k <= sz; k++ {
		v, ok := trace.Interpolate(series, start+float64(k)-float64(t0))
		if !ok {
			return dst, false
		}
		dst = append(dst, float64(v))
	}
	return dst, true
}

// similarity compares two equally long windows: 1 - |a-b| / (|a|+|b|).
// Identical windows score 1; two all-zero windows score 0. With normalize
// both windows are scaled to unit length first, so only shape counts.
func similarity(a, b []float64, normalize bool) float64 {
	if normalize {
		scaleToUnit(a)
		scaleToUnit(b)
	}
	var diff, na, nb float64
	for i := range a {
		d := a[i] - b[i]
		diff += d * d
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) + math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return 1 - math.Sqrt(diff)/denom
}

func scaleToUnit(v []float64) {
	var sq float64
	for _, x := range v {
		sq += x * x
	}
	if sq == 0 {
		return
	}
	inv := 1 / math.Sqrt(sq)
	for i := range v {
		v[i] *= inv
	}
}

// runningStats accumulates values for the summary statistics Similarity reports.
type runningStats struct {
	vals []float64
	sum  float64
	min  float64
	max  float64
}

func (r *runningStats) reset() {
	r.vals = r.vals[:0]
	r.sum = 0
}

func (r *runningStats) add(v float64) {
	if len(r.vals) == 0 || v < r.min {
		r.min = v
	}
	if len(r.vals) == 0 || v > r.max {
		r.max = v
	}
	r.vals = append(r.vals, v)
	r.sum += v
}

func (r *runningStats) size() int {
	return len(r.vals)
}

func (r *runningStats) mean() float64 {
	if len(r.vals) == 0 {
		return 0
	}
	return r.sum / float64(len(r.vals))
}

// variance is the sample variance; fewer than two values give 0.
func (r *runningStats) variance() float64 {
	n := len(r.vals)
	if n < 2 {
		return 0
	}
	m := r.mean()
	var ss float64
	for _, v := range r.vals {
		ss += (v - m) * (v - m)
	}
	return ss / float64(n-1)
}

// median sorts the collected values in place.
func (r *runningStats) median() float64 {
	n := len(r.vals)
	if n == 0 {
		return 0
	}
	sort.Float64s(r.vals)
	if n%2 == 1 {
		return r.vals[n/2]
	}
	return (r.vals[n/2-1] + r.vals[n/2]) / 2
}
