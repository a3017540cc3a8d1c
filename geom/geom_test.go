package geom

import (
	"sort"
	"testing"
)

func TestBinIDOrdering(t *testing.T) {
	bins := []BinID{{3, 1}, {1, 5}, {1, 2}, {2, 9}, {-1, 4}}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Less(bins[j]) })
	want := []BinID{{-1, 4}, {1, 2}, {1, 5}, {2, 9}, {3, 1}}
	for i := range want {
		if bins[i] != want[i] {
			t.Fatalf("position %d: got %s want %s", i, bins[i], want[i])
		}
	}
	if (BinID{2, 2}).Compare(BinID{2, 2}) != 0 {
		t.Fatalf("equal positions must compare 0")
	}
	if !UndefBinID.IsUndefined() || (BinID{}).IsUndefined() {
		t.Fatalf("undefined sentinel mismatch")
	}
}

func TestBinIDArithmetic(t *testing.T) {
	a := BinID{Inl: 3, Crl: -2}
	b := BinID{Inl: 1, Crl: 4}
	if got := a.Add(b); got != (BinID{4, 2}) {
		t.Fatalf("Add: %s", got)
	}
	if got := a.Sub(b); got != (BinID{2, -6}) {
		t.Fatalf("Sub: %s", got)
	}
	if got := a.Mul(b); got != (BinID{3, -8}) {
		t.Fatalf("Mul: %s", got)
	}
	if got := a.Abs().Max(b); got != (BinID{3, 4}) {
		t.Fatalf("Abs/Max: %s", got)
	}
}

func TestSampleRange(t *testing.T) {
	r := SampleRange{Start: 4, Stop: 10}
	if r.Width() != 6 || r.NrSamples() != 7 {
		t.Fatalf("unexpected size of %s", r)
	}
	if got := r.Include(SampleRange{Start: 1, Stop: 5}); got != (SampleRange{1, 10}) {
		t.Fatalf("Include: %s", got)
	}
	if got := r.Clamp(5, 8); got != (SampleRange{5, 8}) {
		t.Fatalf("Clamp: %s", got)
	}
	if got := r.Scale(2); got != (SampleRange{8, 20}) {
		t.Fatalf("Scale: %s", got)
	}
}

func TestIntervalDivConvertsUnits(t *testing.T) {
	gate := Interval{Start: -8, Stop: 12}
	if got := gate.Div(1000); got != (Interval{Start: -0.008, Stop: 0.012}) {
		t.Fatalf("Div(1000): %s", got)
	}
	if got := gate.Div(0); got != gate {
		t.Fatalf("Div(0) should keep the interval, got %s", got)
	}
}

func TestVolumeRanges(t *testing.T) {
	s := &Survey{Inl: [3]int{10, 20, 2}, Crl: [3]int{100, 109, 1}, Z: ZRange{Start: 0, Stop: 1, Step: 0.004}, ZFactor: 1000}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	full := s.FullVolume()
	if full.Hor.NrInl() != 6 || full.Hor.NrCrl() != 10 || full.TotalNrPos(false) != 60 || full.TotalNrPos(true) != 10 {
		t.Fatalf("unexpected counts for %s", full)
	}
	sub := Volume{
		Hor: HorRange{Start: BinID{14, 90}, Stop: BinID{30, 105}, Step: BinID{2, 1}},
		Z:   ZRange{Start: -0.1, Stop: 0.5, Step: 0.004},
	}
	lim := full.Limit(sub)
	if lim.Hor.Start != (BinID{14, 100}) || lim.Hor.Stop != (BinID{20, 105}) || lim.Z.Start != 0 || lim.Z.Stop != 0.5 {
		t.Fatalf("unexpected intersection %s", lim)
	}
	if !full.Contains(lim) || full.Contains(sub) {
		t.Fatalf("containment mismatch")
	}
	hull := lim.Include(Volume{Hor: HorRange{Start: BinID{12, 101}, Stop: BinID{16, 101}}, Z: ZRange{Start: 0.6, Stop: 0.7}})
	if hull.Hor.Start != (BinID{12, 100}) || hull.Hor.Stop != (BinID{20, 105}) || hull.Z.Stop != 0.7 {
		t.Fatalf("unexpected hull %s", hull)
	}
	if !full.Includes(BinID{12, 109}) || full.Includes(BinID{22, 100}) {
		t.Fatalf("Includes mismatch")
	}
	if (HorRange{Start: BinID{2, 2}, Stop: BinID{1, 3}}).IsEmpty() == false {
		t.Fatalf("reversed range should be empty")
	}
}

func TestSurveyValidate(t *testing.T) {
	bad := []*Survey{
		{Inl: [3]int{5, 1, 1}, Crl: [3]int{1, 1, 1}, Z: ZRange{Step: 0.004}},
		{Inl: [3]int{1, 1, 1}, Crl: [3]int{1, 1, 1}},
		{Inl: [3]int{1, 1, 1}, Crl: [3]int{1, 1, 1}, Z: ZRange{Start: 1, Stop: 0, Step: 0.004}},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Fatalf("survey %d should be rejected", i)
		}
	}
	if (&Survey{}).ZUnitFactor() != 1 {
		t.Fatalf("zero factor should default to 1")
	}
	if SampleIndex(0.0279, 0.004) != 7 || SampleIndex(1, 0) != 0 {
		t.Fatalf("SampleIndex rounding mismatch")
	}
}
