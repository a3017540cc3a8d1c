package synth

import (
	"math"
	"testing"

	"seisattrib/geom"
	"seisattrib/trace"
)

func testSpec() Spec {
	return Spec{
		Name:      "syn",
		Hor:       geom.HorRange{Start: geom.BinID{Inl: 10, Crl: 20}, Stop: geom.BinID{Inl: 12, Crl: 24}, Step: geom.BinID{Inl: 1, Crl: 2}},
		ZStep:     0.004,
		NrSamples: 50,
		FreqHz:    25,
		DipCrl:    1,
	}
}

func TestWriteDippingCube(t *testing.T) {
	store := trace.NewMemStore()
	s := testSpec()
	n, err := Write(store, s)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 9 {
		t.Fatalf("expected 9 traces, got %d", n)
	}
	traces := store.Traces("syn")
	if len(traces) != 9 || traces[0].Pos != (geom.BinID{Inl: 10, Crl: 20}) {
		t.Fatalf("unexpected traces %d", len(traces))
	}
	// One crossline step moves the pattern down one sample.
	a := traces[0].Components[0]
	b := traces[1].Components[0]
	for i := 1; i < len(a); i++ {
		if math.Abs(float64(a[i-1]-b[i])) > 1e-6 {
			t.Fatalf("sample %d does not follow the dip: %v vs %v", i, a[i-1], b[i])
		}
	}
}

func TestWriteDipsMatchesSpec(t *testing.T) {
	store := trace.NewMemStore()
	s := testSpec()
	if _, err := WriteDips(store, s); err != nil {
		t.Fatalf("WriteDips: %v", err)
	}
	info, err := store.Info(DipCubeName("syn"))
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.NrComponents() != 2 {
		t.Fatalf("expected 2 components, got %d", info.NrComponents())
	}
	tr := store.Traces(info.Name)[4]
	if tr.Components[0][7] != 0 || tr.Components[1][7] != float32(0.004) {
		t.Fatalf("unexpected dips %v/%v", tr.Components[0][7], tr.Components[1][7])
	}
}

func TestNoiseIsReproducible(t *testing.T) {
	s := testSpec()
	s.Noise = 0.5
	s.Seed = 7
	a, b := trace.NewMemStore(), trace.NewMemStore()
	if _, err := Write(a, s); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := Write(b, s); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ta, tb := a.Traces("syn"), b.Traces("syn")
	for i := range ta {
		for j, v := range ta[i].Components[0] {
			if tb[i].Components[0][j] != v {
				t.Fatalf("trace %d sample %d differs", i, j)
			}
		}
	}
	if _, err := Write(a, Spec{Name: "bad"}); err == nil {
		t.Fatalf("expected error for an empty spec")
	}
}
