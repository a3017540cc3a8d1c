package attribs

import (
	"errors"
	"path/filepath"
	"testing"

	"seisattrib/attrib"
	"seisattrib/desc"
	"seisattrib/geom"
	"seisattrib/trace"
)

// Purpose: Verify a finer stored step becomes the reference step.
// Key aspects: Output windows are given in survey samples and come back at
// twice the sample count, values resampled from the stored trace.
// Upstream: go test execution.
// Downstream: Storage.ComputeData, Graph.AddLocalCompZIntervals.
func TestStorageResamplesOntoReferenceStep(t *testing.T) {
	store := trace.NewMemStore()
	putCube(t, store, "fine", 0.002, 51, 1, func(_ geom.BinID, _, s int) float32 {
		return float32(2 * s)
	})
	set := desc.NewSet(false)
	root := newDesc(t, set, desc.StorageType, map[string]string{"id": "fine"})

	out, st := run(t, testEnv(store), volume(bid(2, 2), bid(2, 3), 0.02, 0.04), root)
	if st.Produced != 2 {
		t.Fatalf("expected 2 traces, got %+v", st)
	}
	o := out[0][bid(2, 3)]
	if len(o.Samples) != 11 || !near(o.Step, 0.002) || !near(o.Z0, 0.02) {
		t.Fatalf("unexpected sampling n=%d step=%g z0=%g", len(o.Samples), o.Step, o.Z0)
	}
	for i, v := range o.Samples {
		if !near(float64(v), float64(20+2*i)) {
			t.Fatalf("sample %d: got %v want %d", i, v, 20+2*i)
		}
	}
}

func TestStorageClampsToStoredZRange(t *testing.T) {
	store := trace.NewMemStore()
	putCube(t, store, "short", 0.004, 10, 1, func(_ geom.BinID, _, s int) float32 {
		return float32(s)
	})
	root := newDesc(t, desc.NewSet(false), desc.StorageType, map[string]string{"id": "short"})

	out, _ := run(t, testEnv(store), volume(bid(1, 1), bid(1, 1), 0.02, 0.06), root)
	o, ok := out[0][bid(1, 1)]
	if !ok {
		t.Fatalf("no output")
	}
	if len(o.Samples) != 5 || o.Samples[0] != 5 || o.Samples[4] != 9 {
		t.Fatalf("expected samples 5..9, got %v", o.Samples)
	}
}

func TestStorageCreateErrors(t *testing.T) {
	store := trace.NewMemStore()
	putCube(t, store, "mono", 0.004, 26, 1, func(geom.BinID, int, int) float32 { return 1 })

	missing := newDesc(t, nil, desc.StorageType, map[string]string{"id": "nope"})
	if _, _, err := attrib.Create(missing, testEnv(store)); !errors.Is(err, trace.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	tooMany := newDesc(t, nil, desc.StorageType, map[string]string{"id": "mono", "components": "2"})
	if _, _, err := attrib.Create(tooMany, testEnv(store)); !errors.Is(err, attrib.ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed, got %v", err)
	}
	noCatalog := newDesc(t, nil, desc.StorageType, map[string]string{"id": "mono"})
	if _, _, err := attrib.Create(noCatalog, testEnv(nil)); err == nil {
		t.Fatalf("expected error without catalog")
	}
}

// Purpose: Verify the look-ahead keeps step-out neighbours available.
// Key aspects: A reader error surfaces from the traversal; evicted lines
// leave the buffer bounded.
// Upstream: go test execution.
// Downstream: Storage.MoveToNextTrace, Storage.Evict.
func TestStorageLookAheadAndEviction(t *testing.T) {
	store := trace.NewMemStore()
	putCube(t, store, "seis", 0.004, 26, 1, func(p geom.BinID, _, s int) float32 {
		return float32(p.Inl*100 + p.Crl + s)
	})
	set := desc.NewSet(false)
	src := newDesc(t, set, desc.StorageType, map[string]string{"id": "seis"})
	sim := newDesc(t, set, "Similarity", map[string]string{
		"steering": "false", "pos0": "1,0", "pos1": "-1,0", "gate": "[-8,8]",
	}, src)

	g, _, err := attrib.Create(sim, testEnv(store))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer g.Release()
	g.SetDesiredVolume(testSurvey.FullVolume())
	if err := g.AddLocalCompZIntervals([]geom.SampleRange{{Start: 5, Stop: 8}}); err != nil {
		t.Fatalf("AddLocalCompZIntervals: %v", err)
	}
	var storage *Storage
	for _, p := range g.Providers() {
		if s, ok := p.Algorithm().(*Storage); ok {
			storage = s
		}
	}
	if storage == nil {
		t.Fatalf("no storage provider")
	}
	for {
		ok, err := g.MoveToNextTrace()
		if err != nil {
			t.Fatalf("MoveToNextTrace: %v", err)
		}
		if !ok {
			break
		}
		cur := g.Cursor().Pos()
		if cur.Inl < 5 {
			if _, found := storage.traces[cur.Add(bid(1, 0))]; !found {
				t.Fatalf("next inline not read ahead at %s", cur)
			}
		}
		for pos := range storage.traces {
			if pos.Inl < cur.Inl-1 {
				t.Fatalf("trace %s kept at %s", pos, cur)
			}
		}
		if storage.Buffered() > 15 {
			t.Fatalf("buffer grew to %d traces", storage.Buffered())
		}
	}
}

func TestStorageReaderErrorStopsTraversal(t *testing.T) {
	store := trace.NewMemStore()
	putCube(t, store, "seis", 0.004, 26, 1, func(geom.BinID, int, int) float32 { return 1 })
	store.FailAt = map[string]geom.BinID{"seis": bid(3, 2)}
	root := newDesc(t, nil, desc.StorageType, map[string]string{"id": "seis"})

	g, err := attrib.NewGraph([]*desc.Desc{root}, testEnv(store))
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	defer g.Release()
	proc, err := attrib.NewProcessor(g, testSurvey.FullVolume())
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	if err := proc.Run(t.Context(), func(attrib.Output) error { return nil }); err == nil {
		t.Fatalf("expected reader failure to stop the run")
	}
}

func TestStorageReadsFromPebbleStore(t *testing.T) {
	store, err := trace.Open(filepath.Join(t.TempDir(), "cubes"), trace.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	putCube(t, store, "seis", 0.004, 26, 1, func(p geom.BinID, _, s int) float32 {
		return float32(p.Inl*100+p.Crl) + float32(s)/4
	})
	root := newDesc(t, nil, desc.StorageType, map[string]string{"id": "seis"})

	out, st := run(t, testEnv(store), volume(bid(2, 2), bid(3, 4), 0, 0.02), root)
	if st.Produced != 6 {
		t.Fatalf("expected 6 traces, got %+v", st)
	}
	o := out[0][bid(3, 4)]
	if len(o.Samples) != 6 || o.Samples[0] != 304 || o.Samples[5] != 305.25 {
		t.Fatalf("unexpected samples %v", o.Samples)
	}
}
