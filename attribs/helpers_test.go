package attribs

import (
	"context"
	"fmt"
	"testing"

	"seisattrib/attrib"
	"seisattrib/desc"
	"seisattrib/geom"
	"seisattrib/stats"
	"seisattrib/trace"
)

var testSurvey = &geom.Survey{
	Name:    "synthetic",
	Inl:     [3]int{1, 5, 1},
	Crl:     [3]int{1, 5, 1},
	Z:       geom.ZRange{Start: 0, Stop: 0.1, Step: 0.004},
	ZFactor: 1000,
}

func bid(inl, crl int) geom.BinID {
	return geom.BinID{Inl: inl, Crl: crl}
}

type sampleFunc func(pos geom.BinID, comp, sample int) float32

// putCube writes a cube covering the whole test survey.
func putCube(t *testing.T, w trace.Writer, name string, zstep float64, nrsamples, comps int, fn sampleFunc) {
	t.Helper()
	info := trace.CubeInfo{
		Name:      name,
		Hor:       testSurvey.FullVolume().Hor,
		ZStep:     zstep,
		NrSamples: nrsamples,
	}
	if comps > 1 {
		for c := 0; c < comps; c++ {
			info.ComponentNames = append(info.ComponentNames, fmt.Sprintf("c%d", c))
		}
	}
	if err := w.PutCube(info); err != nil {
		t.Fatalf("PutCube: %v", err)
	}
	var traces []trace.Trace
	for inl := info.Hor.Start.Inl; inl <= info.Hor.Stop.Inl; inl++ {
		for crl := info.Hor.Start.Crl; crl <= info.Hor.Stop.Crl; crl++ {
			pos := bid(inl, crl)
			tr := trace.Trace{Pos: pos, Z0: info.Z0, ZStep: zstep}
			for c := 0; c < comps; c++ {
				series := make([]float32, nrsamples)
				for s := range series {
					series[s] = fn(pos, c, s)
				}
				tr.Components = append(tr.Components, series)
			}
			traces = append(traces, tr)
		}
	}
	if err := w.PutTraces(name, traces); err != nil {
		t.Fatalf("PutTraces: %v", err)
	}
}

func testEnv(cat trace.Catalog) attrib.Env {
	return attrib.Env{Geometry: testSurvey, Catalog: cat, Stats: stats.NewTracker()}
}

func newDesc(t *testing.T, set *desc.Set, typ string, params map[string]string, inputs ...*desc.Desc) *desc.Desc {
	t.Helper()
	d, err := desc.New(typ)
	if err != nil {
		t.Fatalf("desc.New(%s): %v", typ, err)
	}
	for k, v := range params {
		if err := d.SetValue(k, v); err != nil {
			t.Fatalf("SetValue(%s=%s): %v", k, v, err)
		}
	}
	for i, in := range inputs {
		if err := d.SetInput(i, in); err != nil {
			t.Fatalf("SetInput(%d): %v", i, err)
		}
	}
	if set != nil {
		if _, err := set.Add(d); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return d
}

// run drives roots over vol and returns every output keyed by root and position.
func run(t *testing.T, env attrib.Env, vol geom.Volume, roots ...*desc.Desc) (map[int]map[geom.BinID]attrib.Output, attrib.ProcessorStats) {
	t.Helper()
	g, err := attrib.NewGraph(roots, env)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	defer g.Release()
	proc, err := attrib.NewProcessor(g, vol)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	out := make(map[int]map[geom.BinID]attrib.Output)
	err = proc.Run(context.Background(), func(o attrib.Output) error {
		o.Samples = append([]float32(nil), o.Samples...)
		if out[o.Root] == nil {
			out[o.Root] = make(map[geom.BinID]attrib.Output)
		}
		out[o.Root][o.Pos] = o
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out, proc.Stats()
}

func volume(start, stop geom.BinID, z0, z1 float64) geom.Volume {
	return geom.Volume{
		Hor: geom.HorRange{Start: start, Stop: stop, Step: bid(1, 1)},
		Z:   geom.ZRange{Start: z0, Stop: z1, Step: testSurvey.ZStep()},
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}
