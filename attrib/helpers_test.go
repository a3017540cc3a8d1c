package attrib

import (
	"errors"
	"testing"

	"seisattrib/buffer"
	"seisattrib/desc"
	"seisattrib/geom"
	"seisattrib/stats"
)

// Attribute types used only by the engine tests. The synthetic source
// computes any position on demand, so no reader is involved.
func init() {
	Register(&desc.Template{
		Name: "TestSource",
		Params: []desc.ParamSpec{
			{Key: "offset", Kind: desc.KindFloat, Default: "0"},
			{Key: "zstep", Kind: desc.KindFloat, Default: "0"},
			{Key: "skipcrl", Kind: desc.KindInt, Default: "0"},
			{Key: "holecrl", Kind: desc.KindInt, Default: "0"},
		},
		NrOutputs: 2,
	}, newTestSource)
	Register(&desc.Template{
		Name: "TestSum",
		Params: []desc.ParamSpec{
			{Key: "stepout", Kind: desc.KindBinID, Default: "0,0"},
			{Key: "margin", Kind: desc.KindInterval, Default: "[0,0]"},
		},
		NrOutputs: 2,
		Inputs: []desc.InputSpec{
			{Desc: "first", Required: true},
			{Desc: "second"},
		},
	}, newTestSum)
	Register(&desc.Template{
		Name:      "TestFail",
		NrOutputs: 1,
		Inputs:    []desc.InputSpec{{Desc: "input", Required: true}},
	}, func(p *Provider) (Algorithm, error) { return &testFail{}, nil })
	Register(&desc.Template{Name: "TestConst", NrOutputs: 1}, func(p *Provider) (Algorithm, error) {
		return &testConst{p: p}, nil
	})
	desc.RegisterTemplate(&desc.Template{Name: "TestUnbound", NrOutputs: 1})
}

var testSurvey = &geom.Survey{
	Name:    "test",
	Inl:     [3]int{1, 5, 1},
	Crl:     [3]int{1, 5, 1},
	Z:       geom.ZRange{Start: 0, Stop: 0.1, Step: 0.004},
	ZFactor: 1000,
}

func testEnv() Env {
	return Env{Geometry: testSurvey, Stats: stats.NewTracker()}
}

func bid(inl, crl int) geom.BinID {
	return geom.BinID{Inl: inl, Crl: crl}
}

// srcValue is the amplitude the synthetic source reports.
func srcValue(pos geom.BinID, sample int, offset float64) float32 {
	return float32(pos.Inl*100+pos.Crl) + float32(sample)*0.5 + float32(offset)
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

func providerOf(t *testing.T, g *Graph, typ string) *Provider {
	t.Helper()
	for _, p := range g.Providers() {
		if p.Name() == typ {
			return p
		}
	}
	t.Fatalf("no %s provider in graph", typ)
	return nil
}

type testSource struct {
	p       *Provider
	offset  float64
	zstep   float64
	skipCrl int
	holeCrl int

	positions []geom.BinID
	next      int
	pos       geom.BinID
	evicted   []geom.BinID
	closed    bool
}

func newTestSource(p *Provider) (Algorithm, error) {
	d := p.Desc()
	return &testSource{
		p:       p,
		offset:  d.Float("offset"),
		zstep:   d.Float("zstep"),
		skipCrl: d.Int("skipcrl"),
		holeCrl: d.Int("holecrl"),
		pos:     geom.UndefBinID,
	}, nil
}

func (s *testSource) StoredZStep() (float64, bool) {
	return s.zstep, s.zstep > 0
}

func (s *testSource) Prepare() error {
	hor := testSurvey.FullVolume().Hor
	if dv := s.p.DesiredVolume(); dv != nil {
		hor = dv.Hor.Limit(hor)
	}
	s.positions = s.positions[:0]
	for inl := hor.Start.Inl; inl <= hor.Stop.Inl; inl++ {
		for crl := hor.Start.Crl; crl <= hor.Stop.Crl; crl++ {
			if crl == s.skipCrl {
				continue
			}
			s.positions = append(s.positions, bid(inl, crl))
		}
	}
	s.next = 0
	s.pos = geom.UndefBinID
	return nil
}

func (s *testSource) Position() geom.BinID {
	return s.pos
}

func (s *testSource) MoveToNextTrace() (bool, error) {
	if s.next >= len(s.positions) {
		return false, nil
	}
	s.pos = s.positions[s.next]
	s.next++
	return true, nil
}

func (s *testSource) Evict(cur geom.BinID) {
	s.evicted = append(s.evicted, cur)
}

func (s *testSource) Close() error {
	s.closed = true
	return nil
}

func (s *testSource) GetInputData(cur *Cursor, relpos geom.BinID, _ int) error {
	pos := cur.Pos().Add(relpos.Mul(s.p.HorStep()))
	if !testSurvey.FullVolume().Includes(pos) || pos.Crl == s.holeCrl {
		return ErrPositionUnavailable
	}
	return nil
}

func (s *testSource) ComputeData(job ComputeJob) error {
	for out := 0; out < s.p.NrOutputs(); out++ {
		if !s.p.IsOutputEnabled(out) {
			continue
		}
		for i := 0; i < job.NrSamples; i++ {
			sample := job.T0 + i
			job.Out.SetValue(out, sample, srcValue(job.Pos, sample, s.offset)+float32(out*1000))
		}
	}
	return nil
}

// testSum adds its two inputs (output 0) or sums the first input over a
// lateral step-out square (output 1).
type testSum struct {
	p       *Provider
	stepout geom.BinID
	margin  geom.Interval

	center *buffer.SampleBuffer
	extra  *buffer.SampleBuffer
	ring   []*buffer.SampleBuffer
}

func newTestSum(p *Provider) (Algorithm, error) {
	return &testSum{
		p:       p,
		stepout: p.Desc().BinID("stepout"),
		margin:  p.Desc().FloatInterval("margin"),
	}, nil
}

func (s *testSum) ReqStepout(input, out int) (geom.BinID, bool) {
	return s.stepout, input == 0 && out == 1
}

func (s *testSum) ReqZMargin(input, _ int) (geom.Interval, bool) {
	return s.margin, input == 0
}

func (s *testSum) GetInputData(cur *Cursor, relpos geom.BinID, idi int) error {
	var err error
	if s.center, err = s.p.InputData(0, cur, relpos, idi); err != nil {
		return err
	}
	s.extra = nil
	if s.p.Input(1) != nil {
		if s.extra, err = s.p.InputData(1, cur, relpos, idi); err != nil {
			return err
		}
	}
	s.ring = s.ring[:0]
	if !s.p.IsOutputEnabled(1) {
		return nil
	}
	for inl := -s.stepout.Inl; inl <= s.stepout.Inl; inl++ {
		for crl := -s.stepout.Crl; crl <= s.stepout.Crl; crl++ {
			buf, err := s.p.InputData(0, cur, relpos.Add(bid(inl, crl)), idi)
			if errors.Is(err, ErrPositionUnavailable) {
				continue
			}
			if err != nil {
				return err
			}
			s.ring = append(s.ring, buf)
		}
	}
	return nil
}

func (s *testSum) ComputeData(job ComputeJob) error {
	idx0 := s.p.InputDataIndex(0)
	for i := 0; i < job.NrSamples; i++ {
		sample := job.T0 + i
		v, _ := s.center.Value(idx0, sample)
		if s.extra != nil {
			e, _ := s.extra.Value(s.p.InputDataIndex(1), sample)
			v += e
		}
		job.Out.SetValue(0, sample, v)
		var sum float32
		for _, buf := range s.ring {
			r, _ := buf.Value(idx0, sample)
			sum += r
		}
		job.Out.SetValue(1, sample, sum)
	}
	return nil
}

type testFail struct{}

func (testFail) Init() error {
	return errors.New("testfail: refused")
}

func (testFail) GetInputData(*Cursor, geom.BinID, int) error { return nil }
func (testFail) ComputeData(ComputeJob) error                { return nil }

// testConst is a leaf that is not a trace source.
type testConst struct {
	p *Provider
}

func (c *testConst) GetInputData(*Cursor, geom.BinID, int) error { return nil }

func (c *testConst) ComputeData(job ComputeJob) error {
	for i := 0; i < job.NrSamples; i++ {
		job.Out.SetValue(0, job.T0+i, 1)
	}
	return nil
}
