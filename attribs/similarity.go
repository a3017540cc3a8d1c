package attribs

import (
	"errors"
	"fmt"
	"math"

	"seisattrib/attrib"
	"seisattrib/buffer"
	"seisattrib/desc"
	"seisattrib/geom"
)

// Trace pair layouts of the similarity attribute.
const (
	ExtensionNone = iota
	ExtensionRot90
	ExtensionRot180
	ExtensionCube
)

// Similarity outputs.
const (
	SimMean = iota
	SimMedian
	SimVariance
	SimMin
	SimMax
)

var similarityTemplate = &desc.Template{
	Name: "Similarity",
	Params: []desc.ParamSpec{
		{Key: "gate", Kind: desc.KindInterval, Default: "[-28,28]", Limits: &geom.Interval{Start: -10000, Stop: 10000}},
		{Key: "pos0", Kind: desc.KindBinID, Default: "0,1"},
		{Key: "pos1", Kind: desc.KindBinID, Default: "0,-1"},
		{Key: "stepout", Kind: desc.KindBinID, Default: "1,1", Disabled: true},
		{Key: "extension", Kind: desc.KindEnum, Enums: []string{"None", "rot90", "rot180", "Cube"}, Default: "None"},
		{Key: "steering", Kind: desc.KindBool, Default: "true"},
		{Key: "normalize", Kind: desc.KindBool, Default: "false"},
		// Extra window read around the gate, in user Z units, so steered
		// windows near the ends of the output stay inside the input data.
		{Key: "steermargin", Kind: desc.KindFloat, Default: "0", Limits: &geom.Interval{Start: 0, Stop: 10000}},
	},
	NrOutputs:   5,
	OutputNames: []string{"Mean", "Median", "Variance", "Min", "Max"},
	Inputs: []desc.InputSpec{
		{Desc: "Input data", Required: true},
		{Desc: "Steering data", IsSteering: true},
	},
	Update: func(d *desc.Desc) {
		cube := d.Enum("extension") == ExtensionCube
		d.SetParamEnabled("stepout", cube)
		d.SetParamEnabled("pos0", !cube)
		d.SetParamEnabled("pos1", !cube)
	},
}

// Similarity measures how alike the traces around a position are: for every
// pair of offsets it compares the gated windows and reports summary
// statistics over the pairs.
type Similarity struct {
	p         *attrib.Provider
	gate      geom.Interval // survey Z units
	margin    float64
	stepout   geom.BinID
	ext       int
	dosteer   bool
	normalize bool
	refstep   float64

	offsets []geom.BinID

	// Filled by GetInputData for the ComputeData calls that follow.
	inputs   []*buffer.SampleBuffer
	steering *buffer.SampleBuffer
	steerIdx []int
	dataIdx  int
}

func newSimilarity(p *attrib.Provider) (attrib.Algorithm, error) {
	d := p.Desc()
	s := &Similarity{
		p:         p,
		gate:      d.FloatInterval("gate").Div(p.ZFactor()),
		margin:    d.Float("steermargin") / p.ZFactor(),
		ext:       d.Enum("extension"),
		dosteer:   d.Bool("steering") && d.Input(1) != nil,
		normalize: d.Bool("normalize"),
		refstep:   p.Env().Geometry.ZStep(),
	}
	if s.ext == ExtensionCube {
		s.stepout = d.BinID("stepout").Abs()
		for inl := -s.stepout.Inl; inl <= s.stepout.Inl; inl++ {
			for crl := -s.stepout.Crl; crl <= s.stepout.Crl; crl++ {
				s.offsets = append(s.offsets, geom.BinID{Inl: inl, Crl: crl})
			}
		}
	} else {
		pos0, pos1 := d.BinID("pos0"), d.BinID("pos1")
		s.offsets = []geom.BinID{pos0, pos1}
		switch s.ext {
		case ExtensionRot90:
			s.offsets = append(s.offsets, rot90(pos0), rot90(pos1))
		case ExtensionRot180:
			s.offsets = append(s.offsets, rot180(pos0), rot180(pos1))
		}
		for _, off := range s.offsets {
			s.stepout = s.stepout.Max(off.Abs())
		}
	}
	s.inputs = make([]*buffer.SampleBuffer, len(s.offsets))
	return s, nil
}

func rot90(b geom.BinID) geom.BinID {
	return geom.BinID{Inl: b.Crl, Crl: -b.Inl}
}

func rot180(b geom.BinID) geom.BinID {
	return geom.BinID{Inl: -b.Inl, Crl: -b.Crl}
}

func (s *Similarity) Init() error {
	if len(s.offsets) < 2 {
		return errors.New("similarity: needs at least one trace pair")
	}
	if !s.dosteer {
		return nil
	}
	for _, off := range s.offsets {
		idx := SteeringIndex(off)
		if idx < 0 {
			return fmt.Errorf("similarity: offset %s exceeds the steering range of %d", off, MaxSteeringStepout)
		}
		if idx >= s.p.Input(1).NrOutputs() {
			return fmt.Errorf("similarity: steering input has no output for offset %s", off)
		}
	}
	return nil
}

// InputOutputs reads one steering output per offset when steering.
func (s *Similarity) InputOutputs(input int) ([]int, bool) {
	in := s.p.Desc().Input(1)
	if input != 1 || !s.dosteer {
		return nil, false
	}
	outs := make([]int, 0, len(s.offsets))
	seen := make(map[int]bool, len(s.offsets))
	for _, off := range s.offsets {
		// Out-of-range offsets are rejected by Init.
		idx := SteeringIndex(off)
		if idx < 0 || idx >= in.NrOutputs() || seen[idx] {
			continue
		}
		seen[idx] = true
		outs = append(outs, idx)
	}
	return outs, true
}

func (s *Similarity) ReqStepout(input, _ int) (geom.BinID, bool) {
	if input != 0 {
		return geom.BinID{}, false
	}
	return s.stepout, true
}

func (s *Similarity) ReqZMargin(input, _ int) (geom.Interval, bool) {
	if input != 0 {
		return geom.Interval{}, false
	}
	return s.gate, true
}

// DesZMargin widens the data window by the steering margin.
func (s *Similarity) DesZMargin(input, _ int) (geom.Interval, bool) {
	if input != 0 || !s.dosteer || s.margin == 0 {
		return geom.Interval{}, false
	}
	return geom.Interval{Start: s.gate.Start - s.margin, Stop: s.gate.Stop + s.margin}, true
}

func (s *Similarity) SetRefStep(step float64) {
	s.refstep = step
}

// Purpose: Collect the input windows around cur+relpos.
// Key aspects: Neighbours outside the stored data leave their slot nil so
// the pairs using them are skipped; any other failure aborts.
// Upstream: Provider.GetData.
// Downstream: Provider.InputData for the data and steering inputs.
func (s *Similarity) GetInputData(cur *attrib.Cursor, relpos geom.BinID, idi int) error {
	s.steering = nil
	s.steerIdx = s.steerIdx[:0]
	if s.dosteer {
		buf, err := s.p.InputData(1, cur, relpos, idi)
		if err != nil {
			return err
		}
		s.steering = buf
	}
	s.dataIdx = max(0, s.p.InputDataIndex(0))
	for i, off := range s.offsets {
		buf, err := s.p.InputData(0, cur, relpos.Add(off), idi)
		if err != nil {
			if !errors.Is(err, attrib.ErrPositionUnavailable) {
				return err
			}
			buf = nil
		}
		s.inputs[i] = buf
		s.steerIdx = append(s.steerIdx, SteeringIndex(off))
	}
	return nil
}

func (s *Similarity) pair(k int) (int, int) {
	if s.ext == ExtensionCube {
		return k, len(s.offsets) - 1 - k
	}
	return 2 * k, 2*k + 1
}

// shift returns the steering shift, in samples, of offset slot idx at sample.
func (s *Similarity) shift(idx, sample int) float64 {
	if s.steering == nil {
		return 0
	}
	v, ok := s.steering.Value(s.steerIdx[idx], sample)
	if !ok {
		return 0
	}
	return float64(v)
}

func (s *Similarity) ComputeData(job attrib.ComputeJob) error {
	gs := int(math.Round(s.gate.Start / s.refstep))
	ge := int(math.Round(s.gate.Stop / s.refstep))
	sz := ge - gs
	nrpairs := len(s.offsets) / 2

	var st runningStats
	var w0, w1 []float64
	for i := 0; i < job.NrSamples; i++ {
		sample := job.T0 + i
		st.reset()
		for k := 0; k < nrpairs; k++ {
			i0, i1 := s.pair(k)
			b0, b1 := s.inputs[i0], s.inputs[i1]
			if b0 == nil || b1 == nil {
				continue
			}
			s0 := float64(sample+gs) + s.shift(i0, sample)
			s1 := float64(sample+gs) + s.shift(i1, sample)
			var ok0, ok1 bool
			w0, ok0 = window(w0, b0.Item(s.dataIdx), b0.T0, s0, sz)
			w1, ok1 = window(w1, b1.Item(s.dataIdx), b1.T0, s1, sz)
			if !ok0 || !ok1 {
				continue
			}
			st.add(similarity(w0, w1, s.normalize))
		}
		s.write(job.Out, sample, &st)
	}
	return nil
}

// write stores the statistics of one sample; a sample without any valid pair
// reads 0 in every output. A single pair still defines every output: zero
// variance and the pair's value for the others.
func (s *Similarity) write(out *buffer.SampleBuffer, sample int, st *runningStats) {
	if st.size() == 0 {
		for o := SimMean; o <= SimMax; o++ {
			out.SetValue(o, sample, 0)
		}
		return
	}
	out.SetValue(SimMean, sample, float32(st.mean()))
	out.SetValue(SimVariance, sample, float32(st.variance()))
	out.SetValue(SimMin, sample, float32(st.min))
	out.SetValue(SimMax, sample, float32(st.max))
	if s.p.IsOutputEnabled(SimMedian) {
		out.SetValue(SimMedian, sample, float32(st.median()))
	}
}
