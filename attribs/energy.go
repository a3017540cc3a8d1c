package attribs

import (
	"math"

	"seisattrib/attrib"
	"seisattrib/buffer"
	"seisattrib/desc"
	"seisattrib/geom"
)

var energyTemplate = &desc.Template{
	Name: "Energy",
	Params: []desc.ParamSpec{
		{Key: "gate", Kind: desc.KindInterval, Default: "[-28,28]", Limits: &geom.Interval{Start: -10000, Stop: 10000}},
	},
	NrOutputs:   1,
	OutputNames: []string{"Energy"},
	Inputs: []desc.InputSpec{
		{Desc: "Input data", Required: true},
	},
}

// Energy is the mean squared amplitude over a gate around each sample.
type Energy struct {
	p       *attrib.Provider
	gate    geom.Interval
	refstep float64

	input   *buffer.SampleBuffer
	dataIdx int
}

func newEnergy(p *attrib.Provider) (attrib.Algorithm, error) {
	return &Energy{
		p:       p,
		gate:    p.Desc().FloatInterval("gate").Div(p.ZFactor()),
		refstep: p.Env().Geometry.ZStep(),
	}, nil
}

func (e *Energy) ReqZMargin(input, _ int) (geom.Interval, bool) {
	return e.gate, input == 0
}

func (e *Energy) SetRefStep(step float64) {
	e.refstep = step
}

func (e *Energy) GetInputData(cur *attrib.Cursor, relpos geom.BinID, idi int) error {
	buf, err := e.p.InputData(0, cur, relpos, idi)
	if err != nil {
		return err
	}
	e.input = buf
	e.dataIdx = max(0, e.p.InputDataIndex(0))
	return nil
}

func (e *Energy) ComputeData(job attrib.ComputeJob) error {
	gs := int(math.Round(e.gate.Start / e.refstep))
	ge := int(math.Round(e.gate.Stop / e.refstep))
	for i := 0; i < job.NrSamples; i++ {
		sample := job.T0 + i
		var sum float64
		n := 0
		for s := sample + gs; s <= sample+ge; s++ {
			v, ok := e.input.Value(e.dataIdx, s)
			if !ok {
				continue
			}
			sum += float64(v) * float64(v)
			n++
		}
		if n > 0 {
			sum /= float64(n)
		}
		job.Out.SetValue(0, sample, float32(sum))
	}
	return nil
}
