package attrib

import (
	"seisattrib/buffer"
	"seisattrib/desc"
	"seisattrib/geom"
)

// Provider is the runtime node of one unique descriptor. It owns its line
// buffer exclusively; deduplication shares the node, never the buffer.
type Provider struct {
	graph *Graph
	desc  *desc.Desc
	alg   Algorithm

	inputs         []*Provider
	outputInterest []int

	desiredVolume  *geom.Volume
	possibleVolume *geom.Volume
	bufferStepout  geom.BinID
	localZ         []geom.SampleRange

	lines *buffer.LineBuffer
}

func newProvider(g *Graph, d *desc.Desc) *Provider {
	return &Provider{
		graph:          g,
		desc:           d,
		inputs:         make([]*Provider, d.NrInputs()),
		outputInterest: make([]int, d.NrOutputs()),
	}
}

// Desc returns the descriptor the provider computes.
func (p *Provider) Desc() *desc.Desc {
	return p.desc
}

// Algorithm returns the attribute implementation.
func (p *Provider) Algorithm() Algorithm {
	return p.alg
}

// Name is the attribute type, used as the stats key.
func (p *Provider) Name() string {
	return p.desc.AttribName()
}

func (p *Provider) String() string {
	return p.desc.String()
}

// Env returns the graph environment.
func (p *Provider) Env() Env {
	return p.graph.env
}

// NrInputs returns the number of input slots.
func (p *Provider) NrInputs() int {
	return len(p.inputs)
}

// Input returns the provider wired to slot idx, or nil.
func (p *Provider) Input(idx int) *Provider {
	if idx < 0 || idx >= len(p.inputs) {
		return nil
	}
	return p.inputs[idx]
}

// NrOutputs returns the number of output slots.
func (p *Provider) NrOutputs() int {
	return len(p.outputInterest)
}

// RefStep returns the graph reference Z step.
func (p *Provider) RefStep() float64 {
	return p.graph.refstep
}

// ZFactor converts survey Z units into user units (ms for time surveys).
func (p *Provider) ZFactor() float64 {
	return p.graph.env.Geometry.ZUnitFactor()
}

// HorStep returns the lateral grid step that relative positions are scaled by.
func (p *Provider) HorStep() geom.BinID {
	return p.graph.horStep
}

// DesiredVolume returns the volume consumers asked for, or nil.
func (p *Provider) DesiredVolume() *geom.Volume {
	return p.desiredVolume
}

// BufferStepout returns the lateral window the provider keeps cached.
func (p *Provider) BufferStepout() geom.BinID {
	return p.bufferStepout
}

// LocalZIntervals returns the compute windows consumers registered, in
// reference-step samples.
func (p *Provider) LocalZIntervals() []geom.SampleRange {
	return append([]geom.SampleRange(nil), p.localZ...)
}

// LocalZ returns compute window idi.
func (p *Provider) LocalZ(idi int) (geom.SampleRange, bool) {
	if idi < 0 || idi >= len(p.localZ) {
		return geom.SampleRange{}, false
	}
	return p.localZ[idi], true
}

// EnableOutput increments (yn) or decrements the interest in output out.
// An out-of-range index or decrementing a zero count panics with a
// ProgrammingError.
func (p *Provider) EnableOutput(out int, yn bool) {
	if out < 0 || out >= len(p.outputInterest) {
		progError("%s: output %d out of range [0,%d)", p, out, len(p.outputInterest))
	}
	if yn {
		p.outputInterest[out]++
		if p.outputInterest[out] == 1 {
			// A newly read output may need more context from the inputs.
			p.updateInputReqs(-1)
		}
		return
	}
	if p.outputInterest[out] == 0 {
		progError("%s: disabling output %d which has no interest", p, out)
	}
	p.outputInterest[out]--
}

// IsOutputEnabled reports whether anybody is interested in output out.
func (p *Provider) IsOutputEnabled(out int) bool {
	return out >= 0 && out < len(p.outputInterest) && p.outputInterest[out] > 0
}

// OutputInterest returns the reference count of output out.
func (p *Provider) OutputInterest(out int) int {
	if out < 0 || out >= len(p.outputInterest) {
		return 0
	}
	return p.outputInterest[out]
}

func (p *Provider) enabledOutputs() []int {
	var outs []int
	for out, n := range p.outputInterest {
		if n > 0 {
			outs = append(outs, out)
		}
	}
	return outs
}

// inputOutputs returns the outputs of input slot inp this provider reads.
func (p *Provider) inputOutputs(inp int) []int {
	if io, ok := p.alg.(InputOutputer); ok {
		if outs, ok := io.InputOutputs(inp); ok {
			return outs
		}
	}
	in := p.desc.Input(inp)
	if in == nil || in.SelectedOutput < 0 {
		return nil
	}
	return []int{in.SelectedOutput}
}

// setInput wires in to slot inp, enables the outputs this provider reads
// from it and pushes the current requirements down.
func (p *Provider) setInput(inp int, in *Provider) {
	p.inputs[inp] = in
	for _, out := range p.inputOutputs(inp) {
		in.EnableOutput(out, true)
	}
	p.updateInputReqs(inp)
}

// unsetInputs reverts the enables setInput made.
func (p *Provider) unsetInputs() {
	for inp, in := range p.inputs {
		if in == nil {
			continue
		}
		for _, out := range p.inputOutputs(inp) {
			in.EnableOutput(out, false)
		}
		p.inputs[inp] = nil
	}
}

func (p *Provider) reqStepout(inp, out int) geom.BinID {
	if r, ok := p.alg.(StepoutRequirer); ok {
		if so, ok := r.ReqStepout(inp, out); ok {
			return so.Abs()
		}
	}
	return geom.BinID{}
}

// stepout is the larger of the required and desired step-outs.
func (p *Provider) stepout(inp, out int) geom.BinID {
	so := p.reqStepout(inp, out)
	if r, ok := p.alg.(DesStepoutRequirer); ok {
		if des, ok := r.DesStepout(inp, out); ok {
			so = so.Max(des.Abs())
		}
	}
	return so
}

func (p *Provider) reqZMargin(inp, out int) geom.Interval {
	if r, ok := p.alg.(ZMarginRequirer); ok {
		if m, ok := r.ReqZMargin(inp, out); ok {
			return m
		}
	}
	return geom.Interval{}
}

// zMargin is the hull of the required and desired margins, starting from (0,0).
func (p *Provider) zMargin(inp, out int) geom.Interval {
	m := geom.Interval{}.Include(p.reqZMargin(inp, out))
	if r, ok := p.alg.(DesZMarginRequirer); ok {
		if des, ok := r.DesZMargin(inp, out); ok {
			m = m.Include(des)
		}
	}
	return m
}

// InputData fetches the buffer of input slot inp at cur+relpos for compute
// interval idi.
func (p *Provider) InputData(inp int, cur *Cursor, relpos geom.BinID, idi int) (*buffer.SampleBuffer, error) {
	in := p.Input(inp)
	if in == nil {
		return nil, ErrMissingInput
	}
	return in.GetData(cur, relpos, idi)
}

// InputDataIndex returns the output of input slot inp selected by the descriptor.
func (p *Provider) InputDataIndex(inp int) int {
	if in := p.desc.Input(inp); in != nil {
		return in.SelectedOutput
	}
	return -1
}
