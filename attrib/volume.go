package attrib

import (
	"math"

	"seisattrib/geom"
)

// Tolerance when turning real-unit margins into sample counts.
const sampleEps = 1e-6

// SetDesiredVolume stores vol as what consumers want from this provider and
// pushes the grown requirement down to every input.
func (p *Provider) SetDesiredVolume(vol geom.Volume) {
	p.desiredVolume = &vol
	p.possibleVolume = nil
	p.propagateDesiredVolume()
}

// includeDesiredVolume widens the desired volume so several consumers of a
// shared provider are all served.
func (p *Provider) includeDesiredVolume(vol geom.Volume) {
	if p.desiredVolume != nil {
		vol = p.desiredVolume.Include(vol)
	}
	p.SetDesiredVolume(vol)
}

func (p *Provider) propagateDesiredVolume() {
	for inp, in := range p.inputs {
		if in == nil {
			continue
		}
		for _, out := range p.enabledOutputs() {
			if vol, ok := p.ComputeDesInputCube(inp, out); ok {
				in.includeDesiredVolume(vol)
			}
		}
	}
}

// ComputeDesInputCube returns the desired volume grown by the step-out and Z
// margin input inp needs to supply output out. It fails when no desired
// volume is set.
func (p *Provider) ComputeDesInputCube(inp, out int) (geom.Volume, bool) {
	if p.desiredVolume == nil {
		return geom.Volume{}, false
	}
	res := *p.desiredVolume
	grow := p.stepout(inp, out).Mul(p.HorStep())
	res.Hor.Start = res.Hor.Start.Sub(grow)
	res.Hor.Stop = res.Hor.Stop.Add(grow)
	m := p.zMargin(inp, out)
	res.Z.Start += m.Start
	res.Z.Stop += m.Stop
	return res, true
}

// Purpose: Compute the largest volume this provider can deliver.
// Key aspects: Leaves report the survey (or stored) extent; branches shrink
// res by each input's possible volume less the required step-out and margin,
// over all enabled outputs when output is -1.
// Upstream: Processor, AddLocalCompZIntervals, tests.
// Downstream: inputs' PossibleVolume.
func (p *Provider) PossibleVolume(output int, res geom.Volume) (geom.Volume, bool) {
	if len(p.inputs) == 0 {
		vol := p.graph.env.Geometry.FullVolume()
		if sv, ok := p.alg.(StoredVolumer); ok {
			if stored, ok := sv.StoredVolume(); ok {
				vol = vol.Limit(stored)
			}
		}
		p.possibleVolume = &vol
		return vol, true
	}
	if p.desiredVolume == nil {
		return res, false
	}
	outputs := []int{output}
	if output == -1 {
		outputs = p.enabledOutputs()
	}
	step := p.HorStep()
	isset := false
	for _, out := range outputs {
		for inp, in := range p.inputs {
			if in == nil {
				continue
			}
			for _, inOut := range p.inputOutputs(inp) {
				inVol, ok := in.PossibleVolume(inOut, res)
				if !ok {
					continue
				}
				shrink := p.reqStepout(inp, out).Mul(step)
				inVol.Hor.Start = inVol.Hor.Start.Add(shrink)
				inVol.Hor.Stop = inVol.Hor.Stop.Sub(shrink)
				m := p.reqZMargin(inp, out)
				inVol.Z.Start -= m.Start
				inVol.Z.Stop -= m.Stop
				res = res.Limit(inVol)
				isset = true
			}
		}
	}
	if !isset {
		return res, false
	}
	vol := res
	p.possibleVolume = &vol
	return res, true
}

// SetBufferStepout grows the lateral window this provider keeps cached. It
// never shrinks.
func (p *Provider) SetBufferStepout(ns geom.BinID) {
	if ns.Inl <= p.bufferStepout.Inl && ns.Crl <= p.bufferStepout.Crl {
		return
	}
	p.bufferStepout = p.bufferStepout.Max(ns)
	p.updateInputReqs(-1)
}

// updateInputReqs pushes desired volume and buffer step-out to input inp, or
// to every input for -1.
func (p *Provider) updateInputReqs(inp int) {
	if inp == -1 {
		for i := range p.inputs {
			p.updateInputReqs(i)
		}
		return
	}
	in := p.inputs[inp]
	if in == nil {
		return
	}
	for _, out := range p.enabledOutputs() {
		if vol, ok := p.ComputeDesInputCube(inp, out); ok {
			in.includeDesiredVolume(vol)
		}
		in.SetBufferStepout(p.stepout(inp, out).Add(p.bufferStepout))
	}
}

// Purpose: Register the exact Z windows consumers need, in reference-step samples.
// Key aspects: Each window is clamped to the possible volume and merged by
// hull into the slot with the same index, so consumers never conflict; each
// input then receives the windows grown by its Z margin.
// Upstream: Graph.AddLocalCompZIntervals, consumer providers.
// Downstream: inputs' AddLocalCompZIntervals.
func (p *Provider) AddLocalCompZIntervals(ni []geom.SampleRange) {
	refstep := p.RefStep()
	if refstep <= 0 {
		refstep = p.graph.env.Geometry.ZStep()
	}
	lo, hi, clamp := math.MinInt, math.MaxInt, false
	if p.desiredVolume != nil || len(p.inputs) == 0 {
		start := geom.Volume{}
		if p.desiredVolume != nil {
			start = *p.desiredVolume
		}
		if pv, ok := p.PossibleVolume(-1, start); ok {
			lo = int(math.Ceil(pv.Z.Start/refstep - sampleEps))
			hi = int(math.Floor(pv.Z.Stop/refstep + sampleEps))
			clamp = true
		}
	}

	clamped := make([]geom.SampleRange, len(ni))
	for idi, r := range ni {
		if clamp {
			r = r.Clamp(lo, hi)
		}
		clamped[idi] = r
		if idi < len(p.localZ) {
			p.localZ[idi] = p.localZ[idi].Include(r)
		} else {
			p.localZ = append(p.localZ, r)
		}
	}

	for inp, in := range p.inputs {
		if in == nil {
			continue
		}
		var ranges []geom.SampleRange
		for _, out := range p.enabledOutputs() {
			m := p.zMargin(inp, out)
			grow := geom.SampleRange{
				Start: int(math.Floor(m.Start/refstep + sampleEps)),
				Stop:  int(math.Ceil(m.Stop/refstep - sampleEps)),
			}
			for idi, r := range clamped {
				want := geom.SampleRange{Start: r.Start + grow.Start, Stop: r.Stop + grow.Stop}
				if idi < len(ranges) {
					ranges[idi] = ranges[idi].Include(want)
				} else {
					ranges = append(ranges, want)
				}
			}
		}
		if len(ranges) > 0 {
			in.AddLocalCompZIntervals(ranges)
		}
	}
}
