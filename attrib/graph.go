package attrib

import (
	"errors"
	"fmt"
	"log"
	"math"

	"seisattrib/desc"
	"seisattrib/geom"
)

// Graph is the arena of providers built from a set of root descriptors. It
// owns the traversal cursor and the reference Z step, both of which every
// provider reads from here rather than keeping copies.
type Graph struct {
	env       Env
	providers []*Provider
	roots     []*Provider
	rootOuts  []int
	refstep   float64
	horStep   geom.BinID
	cursor    Cursor
	sources   []Source
	prepared  bool
}

// Purpose: Build one provider graph for a set of root descriptors.
// Key aspects: Identical descriptors share one provider; each root enables
// its selected output once; the reference Z step is fixed afterwards.
// Upstream: Processor setup, seisattrib main, tests.
// Downstream: internalCreate, computeRefZStep, propagateZRefStep.
func NewGraph(roots []*desc.Desc, env Env) (*Graph, error) {
	if env.Geometry == nil {
		return nil, errors.New("attrib: graph needs a geometry")
	}
	if env.MinSamplesPerTask <= 0 {
		env.MinSamplesPerTask = defaultMinSamplesPerTask
	}
	g := &Graph{
		env:     env,
		horStep: env.Geometry.FullVolume().Hor.SafeStep(),
		cursor:  Cursor{pos: geom.UndefBinID},
	}
	for _, d := range roots {
		p, err := g.create(d)
		if err != nil {
			return nil, err
		}
		if d.SelectedOutput >= 0 {
			p.EnableOutput(d.SelectedOutput, true)
		}
		g.roots = append(g.roots, p)
		g.rootOuts = append(g.rootOuts, d.SelectedOutput)
	}
	g.computeRefZStep()
	g.propagateZRefStep()
	return g, nil
}

// Create builds a graph for a single descriptor and returns its provider.
func Create(d *desc.Desc, env Env) (*Graph, *Provider, error) {
	g, err := NewGraph([]*desc.Desc{d}, env)
	if err != nil {
		return nil, nil, err
	}
	return g, g.roots[0], nil
}

// Roots returns the providers of the root descriptors, in order. A root
// shared by identical descriptors appears once per descriptor.
func (g *Graph) Roots() []*Provider {
	return append([]*Provider(nil), g.roots...)
}

// RootOutput returns the output root i selects. Roots sharing a provider may
// select different outputs of it.
func (g *Graph) RootOutput(i int) int {
	if i < 0 || i >= len(g.rootOuts) {
		return -1
	}
	return g.rootOuts[i]
}

// Providers returns every provider in creation order.
func (g *Graph) Providers() []*Provider {
	return append([]*Provider(nil), g.providers...)
}

// RefStep returns the reference Z step.
func (g *Graph) RefStep() float64 {
	return g.refstep
}

// Cursor returns the graph-owned traversal position.
func (g *Graph) Cursor() *Cursor {
	return &g.cursor
}

// Env returns the graph environment.
func (g *Graph) Env() Env {
	return g.env
}

// create builds d and its inputs, rolling the arena back when any part fails.
func (g *Graph) create(d *desc.Desc) (*Provider, error) {
	mark := len(g.providers)
	p, err := g.internalCreate(d)
	if err != nil {
		g.rollback(mark)
		return nil, err
	}
	return p, nil
}

func (g *Graph) internalCreate(d *desc.Desc) (*Provider, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrMissingInput)
	}
	if d.NrInputs() > 0 && d.DescSet() == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedInputs, d)
	}
	for _, existing := range g.providers {
		if existing.desc.IsIdenticalTo(d, false) {
			return existing, nil
		}
	}
	create, err := lookupFactory(d.AttribName())
	if err != nil {
		return nil, err
	}
	p := newProvider(g, d)
	g.providers = append(g.providers, p)
	alg, err := create(p)
	if err != nil {
		if errors.Is(err, ErrInitFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrInitFailed, d, err)
	}
	p.alg = alg

	for inp := 0; inp < d.NrInputs(); inp++ {
		in := d.Input(inp)
		if in == nil {
			if d.InputSpec(inp).Required {
				return nil, fmt.Errorf("%w: %s input %d (%s)", ErrMissingInput, d, inp, d.InputSpec(inp).Desc)
			}
			continue
		}
		inProv, err := g.internalCreate(in)
		if err != nil {
			return nil, err
		}
		p.setInput(inp, inProv)
	}

	if init, ok := alg.(Initializer); ok {
		if err := init.Init(); err != nil {
			if errors.Is(err, ErrInitFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrInitFailed, d, err)
		}
	}
	return p, nil
}

// rollback removes every provider created after mark and reverts the output
// enables they made on their inputs.
func (g *Graph) rollback(mark int) {
	for i := len(g.providers) - 1; i >= mark; i-- {
		g.providers[i].unsetInputs()
		g.providers[i] = nil
	}
	g.providers = g.providers[:mark]
}

// computeRefZStep picks the finest stored Z step, or the survey step when
// nothing in the graph is stored.
func (g *Graph) computeRefZStep() {
	step := 0.0
	for _, p := range g.providers {
		s, ok := p.alg.(StoredZStepper)
		if !ok {
			continue
		}
		zs, ok := s.StoredZStep()
		if !ok || zs <= 0 {
			continue
		}
		if step == 0 || zs < step {
			step = zs
		}
	}
	if step == 0 {
		step = g.env.Geometry.ZStep()
	}
	g.refstep = step
}

func (g *Graph) propagateZRefStep() {
	for _, p := range g.providers {
		if l, ok := p.alg.(RefStepListener); ok {
			l.SetRefStep(g.refstep)
		}
	}
}

// zRatio returns surveystep/refstep, which must be a positive integer.
func (g *Graph) zRatio() (int, error) {
	survey := g.env.Geometry.ZStep()
	if g.refstep <= 0 || survey <= 0 {
		return 1, nil
	}
	ratio := survey / g.refstep
	rounded := math.Round(ratio)
	if rounded < 1 || math.Abs(ratio-rounded) > 1e-6*ratio {
		return 0, fmt.Errorf("%w: survey %g, reference %g", ErrUnsupportedZRatio, survey, g.refstep)
	}
	return int(rounded), nil
}

// SetDesiredVolume clears every desired volume and sets vol on each root;
// inputs shared by several consumers receive the hull of their requests.
func (g *Graph) SetDesiredVolume(vol geom.Volume) {
	for _, p := range g.providers {
		p.desiredVolume = nil
		p.possibleVolume = nil
	}
	for _, r := range g.roots {
		r.includeDesiredVolume(vol)
	}
}

// AddLocalCompZIntervals registers Z windows given in survey-step samples on
// every root, converted once to reference-step samples.
func (g *Graph) AddLocalCompZIntervals(ni []geom.SampleRange) error {
	ratio, err := g.zRatio()
	if err != nil {
		return err
	}
	scaled := make([]geom.SampleRange, len(ni))
	for i, r := range ni {
		scaled[i] = r.Scale(ratio)
	}
	seen := make(map[*Provider]bool, len(g.roots))
	for _, r := range g.roots {
		if seen[r] {
			continue
		}
		seen[r] = true
		r.AddLocalCompZIntervals(scaled)
	}
	return nil
}

// Prepare runs every Preparer and collects the trace sources.
func (g *Graph) Prepare() error {
	g.sources = g.sources[:0]
	for _, p := range g.providers {
		if prep, ok := p.alg.(Preparer); ok {
			if err := prep.Prepare(); err != nil {
				return fmt.Errorf("attrib: prepare %s: %w", p, err)
			}
		}
		if src, ok := p.alg.(Source); ok {
			g.sources = append(g.sources, src)
		}
	}
	g.prepared = true
	log.Printf("Attrib: graph ready: %d providers, %d sources, refstep %g", len(g.providers), len(g.sources), g.refstep)
	return nil
}

// Release drops every cached buffer and closes the trace sources.
func (g *Graph) Release() error {
	var firstErr error
	for _, p := range g.providers {
		p.lines = nil
		if src, ok := p.alg.(Source); ok {
			if err := src.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	g.sources = nil
	g.prepared = false
	return firstErr
}
