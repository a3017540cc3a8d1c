package attrib

import (
	"errors"
	"fmt"

	"seisattrib/buffer"
	"seisattrib/geom"
)

// Purpose: Return this provider's output at cur+relpos for compute window idi.
// Key aspects: An exact-window cache hit returns the cached buffer; otherwise
// inputs are fetched, enabled items allocated, and the samples computed inline
// or fanned out over the pool. A failure evicts the half-built buffer.
// Upstream: Processor, consumer algorithms via Provider.InputData.
// Downstream: Algorithm.GetInputData, Algorithm.ComputeData, Pool.Run.
func (p *Provider) GetData(cur *Cursor, relpos geom.BinID, idi int) (*buffer.SampleBuffer, error) {
	zi, ok := p.LocalZ(idi)
	if !ok {
		return nil, fmt.Errorf("%w: %s idi %d", ErrNoZInterval, p, idi)
	}
	pos := cur.Pos().Add(relpos.Mul(p.HorStep()))
	t0, n := zi.Start, zi.NrSamples()
	if buf := p.lines.GetDataHolder(pos); buf.Matches(t0, n) {
		p.graph.env.Stats.IncrementCacheHit(p.Name())
		return buf, nil
	}

	if p.lines == nil {
		p.lines = buffer.NewLineBuffer()
	}
	buf := p.lines.CreateDataHolder(pos, t0, n)
	if !buf.Matches(t0, n) {
		buf = p.lines.ReplaceDataHolder(pos, t0, n)
	}
	if err := p.alg.GetInputData(cur, relpos, idi); err != nil {
		p.fail(pos, err)
		return nil, fmt.Errorf("attrib: %s at %s: %w", p, pos, err)
	}
	for out := range p.outputInterest {
		for buf.NrItems() <= out {
			buf.Add()
		}
		if p.outputInterest[out] <= 0 {
			buf.Replace(out, nil)
			continue
		}
		buf.Alloc(out)
	}
	if err := p.compute(ComputeJob{Out: buf, Pos: pos, RelPos: relpos, T0: t0, NrSamples: n}); err != nil {
		p.fail(pos, err)
		return nil, fmt.Errorf("attrib: %s at %s: %w", p, pos, err)
	}
	p.graph.env.Stats.IncrementComputed(p.Name(), n)
	return buf, nil
}

// GetDataDontCompute peeks into the cache. It returns nil unless a buffer at
// cur+relpos covers exactly compute window idi.
func (p *Provider) GetDataDontCompute(cur *Cursor, relpos geom.BinID, idi int) *buffer.SampleBuffer {
	zi, ok := p.LocalZ(idi)
	if !ok {
		return nil
	}
	pos := cur.Pos().Add(relpos.Mul(p.HorStep()))
	buf := p.lines.GetDataHolder(pos)
	if !buf.Matches(zi.Start, zi.NrSamples()) {
		return nil
	}
	return buf
}

// fail evicts the half-built buffer at pos. Positions outside the stored data
// are expected near the survey edges and are not counted as failures.
func (p *Provider) fail(pos geom.BinID, err error) {
	p.lines.RemoveDataHolder(pos)
	if !errors.Is(err, ErrPositionUnavailable) {
		p.graph.env.Stats.IncrementFailure(p.Name())
	}
}

// compute runs job inline, or split into contiguous sample sub-ranges over the
// pool when the window is large enough to share.
func (p *Provider) compute(job ComputeJob) error {
	pool := p.graph.env.Pool
	if pool == nil || pool.Workers() < 2 {
		return p.alg.ComputeData(job)
	}
	jobs := splitJob(job, pool.Workers(), p.graph.env.MinSamplesPerTask)
	if len(jobs) < 2 {
		return p.alg.ComputeData(job)
	}
	tasks := make([]func() error, len(jobs))
	for i, j := range jobs {
		tasks[i] = func() error { return p.alg.ComputeData(j) }
	}
	return pool.Run(tasks)
}

// splitJob cuts job into at most workers disjoint ranges of at least
// minSamples samples each.
func splitJob(job ComputeJob, workers, minSamples int) []ComputeJob {
	if minSamples < 1 {
		minSamples = 1
	}
	parts := min(workers, job.NrSamples/minSamples)
	if parts < 2 {
		return []ComputeJob{job}
	}
	jobs := make([]ComputeJob, 0, parts)
	base, extra := job.NrSamples/parts, job.NrSamples%parts
	start := job.T0
	for i := 0; i < parts; i++ {
		size := base
		if i < extra {
			size++
		}
		sub := job
		sub.T0 = start
		sub.NrSamples = size
		jobs = append(jobs, sub)
		start += size
	}
	return jobs
}
