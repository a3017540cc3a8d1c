package attrib

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"seisattrib/geom"
)

// Output is one computed trace of one root.
type Output struct {
	Pos  geom.BinID
	Root int
	// Z0 is the Z of the first sample; samples are Step apart.
	Z0      float64
	Step    float64
	Samples []float32
}

// Sink receives every computed trace. The sample slice is only valid during
// the call.
type Sink func(Output) error

// ProcessorStats counts what a run did.
type ProcessorStats struct {
	Positions int
	Produced  int
	Skipped   int
	Failed    int
}

// Processor drives a graph over an output volume and hands each root's
// selected output to a sink.
type Processor struct {
	graph    *Graph
	outVol   geom.Volume
	possible []geom.Volume
	idi      int
	stats    ProcessorStats
}

// Purpose: Set a graph up to produce outVol.
// Key aspects: Sets the desired volume, registers the output Z window and
// prepares the trace sources.
// Upstream: seisattrib main, tests.
// Downstream: Graph.SetDesiredVolume, Graph.AddLocalCompZIntervals, Graph.Prepare.
func NewProcessor(g *Graph, outVol geom.Volume) (*Processor, error) {
	if len(g.roots) == 0 {
		return nil, errors.New("attrib: processor needs at least one root")
	}
	g.SetDesiredVolume(outVol)
	surveyStep := g.env.Geometry.ZStep()
	zi := geom.SampleRange{
		Start: int(math.Round(outVol.Z.Start / surveyStep)),
		Stop:  int(math.Round(outVol.Z.Stop / surveyStep)),
	}
	// Windows merge per index, so the output window is always slot 0.
	const idi = 0
	if err := g.AddLocalCompZIntervals([]geom.SampleRange{zi}); err != nil {
		return nil, err
	}
	proc := &Processor{graph: g, outVol: outVol, idi: idi}
	for _, r := range g.roots {
		pv, ok := r.PossibleVolume(-1, outVol)
		if !ok {
			pv = outVol
		}
		proc.possible = append(proc.possible, pv)
	}
	if err := g.Prepare(); err != nil {
		return nil, err
	}
	return proc, nil
}

// Stats returns the counters of the last run.
func (pr *Processor) Stats() ProcessorStats {
	return pr.stats
}

// Run walks the graph until the sources end, ctx is cancelled, or the sink
// fails. Positions a root cannot serve are skipped; other per-position
// compute failures are counted and logged.
func (pr *Processor) Run(ctx context.Context, sink Sink) error {
	g := pr.graph
	cur := g.Cursor()
	refstep := g.RefStep()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := g.MoveToNextTrace()
		if err != nil {
			return fmt.Errorf("attrib: advance: %w", err)
		}
		if !ok {
			return nil
		}
		pos := cur.Pos()
		pr.stats.Positions++
		for ri, root := range g.roots {
			if !pr.outVol.Includes(pos) || !pr.possible[ri].Includes(pos) {
				pr.stats.Skipped++
				continue
			}
			buf, err := root.GetData(cur, geom.BinID{}, pr.idi)
			if errors.Is(err, ErrPositionUnavailable) {
				pr.stats.Skipped++
				continue
			}
			if err != nil {
				pr.stats.Failed++
				log.Printf("Processor: %v", err)
				continue
			}
			item := buf.Item(g.rootOuts[ri])
			if item == nil {
				pr.stats.Failed++
				continue
			}
			out := Output{
				Pos:     pos,
				Root:    ri,
				Z0:      float64(buf.T0) * refstep,
				Step:    refstep,
				Samples: item,
			}
			if err := sink(out); err != nil {
				return err
			}
			pr.stats.Produced++
		}
	}
}
