// Package attrib is the attribute provider engine. A Graph holds one Provider
// per unique descriptor; providers propagate volume and Z-window requirements
// to their inputs, cache computed traces in line buffers and walk the survey
// in step with the trace readers at the leaves.
//
// The engine is generic over Algorithm. Concrete attributes implement the two
// required methods and opt into further hooks (step-outs, Z margins, stored Z
// steps, trace reading) by implementing the capability interfaces below.
package attrib

import (
	"fmt"
	"sync"

	"seisattrib/buffer"
	"seisattrib/desc"
	"seisattrib/geom"
	"seisattrib/stats"
	"seisattrib/trace"
)

// Algorithm computes one attribute for one provider.
type Algorithm interface {
	// GetInputData fetches whatever input buffers the next ComputeData call
	// needs for position cur+relpos and compute interval idi.
	GetInputData(cur *Cursor, relpos geom.BinID, idi int) error
	// ComputeData fills the enabled output items of job.Out over the job's
	// sample range. It may run concurrently for disjoint ranges.
	ComputeData(job ComputeJob) error
}

// ComputeJob is one immutable unit of numeric work: samples
// [T0, T0+NrSamples) of the output buffer at Pos.
type ComputeJob struct {
	Out       *buffer.SampleBuffer
	Pos       geom.BinID
	RelPos    geom.BinID
	T0        int
	NrSamples int
}

// Initializer validates parameters once the inputs are wired.
type Initializer interface {
	Init() error
}

// InputOutputer lists which outputs of input slot input the algorithm reads.
// Returning false falls back to the input descriptor's selected output.
type InputOutputer interface {
	InputOutputs(input int) ([]int, bool)
}

// StepoutRequirer reports the lateral step-out needed from an input to
// produce output out.
type StepoutRequirer interface {
	ReqStepout(input, out int) (geom.BinID, bool)
}

// DesStepoutRequirer reports a desired (not strictly required) step-out.
type DesStepoutRequirer interface {
	DesStepout(input, out int) (geom.BinID, bool)
}

// ZMarginRequirer reports the Z margin, in survey Z units, needed from an input.
type ZMarginRequirer interface {
	ReqZMargin(input, out int) (geom.Interval, bool)
}

// DesZMarginRequirer reports a desired Z margin.
type DesZMarginRequirer interface {
	DesZMargin(input, out int) (geom.Interval, bool)
}

// StoredZStepper is implemented by leaves reading stored data.
type StoredZStepper interface {
	StoredZStep() (float64, bool)
}

// StoredVolumer limits a leaf's possible volume to what is stored.
type StoredVolumer interface {
	StoredVolume() (geom.Volume, bool)
}

// RefStepListener is told the graph reference Z step once it is known.
type RefStepListener interface {
	SetRefStep(step float64)
}

// Preparer runs before traversal starts, after volumes are set.
type Preparer interface {
	Prepare() error
}

// Source is a trace-reading leaf. Its Position is the logical trace position,
// which may lag what the underlying reader has already read.
type Source interface {
	trace.Requester
	// MoveToNextTrace advances one position; false means end of data.
	MoveToNextTrace() (bool, error)
	// Evict drops buffered traces the traversal can no longer reach from cur.
	Evict(cur geom.BinID)
	Close() error
}

// CreateFunc builds the algorithm of a new provider. Parameters are read
// from p.Desc(); inputs are not wired yet.
type CreateFunc func(p *Provider) (Algorithm, error)

var factories = struct {
	mu sync.RWMutex
	m  map[string]CreateFunc
}{m: make(map[string]CreateFunc)}

// Register makes attribute type tmpl known to both the descriptor registry
// and the provider factory.
func Register(tmpl *desc.Template, create CreateFunc) {
	desc.RegisterTemplate(tmpl)
	factories.mu.Lock()
	defer factories.mu.Unlock()
	factories.m[tmpl.Name] = create
}

func lookupFactory(name string) (CreateFunc, error) {
	factories.mu.RLock()
	defer factories.mu.RUnlock()
	create, ok := factories.m[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAttribute, name)
	}
	return create, nil
}

// Geometry is the survey service the engine consults.
type Geometry interface {
	ZStep() float64
	ZUnitFactor() float64
	FullVolume() geom.Volume
	Is2D() bool
}

// Env carries the collaborators shared by every provider of a graph.
type Env struct {
	Geometry Geometry
	Catalog  trace.Catalog
	// Pool fans out ComputeData over sample sub-ranges; nil computes inline.
	Pool  Pool
	Stats *stats.Tracker
	// MinSamplesPerTask keeps sub-ranges from getting too small to pay off.
	MinSamplesPerTask int
}

const defaultMinSamplesPerTask = 64
