// Package trace is the trace reader service the attribute engine consumes:
// cube metadata, sequential readers in inline/crossline order, an in-memory
// catalog for synthetic data and a Pebble-backed cube store.
package trace

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"seisattrib/geom"
)

var (
	ErrNotFound    = errors.New("trace: cube not found")
	ErrStoreClosed = errors.New("trace: store is closed")
)

// Trace is one stored location with one sample series per component.
type Trace struct {
	Pos        geom.BinID
	Z0         float64
	ZStep      float64
	Components [][]float32
}

// NrSamples returns the length of the first component.
func (t *Trace) NrSamples() int {
	if t == nil || len(t.Components) == 0 {
		return 0
	}
	return len(t.Components[0])
}

// ValueAt linearly interpolates component comp at depth/time z. Positions
// outside the stored samples report false.
func (t *Trace) ValueAt(comp int, z float64) (float32, bool) {
	if t == nil || comp < 0 || comp >= len(t.Components) || t.ZStep <= 0 {
		return 0, false
	}
	return Interpolate(t.Components[comp], (z-t.Z0)/t.ZStep)
}

// Interpolate returns series at fractional index pos, linear between neighbours.
// A position within a thousandth of a sample of an end is snapped onto it.
func Interpolate(series []float32, pos float64) (float32, bool) {
	n := len(series)
	if n == 0 {
		return 0, false
	}
	const snap = 1e-3
	if pos < 0 {
		if pos < -snap {
			return 0, false
		}
		pos = 0
	}
	last := float64(n - 1)
	if pos > last {
		if pos > last+snap {
			return 0, false
		}
		pos = last
	}
	i := int(math.Floor(pos))
	frac := pos - float64(i)
	if i >= n-1 || frac < snap {
		return series[i], true
	}
	if frac > 1-snap {
		return series[i+1], true
	}
	v0, v1 := float64(series[i]), float64(series[i+1])
	return float32(v0 + (v1-v0)*frac), true
}

// CubeInfo describes a stored cube.
type CubeInfo struct {
	Name           string        `json:"name"`
	Hor            geom.HorRange `json:"hor"`
	Z0             float64       `json:"z0"`
	ZStep          float64       `json:"zstep"`
	NrSamples      int           `json:"nrsamples"`
	ComponentNames []string      `json:"components,omitempty"`
}

// NrComponents returns the number of sample series per trace, at least 1.
func (c CubeInfo) NrComponents() int {
	return max(1, len(c.ComponentNames))
}

// ZRange returns the Z extent of a full trace.
func (c CubeInfo) ZRange() geom.ZRange {
	return geom.ZRange{Start: c.Z0, Stop: c.Z0 + float64(max(c.NrSamples-1, 0))*c.ZStep, Step: c.ZStep}
}

// Volume returns the cube extent.
func (c CubeInfo) Volume() geom.Volume {
	return geom.Volume{Hor: c.Hor, Z: c.ZRange()}
}

// Validate checks the fields a store needs to key and decode traces.
func (c CubeInfo) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return errors.New("trace: cube name is empty")
	}
	if strings.ContainsRune(name, 0) || strings.Contains(name, "|") {
		return fmt.Errorf("trace: cube name %q contains a reserved character", name)
	}
	if c.ZStep <= 0 {
		return fmt.Errorf("trace: cube %s: z step must be positive", name)
	}
	if c.NrSamples <= 0 {
		return fmt.Errorf("trace: cube %s: no samples per trace", name)
	}
	if c.Hor.IsEmpty() {
		return fmt.Errorf("trace: cube %s: empty lateral range", name)
	}
	return nil
}

// Requester exposes where a sequential reader currently is, so several
// readers can be aligned on a common position.
type Requester interface {
	Position() geom.BinID
}

// ComparePos orders two requesters by their current position: negative when a
// is behind b, zero when both sit on the same trace.
func ComparePos(a, b Requester) int {
	return a.Position().Compare(b.Position())
}

// Reader walks the traces of one cube in ascending inline/crossline order.
type Reader interface {
	Requester
	// Next advances to the next trace. It returns false at the end of data.
	Next() (bool, error)
	// Trace returns the trace at the current position.
	Trace() *Trace
	Close() error
}

// Catalog resolves cube names into metadata and readers.
type Catalog interface {
	Info(cube string) (CubeInfo, error)
	// Open returns a reader over the traces of cube inside sel.
	Open(cube string, sel geom.HorRange) (Reader, error)
}

// Writer accepts new cubes and their traces.
type Writer interface {
	PutCube(info CubeInfo) error
	PutTraces(cube string, traces []Trace) error
}

func checkTrace(info CubeInfo, tr *Trace) error {
	if len(tr.Components) != info.NrComponents() {
		return fmt.Errorf("trace: %s at %s: %d components, cube has %d",
			info.Name, tr.Pos, len(tr.Components), info.NrComponents())
	}
	n := len(tr.Components[0])
	for _, comp := range tr.Components[1:] {
		if len(comp) != n {
			return fmt.Errorf("trace: %s at %s: ragged components", info.Name, tr.Pos)
		}
	}
	return nil
}
