package attrib

import (
	"math"

	"seisattrib/geom"
	"seisattrib/trace"
)

// Cursor is the traversal position shared by a whole graph. Every GetData
// call resolves relative positions against the cursor it is handed.
type Cursor struct {
	pos geom.BinID
}

// NewCursor returns a cursor standing at pos.
func NewCursor(pos geom.BinID) *Cursor {
	return &Cursor{pos: pos}
}

// Pos returns the current position.
func (c *Cursor) Pos() geom.BinID {
	if c == nil {
		return geom.UndefBinID
	}
	return c.pos
}

// Purpose: Advance every trace source to the next common position.
// Key aspects: Each source moves once, then the sources are aligned pairwise
// by advancing whichever is behind, restarting the scan whenever an earlier
// source moved. Returns true to continue, false at the end of data.
// Upstream: Processor.Run.
// Downstream: Source.MoveToNextTrace, evict.
func (g *Graph) MoveToNextTrace() (bool, error) {
	if !g.prepared {
		if err := g.Prepare(); err != nil {
			return false, err
		}
	}
	if len(g.sources) == 0 {
		return false, ErrNoTraceSource
	}
	for _, src := range g.sources {
		ok, err := src.MoveToNextTrace()
		if err != nil || !ok {
			return false, err
		}
	}
	srcs := g.sources
	for i := 0; i < len(srcs)-1; i++ {
		for j := i + 1; j < len(srcs); j++ {
			moved := false
			for {
				c := trace.ComparePos(srcs[i], srcs[j])
				if c == 0 {
					break
				}
				mover := srcs[j]
				if c < 0 {
					mover = srcs[i]
					moved = true
				}
				ok, err := mover.MoveToNextTrace()
				if err != nil || !ok {
					return false, err
				}
			}
			if moved {
				i = -1
				break
			}
		}
	}

	prev := g.cursor.pos
	g.cursor.pos = srcs[0].Position()
	g.evict(prev)
	return true, nil
}

// evict drops cached buffers and source traces the traversal left behind.
// A move back in inline order keeps only the current position.
func (g *Graph) evict(prev geom.BinID) {
	cur := g.cursor.pos
	jumped := !prev.IsUndefined() && cur.Inl < prev.Inl
	for _, p := range g.providers {
		if p.lines != nil {
			if jumped {
				p.lines.RemoveAllExcept(cur)
			} else {
				keepFrom := cur.Inl - p.bufferStepout.Inl*g.horStep.Inl
				p.lines.RemoveBefore(geom.BinID{Inl: math.MinInt}, geom.BinID{Inl: keepFrom})
			}
		}
		if src, ok := p.alg.(Source); ok {
			src.Evict(cur)
		}
	}
}
