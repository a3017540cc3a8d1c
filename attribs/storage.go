// Package attribs holds the concrete attributes: stored cube access, the
// similarity family, steering shifts and gated energy. Each registers its
// descriptor template and provider factory with the engine on import.
package attribs

import (
	"errors"
	"fmt"

	"seisattrib/attrib"
	"seisattrib/desc"
	"seisattrib/geom"
	"seisattrib/trace"
)

var storageTemplate = &desc.Template{
	Name: desc.StorageType,
	Params: []desc.ParamSpec{
		{Key: "id", Kind: desc.KindString},
		{Key: "components", Kind: desc.KindInt, Default: "1"},
	},
	NrOutputs: 1,
	Outputs: func(d *desc.Desc) int {
		return max(1, d.Int("components"))
	},
}

// Storage is the leaf that reads a stored cube. It reads ahead of the
// traversal position far enough that every consumer's lateral step-out is
// already buffered when the traversal arrives.
type Storage struct {
	p       *attrib.Provider
	cube    string
	info    trace.CubeInfo
	refstep float64

	reader   trace.Reader
	traces   map[geom.BinID]*trace.Trace
	pending  []geom.BinID
	lastRead geom.BinID
	eof      bool
	pos      geom.BinID

	cur *trace.Trace
}

func newStorage(p *attrib.Provider) (attrib.Algorithm, error) {
	cat := p.Env().Catalog
	if cat == nil {
		return nil, errors.New("storage: no trace catalog configured")
	}
	cube := p.Desc().Text("id")
	if cube == "" {
		return nil, errors.New("storage: cube id is empty")
	}
	info, err := cat.Info(cube)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if p.NrOutputs() > info.NrComponents() {
		return nil, fmt.Errorf("storage: cube %s has %d components, %d requested", cube, info.NrComponents(), p.NrOutputs())
	}
	return &Storage{
		p:        p,
		cube:     cube,
		info:     info,
		refstep:  info.ZStep,
		traces:   make(map[geom.BinID]*trace.Trace),
		lastRead: geom.UndefBinID,
		pos:      geom.UndefBinID,
	}, nil
}

func (s *Storage) StoredZStep() (float64, bool) {
	return s.info.ZStep, true
}

func (s *Storage) StoredVolume() (geom.Volume, bool) {
	return s.info.Volume(), true
}

func (s *Storage) SetRefStep(step float64) {
	s.refstep = step
}

// Prepare opens a reader over the desired lateral range, or the whole cube
// when nobody asked for anything narrower.
func (s *Storage) Prepare() error {
	if err := s.Close(); err != nil {
		return err
	}
	sel := s.info.Hor
	if dv := s.p.DesiredVolume(); dv != nil {
		sel = dv.Hor.Limit(s.info.Hor)
	}
	r, err := s.p.Env().Catalog.Open(s.cube, sel)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", s.cube, err)
	}
	s.reader = r
	s.traces = make(map[geom.BinID]*trace.Trace)
	s.pending = s.pending[:0]
	s.lastRead = geom.UndefBinID
	s.eof = false
	s.pos = geom.UndefBinID
	return nil
}

// Position is the logical traversal position, which lags the reader by the
// buffer step-out.
func (s *Storage) Position() geom.BinID {
	return s.pos
}

func (s *Storage) MoveToNextTrace() (bool, error) {
	if s.reader == nil {
		return false, fmt.Errorf("storage: %s not prepared", s.cube)
	}
	ahead := s.p.BufferStepout().Mul(s.p.HorStep())
	for {
		if len(s.pending) > 0 && (s.eof || s.lastRead.Compare(s.pending[0].Add(ahead)) >= 0) {
			s.pos = s.pending[0]
			s.pending = s.pending[1:]
			return true, nil
		}
		if s.eof {
			return false, nil
		}
		ok, err := s.reader.Next()
		if err != nil {
			return false, fmt.Errorf("storage: read %s: %w", s.cube, err)
		}
		if !ok {
			s.eof = true
			continue
		}
		tr := *s.reader.Trace()
		s.traces[tr.Pos] = &tr
		s.pending = append(s.pending, tr.Pos)
		s.lastRead = tr.Pos
	}
}

// Evict drops traces on inlines the step-out can no longer reach.
func (s *Storage) Evict(cur geom.BinID) {
	keepFrom := cur.Inl - s.p.BufferStepout().Inl*s.p.HorStep().Inl
	for pos := range s.traces {
		if pos.Inl < keepFrom {
			delete(s.traces, pos)
		}
	}
}

func (s *Storage) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

// Buffered returns the number of traces held in memory.
func (s *Storage) Buffered() int {
	return len(s.traces)
}

func (s *Storage) GetInputData(cur *attrib.Cursor, relpos geom.BinID, _ int) error {
	pos := cur.Pos().Add(relpos.Mul(s.p.HorStep()))
	tr, ok := s.traces[pos]
	if !ok {
		s.cur = nil
		return fmt.Errorf("%w: %s has no trace at %s", attrib.ErrPositionUnavailable, s.cube, pos)
	}
	s.cur = tr
	return nil
}

// ComputeData resamples the stored trace onto the reference step. Samples
// outside the stored Z range read as 0.
func (s *Storage) ComputeData(job attrib.ComputeJob) error {
	tr := s.cur
	if tr == nil {
		return fmt.Errorf("%w: %s at %s", attrib.ErrPositionUnavailable, s.cube, job.Pos)
	}
	for out := 0; out < s.p.NrOutputs(); out++ {
		if !s.p.IsOutputEnabled(out) {
			continue
		}
		for i := 0; i < job.NrSamples; i++ {
			sample := job.T0 + i
			v, ok := tr.ValueAt(out, float64(sample)*s.refstep)
			if !ok {
				v = 0
			}
			job.Out.SetValue(out, sample, v)
		}
	}
	return nil
}
