package attribs

import (
	"errors"
	"fmt"

	"seisattrib/attrib"
	"seisattrib/buffer"
	"seisattrib/desc"
	"seisattrib/geom"
)

// MaxSteeringStepout bounds the lateral offsets a steering provider serves.
const MaxSteeringStepout = 5

const steeringWidth = 2*MaxSteeringStepout + 1

// NrSteeringOutputs is one output per offset in the steering square.
const NrSteeringOutputs = steeringWidth * steeringWidth

// SteeringIndex maps a lateral offset to the steering output holding its
// shift, or -1 when the offset lies outside the steering square.
func SteeringIndex(b geom.BinID) int {
	if b.Inl < -MaxSteeringStepout || b.Inl > MaxSteeringStepout ||
		b.Crl < -MaxSteeringStepout || b.Crl > MaxSteeringStepout {
		return -1
	}
	return (b.Inl+MaxSteeringStepout)*steeringWidth + (b.Crl + MaxSteeringStepout)
}

// SteeringOffset is the inverse of SteeringIndex.
func SteeringOffset(idx int) geom.BinID {
	return geom.BinID{
		Inl: idx/steeringWidth - MaxSteeringStepout,
		Crl: idx%steeringWidth - MaxSteeringStepout,
	}
}

var steeringTemplate = &desc.Template{
	Name:      "Steering",
	NrOutputs: NrSteeringOutputs,
	Inputs: []desc.InputSpec{
		{Desc: "Dip data", Required: true},
	},
}

// Steering turns a two-component dip cube (inline dip, crossline dip, both in
// Z units per trace) into per-offset sample shifts: output SteeringIndex(b)
// holds how many reference samples the event at the current position moves
// when followed to offset b.
type Steering struct {
	p       *attrib.Provider
	refstep float64
	dips    *buffer.SampleBuffer
}

func newSteering(p *attrib.Provider) (attrib.Algorithm, error) {
	return &Steering{p: p}, nil
}

func (s *Steering) Init() error {
	in := s.p.Input(0)
	if in == nil || in.NrOutputs() < 2 {
		return errors.New("steering: dip input needs two components")
	}
	return nil
}

func (s *Steering) InputOutputs(input int) ([]int, bool) {
	if input != 0 {
		return nil, false
	}
	return []int{0, 1}, true
}

func (s *Steering) SetRefStep(step float64) {
	s.refstep = step
}

func (s *Steering) GetInputData(cur *attrib.Cursor, relpos geom.BinID, idi int) error {
	buf, err := s.p.InputData(0, cur, relpos, idi)
	if err != nil {
		return err
	}
	s.dips = buf
	return nil
}

func (s *Steering) ComputeData(job attrib.ComputeJob) error {
	dips := s.dips
	if dips == nil || s.refstep <= 0 {
		return fmt.Errorf("steering: no dip data at %s", job.Pos)
	}
	for out := 0; out < NrSteeringOutputs; out++ {
		if !s.p.IsOutputEnabled(out) {
			continue
		}
		off := SteeringOffset(out)
		for i := 0; i < job.NrSamples; i++ {
			sample := job.T0 + i
			di, ok1 := dips.Value(0, sample)
			dc, ok2 := dips.Value(1, sample)
			if !ok1 || !ok2 {
				continue
			}
			shift := (float64(di)*float64(off.Inl) + float64(dc)*float64(off.Crl)) / s.refstep
			job.Out.SetValue(out, sample, float32(shift))
		}
	}
	return nil
}
