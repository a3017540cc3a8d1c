// Package synth writes synthetic cubes: a dipping sinusoidal reflection
// pattern with optional noise, and the matching two-component dip cube that
// steered attributes read.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"seisattrib/geom"
	"seisattrib/trace"
)

// Spec describes one synthetic cube.
type Spec struct {
	Name      string
	Hor       geom.HorRange
	Z0        float64
	ZStep     float64
	NrSamples int
	// FreqHz is the event frequency in cycles per Z unit.
	FreqHz float64
	// DipInl and DipCrl shift the pattern, in samples, per inline and crossline step.
	DipInl    float64
	DipCrl    float64
	Amplitude float64
	Noise     float64
	Seed      uint64
}

// DipCubeName is the name WriteDips stores the dip cube of name under.
func DipCubeName(name string) string {
	return name + "-dip"
}

func (s Spec) info(name string, comps []string) trace.CubeInfo {
	return trace.CubeInfo{
		Name:           name,
		Hor:            s.Hor,
		Z0:             s.Z0,
		ZStep:          s.ZStep,
		NrSamples:      s.NrSamples,
		ComponentNames: comps,
	}
}

// Value returns the noise-free amplitude at pos and sample.
func (s Spec) Value(pos geom.BinID, sample int) float64 {
	step := s.Hor.SafeStep()
	shift := s.DipInl*float64((pos.Inl-s.Hor.Start.Inl)/step.Inl) +
		s.DipCrl*float64((pos.Crl-s.Hor.Start.Crl)/step.Crl)
	z := (float64(sample) - shift) * s.ZStep
	return s.Amplitude * math.Sin(2*math.Pi*s.FreqHz*z)
}

// Purpose: Write the synthetic amplitude cube.
// Key aspects: One PutTraces batch per inline; noise is reproducible per seed.
// Upstream: cmd/tracegen, seisattrib tests.
// Downstream: trace.CubeWriter.
func Write(w trace.Writer, s Spec) (int, error) {
	if s.NrSamples <= 0 || s.ZStep <= 0 {
		return 0, errors.New("synth: cube needs samples and a positive z step")
	}
	if s.Amplitude == 0 {
		s.Amplitude = 1
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	return writeCube(w, s.info(s.Name, nil), s, func(pos geom.BinID, _ int, sample int) float32 {
		v := s.Value(pos, sample)
		if s.Noise > 0 {
			v += s.Noise * rng.NormFloat64()
		}
		return float32(v)
	}, 1)
}

// WriteDips writes the dip cube matching s: component 0 is the inline dip and
// component 1 the crossline dip, both in Z units per trace step.
func WriteDips(w trace.Writer, s Spec) (int, error) {
	if s.ZStep <= 0 {
		return 0, errors.New("synth: dip cube needs a positive z step")
	}
	dips := [2]float32{float32(s.DipInl * s.ZStep), float32(s.DipCrl * s.ZStep)}
	info := s.info(DipCubeName(s.Name), []string{"inline dip", "crossline dip"})
	return writeCube(w, info, s, func(_ geom.BinID, comp, _ int) float32 {
		return dips[comp]
	}, 2)
}

func writeCube(w trace.Writer, info trace.CubeInfo, s Spec, fn func(pos geom.BinID, comp, sample int) float32, comps int) (int, error) {
	cw, err := trace.NewCubeWriter(w, info, s.Hor.NrCrl())
	if err != nil {
		return 0, err
	}
	step := s.Hor.SafeStep()
	for inl := s.Hor.Start.Inl; inl <= s.Hor.Stop.Inl; inl += step.Inl {
		for crl := s.Hor.Start.Crl; crl <= s.Hor.Stop.Crl; crl += step.Crl {
			pos := geom.BinID{Inl: inl, Crl: crl}
			tr := trace.Trace{Pos: pos, Z0: s.Z0, ZStep: s.ZStep}
			for c := 0; c < comps; c++ {
				series := make([]float32, s.NrSamples)
				for i := range series {
					series[i] = fn(pos, c, i)
				}
				tr.Components = append(tr.Components, series)
			}
			if err := cw.Write(tr); err != nil {
				return cw.Written(), fmt.Errorf("synth: %s at %s: %w", info.Name, pos, err)
			}
		}
	}
	if err := cw.Close(); err != nil {
		return cw.Written(), err
	}
	return cw.Written(), nil
}
