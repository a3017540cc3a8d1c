package geom

import (
	"errors"
	"math"
)

// Survey is the geometry service: the full inline/crossline grid and the global
// Z sampling. ZFactor converts survey Z units into the units users type gates in
// (1000 for time surveys in seconds -> milliseconds, 1 for depth).
type Survey struct {
	Name    string
	Inl     [3]int // start, stop, step
	Crl     [3]int
	Z       ZRange
	ZFactor float64
	TwoD    bool
}

// ZStep returns the global survey sample interval.
func (s *Survey) ZStep() float64 {
	return s.Z.Step
}

// ZUnitFactor returns the user-unit factor, defaulting to 1.
func (s *Survey) ZUnitFactor() float64 {
	if s.ZFactor == 0 {
		return 1
	}
	return s.ZFactor
}

// Is2D reports whether the survey is a 2D line set.
func (s *Survey) Is2D() bool {
	return s.TwoD
}

// FullVolume returns the whole survey as a Volume.
func (s *Survey) FullVolume() Volume {
	return Volume{
		Hor: HorRange{
			Start: BinID{Inl: s.Inl[0], Crl: s.Crl[0]},
			Stop:  BinID{Inl: s.Inl[1], Crl: s.Crl[1]},
			Step:  BinID{Inl: max(s.Inl[2], 1), Crl: max(s.Crl[2], 1)},
		},
		Z: s.Z,
	}
}

// SampleIndex converts z into the nearest sample index at step.
func SampleIndex(z, step float64) int {
	if step == 0 {
		return 0
	}
	return int(math.Round(z / step))
}

// Validate checks that the survey ranges are usable.
func (s *Survey) Validate() error {
	if s.Inl[1] < s.Inl[0] || s.Crl[1] < s.Crl[0] {
		return errors.New("geom: survey lateral range is empty")
	}
	if s.Z.Step <= 0 {
		return errors.New("geom: survey z step must be positive")
	}
	if s.Z.Stop < s.Z.Start {
		return errors.New("geom: survey z range is empty")
	}
	return nil
}
