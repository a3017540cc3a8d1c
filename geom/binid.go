// Package geom holds the small value types shared by the attribute engine:
// bin positions, sample ranges, real-unit intervals, sub-volumes and the survey
// geometry the engine consults for its reference Z sampling.
package geom

import "fmt"

// BinID identifies one trace location on the (inline, crossline) grid.
type BinID struct {
	Inl int
	Crl int
}

// UndefBinID marks "no position yet".
var UndefBinID = BinID{Inl: -1, Crl: -1}

// IsUndefined reports whether b is the UndefBinID sentinel.
func (b BinID) IsUndefined() bool {
	return b == UndefBinID
}

// Add returns the component-wise sum.
func (b BinID) Add(o BinID) BinID {
	return BinID{Inl: b.Inl + o.Inl, Crl: b.Crl + o.Crl}
}

// Sub returns the component-wise difference.
func (b BinID) Sub(o BinID) BinID {
	return BinID{Inl: b.Inl - o.Inl, Crl: b.Crl - o.Crl}
}

// Mul returns the component-wise product, used to scale step-outs by the grid step.
func (b BinID) Mul(o BinID) BinID {
	return BinID{Inl: b.Inl * o.Inl, Crl: b.Crl * o.Crl}
}

// Abs returns the component-wise absolute value.
func (b BinID) Abs() BinID {
	return BinID{Inl: absInt(b.Inl), Crl: absInt(b.Crl)}
}

// Max returns the component-wise maximum.
func (b BinID) Max(o BinID) BinID {
	return BinID{Inl: max(b.Inl, o.Inl), Crl: max(b.Crl, o.Crl)}
}

// Compare orders positions lexicographically: inline first, then crossline.
// It returns -1, 0 or 1.
func (b BinID) Compare(o BinID) int {
	switch {
	case b.Inl < o.Inl:
		return -1
	case b.Inl > o.Inl:
		return 1
	case b.Crl < o.Crl:
		return -1
	case b.Crl > o.Crl:
		return 1
	}
	return 0
}

// Less reports whether b sorts before o.
func (b BinID) Less(o BinID) bool {
	return b.Compare(o) < 0
}

func (b BinID) String() string {
	return fmt.Sprintf("%d/%d", b.Inl, b.Crl)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
