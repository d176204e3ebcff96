// Package histogram implements the two-dimensional binned histograms the
// fraction engine fills and derives. An Accumulator is the mutable form used
// while filling and during bin-wise arithmetic; Freeze converts it into an
// immutable Surface that can be persisted and queried.
package histogram

import (
	"fmt"
	"math"
	"sort"

	"jetfakes/domain/core"
)

// Axis is a rectangular binning of one observable, defined by its bin edges.
// Bin i covers [edges[i], edges[i+1]).
type Axis struct {
	edges []float64
}

// NewAxis validates edges and builds an axis. Edges must be non-decreasing;
// repeated edges are collapsed, after which they must be strictly increasing
// and describe at least one bin.
func NewAxis(edges []float64) (Axis, error) {
	deduped := make([]float64, 0, len(edges))
	for i, e := range edges {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return Axis{}, core.NewInvalidBinningError(fmt.Sprintf("edge %d is not finite", i))
		}
		if len(deduped) > 0 {
			last := deduped[len(deduped)-1]
			if e < last {
				return Axis{}, core.NewInvalidBinningError(fmt.Sprintf("edge %d (%g) is below previous edge %g", i, e, last))
			}
			if e == last {
				continue
			}
		}
		deduped = append(deduped, e)
	}
	if len(deduped) < 2 {
		return Axis{}, core.NewInvalidBinningError("at least two distinct edges are required")
	}
	return Axis{edges: deduped}, nil
}

// MustAxis is NewAxis for package-level constant binnings.
func MustAxis(edges []float64) Axis {
	a, err := NewAxis(edges)
	if err != nil {
		panic(err)
	}
	return a
}

// NBins returns len(edges) - 1
func (a Axis) NBins() int {
	if len(a.edges) == 0 {
		return 0
	}
	return len(a.edges) - 1
}

// Edges returns a copy of the bin edges
func (a Axis) Edges() []float64 {
	out := make([]float64, len(a.edges))
	copy(out, a.edges)
	return out
}

// Low returns the lower edge of the axis
func (a Axis) Low() float64 { return a.edges[0] }

// High returns the upper edge of the axis
func (a Axis) High() float64 { return a.edges[len(a.edges)-1] }

// FindBin returns the in-range bin holding v. Values below the first edge
// (underflow) or at/above the last edge (overflow) report false.
func (a Axis) FindBin(v float64) (int, bool) {
	if len(a.edges) < 2 || math.IsNaN(v) || v < a.edges[0] || v >= a.edges[len(a.edges)-1] {
		return 0, false
	}
	// first edge strictly greater than v, minus one
	i := sort.Search(len(a.edges), func(i int) bool { return a.edges[i] > v })
	return i - 1, true
}

// Equal reports whether both axes have identical edges
func (a Axis) Equal(b Axis) bool {
	if len(a.edges) != len(b.edges) {
		return false
	}
	for i := range a.edges {
		if a.edges[i] != b.edges[i] {
			return false
		}
	}
	return true
}

// Bin addresses one cell of a 2D histogram by its in-range indices.
type Bin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (b Bin) String() string {
	return fmt.Sprintf("(%d,%d)", b.X, b.Y)
}
