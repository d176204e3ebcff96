package histogram

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"jetfakes/domain/core"
)

// Surface is a finalized, read-only 2D histogram. Values are stored
// row-major with the x axis as rows.
type Surface struct {
	name       string
	x, y       Axis
	values     []float64
	errors     []float64
	degenerate []Bin
}

// NewSurface rebuilds a surface from persisted parts.
func NewSurface(name string, x, y Axis, values, errs []float64, degenerate []Bin) (*Surface, error) {
	n := x.NBins() * y.NBins()
	if len(values) != n {
		return nil, core.NewInvalidBinningError(fmt.Sprintf("surface %s has %d values, binning needs %d", name, len(values), n))
	}
	if errs == nil {
		errs = make([]float64, n)
	}
	if len(errs) != n {
		return nil, core.NewInvalidBinningError(fmt.Sprintf("surface %s has %d errors, binning needs %d", name, len(errs), n))
	}
	for _, b := range degenerate {
		if b.X < 0 || b.X >= x.NBins() || b.Y < 0 || b.Y >= y.NBins() {
			return nil, core.NewInvalidBinningError(fmt.Sprintf("surface %s degenerate bin %s out of range", name, b))
		}
	}
	s := &Surface{
		name:       name,
		x:          x,
		y:          y,
		values:     append([]float64(nil), values...),
		errors:     append([]float64(nil), errs...),
		degenerate: append([]Bin(nil), degenerate...),
	}
	sortBins(s.degenerate)
	return s, nil
}

func (s *Surface) Name() string { return s.name }
func (s *Surface) XAxis() Axis  { return s.x }
func (s *Surface) YAxis() Axis  { return s.y }

// At returns the content of bin (ix, iy)
func (s *Surface) At(ix, iy int) float64 {
	return s.values[ix*s.y.NBins()+iy]
}

// ErrorAt returns the uncertainty of bin (ix, iy)
func (s *Surface) ErrorAt(ix, iy int) float64 {
	return s.errors[ix*s.y.NBins()+iy]
}

// Lookup returns the content of the bin holding (x, y).
func (s *Surface) Lookup(x, y float64) (float64, Bin, error) {
	ix, okx := s.x.FindBin(x)
	iy, oky := s.y.FindBin(y)
	if !okx || !oky {
		return 0, Bin{}, fmt.Errorf("%s at (%g, %g): %w", s.name, x, y, core.ErrOutOfRange)
	}
	return s.At(ix, iy), Bin{X: ix, Y: iy}, nil
}

// Integral sums all bins
func (s *Surface) Integral() float64 {
	return floats.Sum(s.values)
}

// Values returns a row-major copy of the bin contents
func (s *Surface) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Errors returns a row-major copy of the bin uncertainties
func (s *Surface) Errors() []float64 {
	return append([]float64(nil), s.errors...)
}

// Degenerate lists bins that hold DegenerateValue because their
// denominator was zero.
func (s *Surface) Degenerate() []Bin {
	return append([]Bin(nil), s.degenerate...)
}

// IsDegenerate reports whether (ix, iy) is a zero-denominator bin
func (s *Surface) IsDegenerate(ix, iy int) bool {
	for _, b := range s.degenerate {
		if b.X == ix && b.Y == iy {
			return true
		}
	}
	return false
}

// Fingerprint writes the surface into h for content hashing
func (s *Surface) Fingerprint(h *core.Hasher) {
	h.WriteString(s.name)
	h.WriteFloats(s.x.edges)
	h.WriteFloats(s.y.edges)
	h.WriteFloats(s.values)
	h.WriteFloats(s.errors)
}
