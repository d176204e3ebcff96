package histogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"jetfakes/domain/core"
)

// DegenerateValue is written into every bin whose denominator is zero during
// Divide. Such bins are also recorded so consumers can tell a true zero
// fraction from an undefined one.
const DegenerateValue = 0.0

// Clamp records one bin that was raised from a negative yield to zero.
type Clamp struct {
	Bin      Bin     `json:"bin"`
	RawValue float64 `json:"raw_value"`
}

// Accumulator is a mutable 2D histogram holding, per bin, the sum of weights
// and the sum of squared weights. Rows index the x axis, columns the y axis.
type Accumulator struct {
	name       string
	x, y       Axis
	sumw       *mat.Dense
	sumw2      *mat.Dense
	entries    int
	dropped    int
	degenerate map[Bin]struct{}
	frozen     bool
}

// NewAccumulator creates an empty histogram over the given axes
func NewAccumulator(name string, x, y Axis) *Accumulator {
	return &Accumulator{
		name:       name,
		x:          x,
		y:          y,
		sumw:       mat.NewDense(x.NBins(), y.NBins(), nil),
		sumw2:      mat.NewDense(x.NBins(), y.NBins(), nil),
		degenerate: make(map[Bin]struct{}),
	}
}

// Name returns the histogram name
func (h *Accumulator) Name() string { return h.name }

// XAxis returns the x binning
func (h *Accumulator) XAxis() Axis { return h.x }

// YAxis returns the y binning
func (h *Accumulator) YAxis() Axis { return h.y }

// Entries counts in-range fills
func (h *Accumulator) Entries() int { return h.entries }

// Dropped counts fills that fell into underflow or overflow
func (h *Accumulator) Dropped() int { return h.dropped }

// Fill adds weight w at (x, y). Out-of-range fills are counted and dropped.
func (h *Accumulator) Fill(x, y, w float64) error {
	if h.frozen {
		return fmt.Errorf("fill %s: %w", h.name, core.ErrFrozen)
	}
	ix, okx := h.x.FindBin(x)
	iy, oky := h.y.FindBin(y)
	if !okx || !oky {
		h.dropped++
		return nil
	}
	h.sumw.Set(ix, iy, h.sumw.At(ix, iy)+w)
	h.sumw2.Set(ix, iy, h.sumw2.At(ix, iy)+w*w)
	h.entries++
	return nil
}

// Content returns the sum of weights in a bin
func (h *Accumulator) Content(ix, iy int) float64 { return h.sumw.At(ix, iy) }

// Error returns the statistical uncertainty of a bin
func (h *Accumulator) Error(ix, iy int) float64 { return math.Sqrt(h.sumw2.At(ix, iy)) }

// Integral sums all in-range bins
func (h *Accumulator) Integral() float64 {
	return floats.Sum(h.sumw.RawMatrix().Data)
}

// Clone copies the histogram under a new name. The copy is mutable even if
// the source is frozen.
func (h *Accumulator) Clone(name string) *Accumulator {
	c := NewAccumulator(name, h.x, h.y)
	c.sumw.Copy(h.sumw)
	c.sumw2.Copy(h.sumw2)
	c.entries = h.entries
	c.dropped = h.dropped
	for b := range h.degenerate {
		c.degenerate[b] = struct{}{}
	}
	return c
}

// Add performs h += scale*other bin-wise. Variances add with scale squared.
func (h *Accumulator) Add(other *Accumulator, scale float64) error {
	if err := h.checkCompatible("add", other); err != nil {
		return err
	}
	var tmp mat.Dense
	tmp.Scale(scale, other.sumw)
	h.sumw.Add(h.sumw, &tmp)
	tmp.Scale(scale*scale, other.sumw2)
	h.sumw2.Add(h.sumw2, &tmp)
	h.entries += other.entries
	return nil
}

// Subtract performs h -= other bin-wise.
func (h *Accumulator) Subtract(other *Accumulator) error {
	return h.Add(other, -1)
}

// ClampNegative raises every negative bin to zero and reports the bins it
// changed, in row-major order. Bin errors are left untouched.
func (h *Accumulator) ClampNegative() ([]Clamp, error) {
	if h.frozen {
		return nil, fmt.Errorf("clamp %s: %w", h.name, core.ErrFrozen)
	}
	var clamps []Clamp
	rows, cols := h.sumw.Dims()
	for ix := 0; ix < rows; ix++ {
		for iy := 0; iy < cols; iy++ {
			if v := h.sumw.At(ix, iy); v < 0 {
				clamps = append(clamps, Clamp{Bin: Bin{X: ix, Y: iy}, RawValue: v})
				h.sumw.Set(ix, iy, 0)
			}
		}
	}
	return clamps, nil
}

// Divide performs h /= denom bin-wise with uncorrelated error propagation.
// Bins where denom is zero receive DegenerateValue with zero error and are
// returned (row-major) and remembered on h.
func (h *Accumulator) Divide(denom *Accumulator) ([]Bin, error) {
	if err := h.checkCompatible("divide", denom); err != nil {
		return nil, err
	}
	var degenerate []Bin
	rows, cols := h.sumw.Dims()
	for ix := 0; ix < rows; ix++ {
		for iy := 0; iy < cols; iy++ {
			c1, c2 := h.sumw.At(ix, iy), denom.sumw.At(ix, iy)
			if c2 == 0 {
				b := Bin{X: ix, Y: iy}
				degenerate = append(degenerate, b)
				h.degenerate[b] = struct{}{}
				h.sumw.Set(ix, iy, DegenerateValue)
				h.sumw2.Set(ix, iy, 0)
				continue
			}
			e1, e2 := h.sumw2.At(ix, iy), denom.sumw2.At(ix, iy)
			h.sumw.Set(ix, iy, c1/c2)
			h.sumw2.Set(ix, iy, (e1*c2*c2+e2*c1*c1)/(c2*c2*c2*c2))
		}
	}
	return degenerate, nil
}

// Freeze finalizes the histogram into an immutable Surface. Any later Fill,
// arithmetic or clamp on h fails with core.ErrFrozen.
func (h *Accumulator) Freeze() *Surface {
	h.frozen = true
	rows, cols := h.sumw.Dims()
	values := make([]float64, rows*cols)
	errs := make([]float64, rows*cols)
	for ix := 0; ix < rows; ix++ {
		for iy := 0; iy < cols; iy++ {
			values[ix*cols+iy] = h.sumw.At(ix, iy)
			errs[ix*cols+iy] = math.Sqrt(h.sumw2.At(ix, iy))
		}
	}
	degenerate := make([]Bin, 0, len(h.degenerate))
	for b := range h.degenerate {
		degenerate = append(degenerate, b)
	}
	sortBins(degenerate)
	return &Surface{
		name:       h.name,
		x:          h.x,
		y:          h.y,
		values:     values,
		errors:     errs,
		degenerate: degenerate,
	}
}

func (h *Accumulator) checkCompatible(op string, other *Accumulator) error {
	if h.frozen {
		return fmt.Errorf("%s %s: %w", op, h.name, core.ErrFrozen)
	}
	if !h.x.Equal(other.x) || !h.y.Equal(other.y) {
		return fmt.Errorf("%s %s and %s: %w", op, h.name, other.name, core.ErrBinningMismatch)
	}
	return nil
}

func sortBins(bins []Bin) {
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].X != bins[j].X {
			return bins[i].X < bins[j].X
		}
		return bins[i].Y < bins[j].Y
	})
}
