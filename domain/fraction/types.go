// Package fraction holds the output of a fraction-engine run: one frozen
// surface per (group, category), the integral summaries and the audit trail
// of clamped and degenerate bins.
package fraction

import (
	"fmt"

	"jetfakes/domain/core"
	"jetfakes/domain/histogram"
	"jetfakes/domain/region"
	"jetfakes/domain/sample"
)

// Binning used for every fraction surface
var (
	VisMassEdges = []float64{0, 50, 80, 100, 110, 120, 130, 150, 170, 200, 250, 1000}
	NJetsEdges   = []float64{-0.5, 0.5, 1.5, 15}
)

// DefaultAxes returns the (visible mass, jet count) binning
func DefaultAxes() (histogram.Axis, histogram.Axis) {
	return histogram.MustAxis(VisMassEdges), histogram.MustAxis(NJetsEdges)
}

// Key is the store key of a surface: {category}/{group}_{category}
func Key(g sample.Group, c sample.Category) string {
	return fmt.Sprintf("%s/%s_%s", c, g, c)
}

// HistName is the name of a surface inside its category directory
func HistName(g sample.Group, c sample.Category) string {
	return fmt.Sprintf("%s_%s", g, c)
}

// Summary is the integral-level composition of one category, computed before
// bin-wise normalization. Fractions are group integral over denominator
// integral; they are zero when the denominator integral is zero.
type Summary struct {
	Category    sample.Category          `json:"category"`
	Denominator float64                  `json:"denominator"`
	Integrals   map[sample.Group]float64 `json:"integrals"`
	Fractions   map[sample.Group]float64 `json:"fractions"`
}

// ClampRecord is one qcd bin raised from a negative yield to zero
type ClampRecord struct {
	Category sample.Category `json:"category"`
	histogram.Clamp
}

// DegenerateRecord is one bin whose denominator was zero
type DegenerateRecord struct {
	Category sample.Category `json:"category"`
	Bin      histogram.Bin   `json:"bin"`
}

// Set is the complete fraction output of one channel/period.
type Set struct {
	Channel    string
	Period     string
	Tree       string
	Surfaces   map[sample.Group]map[sample.Category]*histogram.Surface
	Summaries  []Summary
	Clamps     []ClampRecord
	Degenerate []DegenerateRecord
}

// NewSet creates an empty set
func NewSet(channel, period, tree string) *Set {
	surfaces := make(map[sample.Group]map[sample.Category]*histogram.Surface, len(sample.AllGroups))
	for _, g := range sample.AllGroups {
		surfaces[g] = make(map[sample.Category]*histogram.Surface, len(sample.AllCategories))
	}
	return &Set{Channel: channel, Period: period, Tree: tree, Surfaces: surfaces}
}

// Put stores a surface
func (s *Set) Put(g sample.Group, c sample.Category, surface *histogram.Surface) {
	if s.Surfaces[g] == nil {
		s.Surfaces[g] = make(map[sample.Category]*histogram.Surface)
	}
	s.Surfaces[g][c] = surface
}

// Surface returns the surface of (g, c)
func (s *Set) Surface(g sample.Group, c sample.Category) (*histogram.Surface, error) {
	surface, ok := s.Surfaces[g][c]
	if !ok {
		return nil, core.NewNotFoundError("surface", Key(g, c))
	}
	return surface, nil
}

// Summary returns the integral summary of a category
func (s *Set) Summary(c sample.Category) (Summary, bool) {
	for _, sm := range s.Summaries {
		if sm.Category == c {
			return sm, true
		}
	}
	return Summary{}, false
}

// Lookup is the per-event fraction triple used to weight one event
type Lookup struct {
	Category   sample.Category `json:"category"`
	Bin        histogram.Bin   `json:"bin"`
	W          float64         `json:"frac_w"`
	TT         float64         `json:"frac_tt"`
	QCD        float64         `json:"frac_qcd"`
	Degenerate bool            `json:"degenerate"`
}

// Lookup reads the normalized fractions of cat at (visMass, njets).
func (s *Set) Lookup(cat sample.Category, visMass, njets float64) (Lookup, error) {
	out := Lookup{Category: cat}
	targets := []*float64{&out.W, &out.TT, &out.QCD}
	for i, g := range sample.NormalizedGroups {
		surface, err := s.Surface(g, cat)
		if err != nil {
			return Lookup{}, err
		}
		v, bin, err := surface.Lookup(visMass, njets)
		if err != nil {
			return Lookup{}, err
		}
		*targets[i] = v
		out.Bin = bin
		if surface.IsDegenerate(bin.X, bin.Y) {
			out.Degenerate = true
		}
	}
	return out, nil
}

// LookupEvent categorizes an event by jet count and dijet mass, then looks
// up its fractions.
func (s *Set) LookupEvent(visMass, njets, mjj float64) (Lookup, error) {
	return s.Lookup(region.Categorize(njets, mjj), visMass, njets)
}

// Fingerprint hashes every surface in a fixed order. Two runs over the same
// inputs produce the same fingerprint.
func (s *Set) Fingerprint() core.Hash {
	h := core.NewHasher()
	for _, g := range sample.AllGroups {
		for _, c := range sample.AllCategories {
			surface, ok := s.Surfaces[g][c]
			if !ok {
				continue
			}
			h.WriteString(Key(g, c))
			surface.Fingerprint(h)
		}
	}
	return h.Sum()
}

// RunInfo is the metadata persisted with every fraction set
type RunInfo struct {
	RunID       core.RunID     `json:"run_id" db:"run_id"`
	Channel     string         `json:"channel" db:"channel"`
	Period      string         `json:"period" db:"period"`
	Suffix      string         `json:"suffix" db:"suffix"`
	Tree        string         `json:"tree" db:"tree"`
	Fingerprint core.Hash      `json:"fingerprint" db:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at" db:"-"`
}
