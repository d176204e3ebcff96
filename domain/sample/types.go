// Package sample defines the composition groups, analysis categories and
// per-event records the fraction engine works with, plus the closed mapping
// from sample names to groups.
package sample

import "fmt"

// Group is a composition group of the anti-isolated sample.
type Group string

const (
	GroupW    Group = "frac_w"    // W+jets-like
	GroupTT   Group = "frac_tt"   // top-pair-like
	GroupReal Group = "frac_real" // real-lepton-like
	GroupData Group = "frac_data" // observed data
	GroupQCD  Group = "frac_qcd"  // derived, never filled
)

// FillGroups are the groups filled directly from samples, in fill order.
var FillGroups = []Group{GroupW, GroupTT, GroupReal, GroupData}

// AllGroups lists every group in persistence order.
var AllGroups = []Group{GroupW, GroupTT, GroupQCD, GroupReal, GroupData}

// NormalizedGroups are the groups whose fractions close to one per bin.
var NormalizedGroups = []Group{GroupW, GroupTT, GroupQCD}

// ParseGroup validates a group name
func ParseGroup(s string) (Group, error) {
	for _, g := range AllGroups {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown group %q", s)
}

// IsFilled reports whether the group is filled from samples rather than derived
func (g Group) IsFilled() bool {
	return g != GroupQCD
}

// Category is an analysis category of the anti-isolated control region.
type Category string

const (
	CategoryInclusive Category = "inclusive"
	CategoryZeroJet   Category = "0jet"
	CategoryBoosted   Category = "boosted"
	CategoryVBF       Category = "vbf"
)

// AllCategories lists every category in processing order.
var AllCategories = []Category{CategoryInclusive, CategoryZeroJet, CategoryBoosted, CategoryVBF}

// ExclusiveCategories are the jet-multiplicity categories an event is assigned to
// when fractions are applied.
var ExclusiveCategories = []Category{CategoryZeroJet, CategoryBoosted, CategoryVBF}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Event is the subset of an event record the engine reads.
type Event struct {
	Sample       string
	Weight       float64
	VisMass      float64
	NJets        float64
	Mjj          float64
	AntiIso      bool
	Contaminated bool
}

// Column names of the event stores
const (
	ColumnWeight        = "evtwt"
	ColumnVisMass       = "vis_mass"
	ColumnNJets         = "njets"
	ColumnMjj           = "mjj"
	ColumnAntiIso       = "is_antiTauIso"
	ColumnContamination = "contamination"
)

// RequiredColumns must be present, numeric, in every event store.
var RequiredColumns = []string{
	ColumnWeight,
	ColumnVisMass,
	ColumnNJets,
	ColumnMjj,
	ColumnAntiIso,
	ColumnContamination,
}
