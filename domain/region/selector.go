// Package region selects anti-isolated control-region events per analysis
// category. All functions are pure.
package region

import (
	"jetfakes/domain/sample"
)

// VBFMjjThreshold separates boosted from vbf-enriched multi-jet events (GeV).
const VBFMjjThreshold = 300.0

// AntiIsolated is the base control-region requirement shared by every category.
func AntiIsolated(e sample.Event) bool {
	return e.AntiIso && !e.Contaminated
}

// InCategory reports whether e belongs to cat's anti-isolated control region.
func InCategory(e sample.Event, cat sample.Category) bool {
	if !AntiIsolated(e) {
		return false
	}
	return matchesCategory(e, cat)
}

// Categorize assigns an event to its exclusive jet category, independent of
// isolation. Events matching neither vbf nor boosted fall back to 0jet.
func Categorize(njets, mjj float64) sample.Category {
	e := sample.Event{NJets: njets, Mjj: mjj}
	for _, cat := range []sample.Category{sample.CategoryVBF, sample.CategoryBoosted} {
		if matchesCategory(e, cat) {
			return cat
		}
	}
	return sample.CategoryZeroJet
}

// Selection counts selected events per category.
type Selection map[sample.Category]int

// Select returns the events of cat's control region.
func Select(events []sample.Event, cat sample.Category) []sample.Event {
	var out []sample.Event
	for _, e := range events {
		if InCategory(e, cat) {
			out = append(out, e)
		}
	}
	return out
}

// boosted is njets == 1 OR (njets > 1 AND mjj < 300): mjj only enters for
// multi-jet events, which keeps boosted and vbf disjoint.
func matchesCategory(e sample.Event, cat sample.Category) bool {
	switch cat {
	case sample.CategoryInclusive:
		return true
	case sample.CategoryZeroJet:
		return e.NJets == 0
	case sample.CategoryBoosted:
		return e.NJets == 1 || (e.NJets > 1 && e.Mjj < VBFMjjThreshold)
	case sample.CategoryVBF:
		return e.NJets > 1 && e.Mjj >= VBFMjjThreshold
	}
	return false
}
