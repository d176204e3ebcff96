package region

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jetfakes/domain/sample"
)

func antiIso(njets, mjj float64) sample.Event {
	return sample.Event{NJets: njets, Mjj: mjj, AntiIso: true, Weight: 1}
}

func TestInCategory(t *testing.T) {
	tests := []struct {
		name  string
		event sample.Event
		want  map[sample.Category]bool
	}{
		{
			name:  "zero jets",
			event: antiIso(0, 0),
			want:  map[sample.Category]bool{"inclusive": true, "0jet": true},
		},
		{
			name:  "one jet ignores mjj",
			event: antiIso(1, 900),
			want:  map[sample.Category]bool{"inclusive": true, "boosted": true},
		},
		{
			name:  "two jets low mjj",
			event: antiIso(2, 299.9),
			want:  map[sample.Category]bool{"inclusive": true, "boosted": true},
		},
		{
			name:  "two jets at threshold",
			event: antiIso(2, 300),
			want:  map[sample.Category]bool{"inclusive": true, "vbf": true},
		},
		{
			name:  "three jets high mjj",
			event: antiIso(3, 1200),
			want:  map[sample.Category]bool{"inclusive": true, "vbf": true},
		},
		{
			name:  "isolated event",
			event: sample.Event{NJets: 0},
			want:  map[sample.Category]bool{},
		},
		{
			name:  "contaminated event",
			event: sample.Event{NJets: 0, AntiIso: true, Contaminated: true},
			want:  map[sample.Category]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, cat := range sample.AllCategories {
				assert.Equal(t, tt.want[cat], InCategory(tt.event, cat), "category %s", cat)
			}
		})
	}
}

func TestExclusiveCategoriesArePartition(t *testing.T) {
	for _, njets := range []float64{0, 1, 2, 3, 7} {
		for _, mjj := range []float64{0, 150, 299.99, 300, 300.01, 2000} {
			e := antiIso(njets, mjj)

			first := InCategory(e, sample.CategoryInclusive)
			second := InCategory(e, sample.CategoryInclusive)
			assert.Equal(t, first, second, "predicate must be pure")

			matched := 0
			for _, cat := range sample.ExclusiveCategories {
				if InCategory(e, cat) {
					matched++
					assert.Equal(t, cat, Categorize(njets, mjj))
				}
			}
			assert.Equal(t, 1, matched, "njets=%g mjj=%g", njets, mjj)
			assert.True(t, first, "inclusive is a superset")
		}
	}
}

func TestSelect(t *testing.T) {
	events := []sample.Event{
		antiIso(0, 0),
		antiIso(1, 0),
		antiIso(2, 500),
		{NJets: 2, Mjj: 500},
	}
	assert.Len(t, Select(events, sample.CategoryInclusive), 3)
	assert.Len(t, Select(events, sample.CategoryZeroJet), 1)
	assert.Len(t, Select(events, sample.CategoryBoosted), 1)
	assert.Equal(t, []sample.Event{antiIso(2, 500)}, Select(events, sample.CategoryVBF))
	assert.Empty(t, Select(events[3:], sample.CategoryInclusive))
}
