package sample

import (
	"fmt"
	"sort"

	"jetfakes/domain/core"
)

// DataSample is the observed-data sample name
const DataSample = "data_obs"

// DefaultRegistry maps every known sample to its composition group.
var DefaultRegistry = map[string]Group{
	"W":   GroupW,
	"ZJ":  GroupW,
	"VVJ": GroupW,
	"STJ": GroupW,

	"TTJ": GroupTT,

	DataSample: GroupData,

	"STL":   GroupReal,
	"VVL":   GroupReal,
	"TTL":   GroupReal,
	"ZL":    GroupReal,
	"STT":   GroupReal,
	"VVT":   GroupReal,
	"TTT":   GroupReal,
	"embed": GroupReal,
}

// Classifier maps sample names onto composition groups. The mapping is closed:
// names outside it are rejected rather than skipped.
type Classifier struct {
	groups map[string]Group
}

// NewClassifier validates a registry and builds a classifier
func NewClassifier(registry map[string]Group) (*Classifier, error) {
	groups := make(map[string]Group, len(registry))
	for name, g := range registry {
		if name == "" {
			return nil, fmt.Errorf("sample registry contains an empty name")
		}
		if !g.IsFilled() {
			return nil, fmt.Errorf("sample %s mapped to %s, which is derived and cannot be filled", name, g)
		}
		if _, err := ParseGroup(string(g)); err != nil {
			return nil, fmt.Errorf("sample %s: %w", name, err)
		}
		groups[name] = g
	}
	return &Classifier{groups: groups}, nil
}

// DefaultClassifier returns a classifier over DefaultRegistry
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRegistry)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the group of a sample
func (c *Classifier) Classify(name string) (Group, error) {
	g, ok := c.groups[name]
	if !ok {
		return "", core.NewUnknownSampleError(name)
	}
	return g, nil
}

// Plan is the validated, ordered list of samples per fill group.
type Plan map[Group][]string

// Plan classifies names into a fill plan. Every name must be known and every
// fill group must end up with at least one sample.
func (c *Classifier) Plan(names []string) (Plan, error) {
	plan := make(Plan, len(FillGroups))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		g, err := c.Classify(name)
		if err != nil {
			return nil, err
		}
		plan[g] = append(plan[g], name)
	}
	for _, g := range FillGroups {
		if len(plan[g]) == 0 {
			return nil, fmt.Errorf("%w: no sample configured for group %s", core.ErrMissingInput, g)
		}
		sort.Strings(plan[g])
	}
	return plan, nil
}

// DefaultPlan plans every sample the classifier knows
func (c *Classifier) DefaultPlan() (Plan, error) {
	return c.Plan(c.Samples())
}

// Samples lists every registered sample name, sorted
func (c *Classifier) Samples() []string {
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
