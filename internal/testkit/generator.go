package testkit

import (
	"math"
	"math/rand"

	"jetfakes/domain/sample"
	"jetfakes/domain/table"
)

// GeneratorConfig configures the synthetic event generator
type GeneratorConfig struct {
	Tree            string  `json:"tree"`
	EventsPerSample int     `json:"events_per_sample"`
	AntiIsoRate     float64 `json:"anti_iso_rate"`
	ContamRate      float64 `json:"contamination_rate"`
	Seed            int64   `json:"seed"`
}

// DefaultGeneratorConfig returns sensible defaults for event generation
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Tree:            "mt_tree",
		EventsPerSample: 500,
		AntiIsoRate:     0.4,
		ContamRate:      0.02,
		Seed:            42,
	}
}

// groupScale sets the typical event weight of each group so that data
// exceeds the simulated groups and the derived qcd yield is mostly positive.
var groupScale = map[sample.Group]float64{
	sample.GroupW:    0.08,
	sample.GroupTT:   0.1,
	sample.GroupReal: 0.02,
	sample.GroupData: 1.0,
}

// Generator produces deterministic synthetic event stores
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator creates a generator; equal configs produce equal stores
func NewGenerator(config GeneratorConfig) *Generator {
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds one store per registered sample
func (g *Generator) Generate() map[string]*table.Table {
	classifier := sample.DefaultClassifier()
	out := make(map[string]*table.Table)
	for _, name := range classifier.Samples() {
		group, _ := classifier.Classify(name)
		out[name] = g.generateSample(name, group)
	}
	return out
}

// Source wraps Generate in a MemorySource
func (g *Generator) Source() *MemorySource {
	src := NewMemorySource(g.config.Tree)
	for _, t := range g.Generate() {
		src.Put(t)
	}
	return src
}

func (g *Generator) generateSample(name string, group sample.Group) *table.Table {
	rows := make([]Row, g.config.EventsPerSample)
	for i := range rows {
		njets := g.rng.Intn(4)
		mjj := 0.0
		if njets > 1 {
			mjj = math.Abs(g.rng.NormFloat64()*250 + 300)
		}
		rows[i] = Row{
			Weight:        groupScale[group] * (0.5 + g.rng.Float64()),
			VisMass:       math.Abs(g.rng.NormFloat64()*40 + 95),
			NJets:         njets,
			Mjj:           mjj,
			AntiIso:       g.rng.Float64() < g.config.AntiIsoRate,
			Contamination: group != sample.GroupData && g.rng.Float64() < g.config.ContamRate,
		}
	}
	return NewSampleTable(name, g.config.Tree, rows...)
}
