// Package testkit provides in-memory event sources and synthetic sample
// builders for tests and local smoke runs.
package testkit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"jetfakes/domain/core"
	"jetfakes/domain/sample"
	"jetfakes/domain/table"
)

// Row is one synthetic event
type Row struct {
	Weight        float64
	VisMass       float64
	NJets         int
	Mjj           float64
	AntiIso       bool
	Contamination bool
}

// Schema is the column layout of every synthetic store. It carries one column
// the engine never reads so exports can be checked for pass-through.
func Schema() table.Schema {
	return table.Schema{
		{Name: sample.ColumnWeight, Type: table.Float64},
		{Name: sample.ColumnVisMass, Type: table.Float64},
		{Name: sample.ColumnNJets, Type: table.Int32},
		{Name: sample.ColumnMjj, Type: table.Float64},
		{Name: sample.ColumnAntiIso, Type: table.Int32},
		{Name: sample.ColumnContamination, Type: table.Int32},
		{Name: "evt", Type: table.Int64},
	}
}

// NewSampleTable builds a store for one sample from rows
func NewSampleTable(name, tree string, rows ...Row) *table.Table {
	t := &table.Table{Sample: name, Tree: tree, Schema: Schema()}
	for i, r := range rows {
		t.Rows = append(t.Rows, []string{
			strconv.FormatFloat(r.Weight, 'g', -1, 64),
			strconv.FormatFloat(r.VisMass, 'g', -1, 64),
			strconv.Itoa(r.NJets),
			strconv.FormatFloat(r.Mjj, 'g', -1, 64),
			boolCell(r.AntiIso),
			boolCell(r.Contamination),
			strconv.Itoa(i),
		})
	}
	return t
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// MemorySource is an in-memory ports.EventSource
type MemorySource struct {
	mu     sync.Mutex
	tree   string
	tables map[string]*table.Table
	loads  []string
}

// NewMemorySource creates a source over the given tables
func NewMemorySource(tree string, tables ...*table.Table) *MemorySource {
	s := &MemorySource{tree: tree, tables: make(map[string]*table.Table, len(tables))}
	for _, t := range tables {
		s.tables[t.Sample] = t
	}
	return s
}

// Put adds or replaces a sample store
func (s *MemorySource) Put(t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Sample] = t
}

// Remove drops a sample store
func (s *MemorySource) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// Load returns a copy of a sample store
func (s *MemorySource) Load(ctx context.Context, name string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, name)
	t, ok := s.tables[name]
	if !ok {
		g, _ := sample.DefaultClassifier().Classify(name)
		return nil, core.NewMissingInputError(string(g), name, "memory")
	}
	return t.Clone(), nil
}

// Tree returns the configured tree name
func (s *MemorySource) Tree(ctx context.Context) (string, error) {
	return s.tree, nil
}

// Loads lists every sample requested so far, in order
func (s *MemorySource) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

// Samples lists the stored sample names
func (s *MemorySource) Samples() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SingleBinSource builds a source where every registered sample exists and
// each group's yield sits in a single (visMass, njets) bin. The first sample
// of each group carries the whole yield as one anti-isolated event; every
// other sample is an empty store.
func SingleBinSource(tree string, yields map[sample.Group]float64, visMass float64, njets int) *MemorySource {
	classifier := sample.DefaultClassifier()
	plan, err := classifier.DefaultPlan()
	if err != nil {
		panic(fmt.Sprintf("default plan: %v", err))
	}
	src := NewMemorySource(tree)
	for _, g := range sample.FillGroups {
		for i, name := range plan[g] {
			if i == 0 && yields[g] != 0 {
				src.Put(NewSampleTable(name, tree, Row{Weight: yields[g], VisMass: visMass, NJets: njets, AntiIso: true}))
				continue
			}
			src.Put(NewSampleTable(name, tree))
		}
	}
	return src
}
