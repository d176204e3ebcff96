// Package table models the flat per-sample event stores: an ordered column
// schema with exact dtypes and raw cell text. Cells are kept as text so that
// untouched values are written back exactly as read.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"jetfakes/domain/core"
	"jetfakes/domain/sample"
)

// ColumnType is the storage dtype of a column
type ColumnType string

const (
	Float32 ColumnType = "float32"
	Float64 ColumnType = "float64"
	Int32   ColumnType = "int32"
	Int64   ColumnType = "int64"
	Bool    ColumnType = "bool"
)

// ParseColumnType validates a dtype name
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case Float32:
		return Float32, nil
	case Float64:
		return Float64, nil
	case Int32:
		return Int32, nil
	case Int64:
		return Int64, nil
	case Bool:
		return Bool, nil
	}
	return "", fmt.Errorf("unsupported column type %q", s)
}

// IsFloat reports whether the dtype is floating point
func (t ColumnType) IsFloat() bool { return t == Float32 || t == Float64 }

// BitSize returns the width used when formatting and parsing
func (t ColumnType) BitSize() int {
	switch t {
	case Float32, Int32:
		return 32
	case Bool:
		return 1
	}
	return 64
}

// Column is one named, typed column
type Column struct {
	Name string     `json:"name" db:"name"`
	Type ColumnType `json:"type" db:"dtype"`
}

// Schema is the ordered column list of a table
type Schema []Column

// ParseHeader builds a schema from header cells of the form "name:dtype".
// A cell without a dtype is float64.
func ParseHeader(cells []string) (Schema, error) {
	schema := make(Schema, 0, len(cells))
	seen := make(map[string]bool, len(cells))
	for i, cell := range cells {
		name, dtype, hasType := strings.Cut(strings.TrimSpace(cell), ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		ct := Float64
		if hasType {
			var err error
			if ct, err = ParseColumnType(dtype); err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
		}
		schema = append(schema, Column{Name: name, Type: ct})
	}
	return schema, nil
}

// Header renders the schema back into "name:dtype" cells
func (s Schema) Header() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name + ":" + string(c.Type)
	}
	return out
}

// Index returns the position of a column or -1
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal compares names, order and dtypes
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Diff describes the first difference between two schemas
func (s Schema) Diff(other Schema) string {
	for i := 0; i < len(s) && i < len(other); i++ {
		if s[i] != other[i] {
			return fmt.Sprintf("column %d is %s:%s, expected %s:%s", i, other[i].Name, other[i].Type, s[i].Name, s[i].Type)
		}
	}
	return fmt.Sprintf("%d columns, expected %d", len(other), len(s))
}

// Table is one sample's event store
type Table struct {
	Sample string
	Tree   string
	Schema Schema
	Rows   [][]string
}

// Validate checks that the required columns exist and that every cell parses
// as its column's dtype. Float cells must be finite. Nothing is coerced.
func (t *Table) Validate() error {
	for _, name := range sample.RequiredColumns {
		if t.Schema.Index(name) < 0 {
			return core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("missing column %s", name))
		}
	}
	for r, row := range t.Rows {
		if len(row) != len(t.Schema) {
			return core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("row %d has %d cells, schema has %d columns", r, len(row), len(t.Schema)))
		}
		for c, cell := range row {
			if _, err := parseCell(t.Schema[c].Type, cell); err != nil {
				return core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("row %d column %s: %v", r, t.Schema[c].Name, err))
			}
		}
	}
	return nil
}

// Len returns the row count
func (t *Table) Len() int { return len(t.Rows) }

// Float returns the numeric value of a cell
func (t *Table) Float(row, col int) (float64, error) {
	return parseCell(t.Schema[col].Type, t.Rows[row][col])
}

// Events decodes the engine-relevant columns of every row.
func (t *Table) Events() ([]sample.Event, error) {
	idx := make(map[string]int, len(sample.RequiredColumns))
	for _, name := range sample.RequiredColumns {
		i := t.Schema.Index(name)
		if i < 0 {
			return nil, core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("missing column %s", name))
		}
		idx[name] = i
	}

	events := make([]sample.Event, len(t.Rows))
	vals := make(map[string]float64, len(idx))
	for r := range t.Rows {
		for name, c := range idx {
			v, err := t.Float(r, c)
			if err != nil {
				return nil, core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("row %d column %s: %v", r, name, err))
			}
			vals[name] = v
		}
		events[r] = sample.Event{
			Sample:       t.Sample,
			Weight:       vals[sample.ColumnWeight],
			VisMass:      vals[sample.ColumnVisMass],
			NJets:        vals[sample.ColumnNJets],
			Mjj:          vals[sample.ColumnMjj],
			AntiIso:      vals[sample.ColumnAntiIso] > 0,
			Contaminated: vals[sample.ColumnContamination] != 0,
		}
	}
	return events, nil
}

// Clone deep-copies the table
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return &Table{
		Sample: t.Sample,
		Tree:   t.Tree,
		Schema: append(Schema(nil), t.Schema...),
		Rows:   rows,
	}
}

// Negated returns a copy with every value of column name sign-inverted,
// formatted in the column's own dtype.
func (t *Table) Negated(name string) (*Table, error) {
	c := t.Schema.Index(name)
	if c < 0 {
		return nil, core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("missing column %s", name))
	}
	ct := t.Schema[c].Type
	if ct == Bool {
		return nil, core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("column %s is bool and cannot be negated", name))
	}
	out := t.Clone()
	for r := range out.Rows {
		v, err := parseCell(ct, out.Rows[r][c])
		if err != nil {
			return nil, core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("row %d column %s: %v", r, name, err))
		}
		out.Rows[r][c] = FormatCell(ct, -v)
	}
	return out, nil
}

// Append concatenates other's rows. Schemas must match exactly.
func (t *Table) Append(other *Table) error {
	if !t.Schema.Equal(other.Schema) {
		return core.NewSchemaMismatchError(other.Sample, t.Schema.Diff(other.Schema))
	}
	for _, row := range other.Rows {
		t.Rows = append(t.Rows, append([]string(nil), row...))
	}
	return nil
}

// Filter keeps only rows for which keep returns true.
func (t *Table) Filter(keep func(row int) (bool, error)) error {
	kept := t.Rows[:0]
	for r, row := range t.Rows {
		ok, err := keep(r)
		if err != nil {
			return err
		}
		if ok {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	return nil
}

// ParseCell parses a raw cell according to a dtype
func ParseCell(ct ColumnType, cell string) (float64, error) {
	return parseCell(ct, cell)
}

func parseCell(ct ColumnType, cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch ct {
	case Float32, Float64:
		v, err := strconv.ParseFloat(cell, ct.BitSize())
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return v, fmt.Errorf("non-finite value %q", cell)
		}
		return v, err
	case Int32, Int64:
		v, err := strconv.ParseInt(cell, 10, ct.BitSize())
		return float64(v), err
	case Bool:
		b, err := strconv.ParseBool(cell)
		if b {
			return 1, err
		}
		return 0, err
	}
	return math.NaN(), fmt.Errorf("unsupported column type %q", ct)
}

// FormatCell renders a value in a dtype's canonical text form
func FormatCell(ct ColumnType, v float64) string {
	switch ct {
	case Float32, Float64:
		return strconv.FormatFloat(v, 'g', -1, ct.BitSize())
	case Int32, Int64:
		return strconv.FormatInt(int64(v), 10)
	case Bool:
		return strconv.FormatBool(v != 0)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
