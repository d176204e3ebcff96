package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/domain/core"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	schema, err := ParseHeader([]string{
		"evtwt:float32", "vis_mass:float32", "njets:int32", "mjj:float32",
		"is_antiTauIso:int32", "contamination:bool", "run:int64",
	})
	require.NoError(t, err)
	return &Table{
		Sample: "ZL",
		Tree:   "mt_tree",
		Schema: schema,
		Rows: [][]string{
			{"0.5", "91.2", "0", "0", "1", "false", "315000"},
			{"1.25", "130", "2", "450.5", "0", "false", "315001"},
			{"-0.75", "60", "1", "0", "1", "true", "315002"},
		},
	}
}

func TestParseHeader(t *testing.T) {
	schema, err := ParseHeader([]string{"evtwt:float32", " njets : int32 ", "mjj"})
	require.NoError(t, err)
	assert.Equal(t, Schema{
		{Name: "evtwt", Type: Float32},
		{Name: "njets", Type: Int32},
		{Name: "mjj", Type: Float64},
	}, schema)
	assert.Equal(t, []string{"evtwt:float32", "njets:int32", "mjj:float64"}, schema.Header())

	_, err = ParseHeader([]string{"a", "a"})
	assert.Error(t, err)
	_, err = ParseHeader([]string{"a:complex128"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Validate())

	bad := tbl.Clone()
	bad.Rows[1][2] = "2.5"
	assert.ErrorIs(t, bad.Validate(), core.ErrSchemaMismatch, "int column must not accept a float")

	missing := tbl.Clone()
	missing.Schema[0].Name = "weight"
	assert.ErrorIs(t, missing.Validate(), core.ErrSchemaMismatch)
}

func TestRejectsNonFiniteFloats(t *testing.T) {
	for _, cell := range []string{"NaN", "nan", "Inf", "-Inf", "+inf", "1e40"} {
		tbl := newTestTable(t)
		tbl.Rows[0][0] = cell
		assert.ErrorIs(t, tbl.Validate(), core.ErrSchemaMismatch, cell)
		_, err := tbl.Events()
		assert.ErrorIs(t, err, core.ErrSchemaMismatch, cell)
	}

	_, err := ParseCell(Float64, "1e308")
	assert.NoError(t, err)
}

func TestEvents(t *testing.T) {
	events, err := newTestTable(t).Events()
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "ZL", events[0].Sample)
	assert.InDelta(t, 91.2, events[0].VisMass, 1e-5)
	assert.True(t, events[0].AntiIso)
	assert.False(t, events[0].Contaminated)
	assert.Equal(t, 2.0, events[1].NJets)
	assert.False(t, events[1].AntiIso)
	assert.True(t, events[2].Contaminated)
}

func TestNegatedKeepsDtypeAndSource(t *testing.T) {
	tbl := newTestTable(t)
	neg, err := tbl.Negated("evtwt")
	require.NoError(t, err)

	assert.Equal(t, "-0.5", neg.Rows[0][0])
	assert.Equal(t, "-1.25", neg.Rows[1][0])
	assert.Equal(t, "0.75", neg.Rows[2][0])
	assert.Equal(t, "91.2", neg.Rows[0][1], "other cells are carried verbatim")
	assert.Equal(t, "0.5", tbl.Rows[0][0], "source table is not mutated")
	assert.True(t, tbl.Schema.Equal(neg.Schema))

	_, err = tbl.Negated("contamination")
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestAppendRequiresIdenticalSchema(t *testing.T) {
	a := newTestTable(t)
	b := newTestTable(t)
	require.NoError(t, a.Append(b))
	assert.Equal(t, 6, a.Len())

	c := newTestTable(t)
	c.Schema[0].Type = Float64
	assert.ErrorIs(t, a.Append(c), core.ErrSchemaMismatch)
}

func TestFilter(t *testing.T) {
	tbl := newTestTable(t)
	col := tbl.Schema.Index("is_antiTauIso")
	require.NoError(t, tbl.Filter(func(r int) (bool, error) {
		v, err := tbl.Float(r, col)
		return v > 0, err
	}))
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "315002", tbl.Rows[1][6])
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "0.1", FormatCell(Float32, float64(float32(0.1))))
	assert.Equal(t, "-3", FormatCell(Int64, -3))
	assert.Equal(t, "true", FormatCell(Bool, 1))
}

func TestParseTreeName(t *testing.T) {
	tree, err := ParseTreeName([]string{"meta;1", "mt_tree;1"})
	require.NoError(t, err)
	assert.Equal(t, "mt_tree", tree)
	assert.Equal(t, "mt", ChannelPrefix(tree))

	tree, err = ParseTreeName([]string{"et_tree"})
	require.NoError(t, err)
	assert.Equal(t, "et_tree", tree)

	_, err = ParseTreeName([]string{"tt_tree;1"})
	assert.ErrorIs(t, err, core.ErrTreeNotFound)

	tree, err = TreeForChannel("et")
	require.NoError(t, err)
	assert.Equal(t, "et_tree", tree)
	_, err = TreeForChannel("em")
	assert.ErrorIs(t, err, core.ErrTreeNotFound)
}
