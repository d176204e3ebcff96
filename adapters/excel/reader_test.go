package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/domain/core"
	"jetfakes/internal/testkit"
)

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "W.csv")
	tbl := testkit.NewSampleTable("W", "mt_tree",
		testkit.Row{Weight: 0.25, VisMass: 91.5, NJets: 2, Mjj: 412.5, AntiIso: true},
		testkit.Row{Weight: -1, VisMass: 40, NJets: 0},
	)
	require.NoError(t, WriteCSV(path, tbl))

	r := NewDataReader(path, nil)
	keys, err := r.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	got, err := r.ReadTable("W", "mt_tree")
	require.NoError(t, err)
	assert.True(t, tbl.Schema.Equal(got.Schema))
	assert.Equal(t, tbl.Rows, got.Rows)
	require.NoError(t, got.Validate())
}

func TestXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data_obs.xlsx")
	tbl := testkit.NewSampleTable("data_obs", "et_tree",
		testkit.Row{Weight: 1, VisMass: 120, NJets: 1, AntiIso: true},
	)
	require.NoError(t, WriteXLSX(path, tbl))

	r := NewDataReader(path, nil)
	keys, err := r.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"et_tree"}, keys)

	got, err := r.ReadTable("data_obs", "et_tree")
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows, got.Rows)

	_, err = r.ReadTable("data_obs", "mt_tree")
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestReadTableMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "TTJ.csv"), nil).ReadTable("TTJ", "mt_tree")
	assert.ErrorIs(t, err, core.ErrMissingInput)
}

func TestReadTablePadsShortRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ZL.csv")
	content := "evtwt:float64,vis_mass:float64,njets:int32\n1.5,80\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := NewDataReader(path, nil).ReadTable("ZL", "mt_tree")
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"1.5", "80", ""}, got.Rows[0])
	assert.ErrorIs(t, got.Validate(), core.ErrSchemaMismatch)
}

func TestReadTableBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ZL.csv")
	require.NoError(t, os.WriteFile(path, []byte("evtwt:complex128\n1\n"), 0o644))

	_, err := NewDataReader(path, nil).ReadTable("ZL", "mt_tree")
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}
