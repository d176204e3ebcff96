package excel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"jetfakes/domain/fraction"
	"jetfakes/domain/sample"
	"jetfakes/internal/engine"
	"jetfakes/internal/testkit"
)

func reportSet(t *testing.T) *fraction.Set {
	t.Helper()
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{
		sample.GroupData: 30,
		sample.GroupW:    40,
	}, 90, 0)
	res, err := engine.New(src).Run(context.Background(), engine.Request{Period: "2018"})
	require.NoError(t, err)
	return res.Fractions
}

func TestReportWriter(t *testing.T) {
	set := reportSet(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")

	require.NoError(t, NewReportWriter(DefaultReportConfig()).Write(path, set, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"summary", "inclusive", "0jet", "boosted", "vbf", "audit"}, f.GetSheetList())

	channel, err := f.GetCellValue("summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "mt", channel)

	title, err := f.GetCellValue("inclusive", "A1")
	require.NoError(t, err)
	assert.Equal(t, "inclusive/frac_w_inclusive", title)

	// vis_mass 90 is x bin 2, njets 0 is y bin 0: row 3+2, column B
	w, err := f.GetCellValue("inclusive", "B5")
	require.NoError(t, err)
	assert.Contains(t, w, "1.0000")

	empty, err := f.GetCellValue("vbf", "B3")
	require.NoError(t, err)
	assert.Equal(t, "n/a", empty)

	kind, err := f.GetCellValue("audit", "A2")
	require.NoError(t, err)
	assert.Equal(t, "clamp", kind)
}

func TestSummarizeSurface(t *testing.T) {
	set := reportSet(t)

	surface, err := set.Surface(sample.GroupW, sample.CategoryInclusive)
	require.NoError(t, err)
	st, err := SummarizeSurface("w", surface)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Bins)
	assert.Equal(t, 1.0, st.Max)
	assert.Equal(t, 1.0, st.Median)

	empty, err := set.Surface(sample.GroupW, sample.CategoryVBF)
	require.NoError(t, err)
	st, err = SummarizeSurface("w", empty)
	require.NoError(t, err)
	assert.Zero(t, st.Bins)
}
