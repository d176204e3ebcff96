package engine

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/domain/core"
	"jetfakes/domain/histogram"
	"jetfakes/domain/sample"
	"jetfakes/domain/table"
	"jetfakes/internal"
	"jetfakes/internal/testkit"
)

func singleBin(t *testing.T, yields map[sample.Group]float64) *Result {
	t.Helper()
	src := testkit.SingleBinSource("mt_tree", yields, 90, 0)
	res, err := New(src).Run(context.Background(), Request{Period: "2017"})
	require.NoError(t, err)
	return res
}

func lookup(t *testing.T, res *Result, g sample.Group, cat sample.Category) float64 {
	t.Helper()
	surface, err := res.Fractions.Surface(g, cat)
	require.NoError(t, err)
	v, _, err := surface.Lookup(90, 0)
	require.NoError(t, err)
	return v
}

func TestRunSingleBinFractions(t *testing.T) {
	res := singleBin(t, map[sample.Group]float64{
		sample.GroupData: 100,
		sample.GroupW:    40,
		sample.GroupTT:   10,
		sample.GroupReal: 5,
	})

	assert.Equal(t, "mt", res.Fractions.Channel)
	assert.Equal(t, "mt_tree", res.Fractions.Tree)
	for _, cat := range []sample.Category{sample.CategoryInclusive, sample.CategoryZeroJet} {
		assert.InDelta(t, 40.0/95, lookup(t, res, sample.GroupW, cat), 1e-12, cat)
		assert.InDelta(t, 10.0/95, lookup(t, res, sample.GroupTT, cat), 1e-12, cat)
		assert.InDelta(t, 45.0/95, lookup(t, res, sample.GroupQCD, cat), 1e-12, cat)
		assert.InDelta(t, 5.0, lookup(t, res, sample.GroupReal, cat), 1e-12, "real stays raw")
		assert.InDelta(t, 100.0, lookup(t, res, sample.GroupData, cat), 1e-12, "data stays raw")

		summary, ok := res.Fractions.Summary(cat)
		require.True(t, ok)
		assert.InDelta(t, 95.0, summary.Denominator, 1e-12)
		assert.InDelta(t, 5.0/95, summary.Fractions[sample.GroupReal], 1e-12)
		assert.InDelta(t, 100.0/95, summary.Fractions[sample.GroupData], 1e-12)
	}
	assert.Empty(t, res.Fractions.Clamps)
}

func TestRunClampsNegativeQCD(t *testing.T) {
	res := singleBin(t, map[sample.Group]float64{
		sample.GroupData: 30,
		sample.GroupW:    40,
	})

	assert.InDelta(t, 1.0, lookup(t, res, sample.GroupW, sample.CategoryInclusive), 1e-12)
	assert.Equal(t, 0.0, lookup(t, res, sample.GroupQCD, sample.CategoryInclusive))
	assert.Equal(t, 0.0, lookup(t, res, sample.GroupTT, sample.CategoryInclusive))

	require.Len(t, res.Fractions.Clamps, 2, "inclusive and 0jet")
	assert.InDelta(t, -10.0, res.Fractions.Clamps[0].RawValue, 1e-12)
}

func TestRunZeroDenominator(t *testing.T) {
	res := singleBin(t, map[sample.Group]float64{sample.GroupData: 100})

	surface, err := res.Fractions.Surface(sample.GroupQCD, sample.CategoryVBF)
	require.NoError(t, err)
	for _, v := range surface.Values() {
		assert.Equal(t, histogram.DegenerateValue, v)
	}
	nbins := surface.XAxis().NBins() * surface.YAxis().NBins()
	assert.Len(t, surface.Degenerate(), nbins)

	summary, ok := res.Fractions.Summary(sample.CategoryVBF)
	require.True(t, ok)
	assert.Zero(t, summary.Denominator)
	assert.Zero(t, summary.Fractions[sample.GroupW])

	// data only: qcd carries the whole populated bin
	assert.InDelta(t, 1.0, lookup(t, res, sample.GroupQCD, sample.CategoryInclusive), 1e-12)
}

func TestRunClosureAndNonNegativity(t *testing.T) {
	cfg := testkit.DefaultGeneratorConfig()
	cfg.EventsPerSample = 300
	res, err := New(testkit.NewGenerator(cfg).Source()).Run(context.Background(), Request{Channel: "mt", Period: "2016"})
	require.NoError(t, err)

	for _, cat := range sample.AllCategories {
		w, err := res.Fractions.Surface(sample.GroupW, cat)
		require.NoError(t, err)
		tt, err := res.Fractions.Surface(sample.GroupTT, cat)
		require.NoError(t, err)
		qcd, err := res.Fractions.Surface(sample.GroupQCD, cat)
		require.NoError(t, err)

		for ix := 0; ix < w.XAxis().NBins(); ix++ {
			for iy := 0; iy < w.YAxis().NBins(); iy++ {
				assert.GreaterOrEqual(t, qcd.At(ix, iy), 0.0)
				if qcd.IsDegenerate(ix, iy) {
					continue
				}
				sum := w.At(ix, iy) + tt.At(ix, iy) + qcd.At(ix, iy)
				assert.InDelta(t, 1.0, sum, 1e-9, "%s bin (%d,%d)", cat, ix, iy)
			}
		}
	}
	assert.Greater(t, res.Stats.Selected[sample.CategoryInclusive], 0)
	assert.Equal(t, res.Stats.Selected[sample.CategoryInclusive],
		res.Stats.Selected[sample.CategoryZeroJet]+res.Stats.Selected[sample.CategoryBoosted]+res.Stats.Selected[sample.CategoryVBF])
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := testkit.DefaultGeneratorConfig()
	cfg.EventsPerSample = 100
	src := testkit.NewGenerator(cfg).Source()

	a, err := New(src).Run(context.Background(), Request{})
	require.NoError(t, err)
	b, err := New(src).Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, a.Fractions.Fingerprint(), b.Fractions.Fingerprint())
	assert.Equal(t, a.PreFakes.Rows, b.PreFakes.Rows)
}

func TestRunPreFakes(t *testing.T) {
	src := testkit.SingleBinSource("et_tree", map[sample.Group]float64{
		sample.GroupData: 100,
		sample.GroupReal: 5,
	}, 90, 0)
	src.Put(testkit.NewSampleTable(sample.DataSample, "et_tree",
		testkit.Row{Weight: 100, VisMass: 90, AntiIso: true},
		testkit.Row{Weight: 7, VisMass: 90, AntiIso: false},
	))

	res, err := New(src).Run(context.Background(), Request{})
	require.NoError(t, err)

	pre := res.PreFakes
	require.Equal(t, 2, pre.Len(), "isolated data row is filtered out")
	col := pre.Schema.Index(sample.ColumnWeight)
	assert.Equal(t, "100", pre.Rows[0][col])
	assert.Equal(t, "-5", pre.Rows[1][col])
	assert.Equal(t, "et_tree", pre.Tree)
	assert.True(t, pre.Schema.Equal(testkit.Schema()))
}

func TestRunMissingSample(t *testing.T) {
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 1}, 90, 0)
	src.Remove("TTJ")

	_, err := New(src).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, core.ErrMissingInput)
}

func TestRunSchemaMismatch(t *testing.T) {
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 1}, 90, 0)
	broken := testkit.NewSampleTable("W", "mt_tree", testkit.Row{Weight: 1, VisMass: 90})
	broken.Schema = broken.Schema[1:]
	for i := range broken.Rows {
		broken.Rows[i] = broken.Rows[i][1:]
	}
	src.Put(broken)

	_, err := New(src).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestRunRealSchemaMustMatchData(t *testing.T) {
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 1}, 90, 0)
	extra := testkit.NewSampleTable("ZL", "mt_tree", testkit.Row{Weight: 1, VisMass: 90, AntiIso: true})
	extra.Schema = append(extra.Schema, table.Column{Name: "pt_1", Type: table.Float32})
	extra.Rows[0] = append(extra.Rows[0], "30.5")
	src.Put(extra)

	_, err := New(src).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestRunChannelMismatch(t *testing.T) {
	src := testkit.SingleBinSource("et_tree", map[sample.Group]float64{sample.GroupData: 1}, 90, 0)
	_, err := New(src).Run(context.Background(), Request{Channel: "mt"})
	assert.ErrorIs(t, err, core.ErrTreeNotFound)
}

func TestRunDropsOutOfRange(t *testing.T) {
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 1}, 90, 0)
	src.Put(testkit.NewSampleTable(sample.DataSample, "mt_tree",
		testkit.Row{Weight: 10, VisMass: 90, AntiIso: true},
		testkit.Row{Weight: 10, VisMass: 5000, AntiIso: true},
	))

	res, err := New(src).Run(context.Background(), Request{})
	require.NoError(t, err)
	surface, err := res.Fractions.Surface(sample.GroupData, sample.CategoryInclusive)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, surface.Integral(), 1e-12)
	assert.Greater(t, res.Stats.Dropped, 0)
	assert.False(t, math.IsNaN(lookup(t, res, sample.GroupQCD, sample.CategoryInclusive)))
}

func TestRunRejectsNonFiniteWeight(t *testing.T) {
	for _, cell := range []string{"NaN", "Inf", "-Inf"} {
		src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 100}, 90, 0)
		w := testkit.NewSampleTable("W", "mt_tree", testkit.Row{Weight: 1, VisMass: 90, AntiIso: true})
		w.Rows[0][w.Schema.Index(sample.ColumnWeight)] = cell
		src.Put(w)

		res, err := New(src).Run(context.Background(), Request{})
		assert.ErrorIs(t, err, core.ErrSchemaMismatch, cell)
		assert.Nil(t, res, cell)
	}
}

func TestRunWarnsOnDegenerateBins(t *testing.T) {
	var buf bytes.Buffer
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 100}, 90, 0)

	res, err := New(src, WithLogger(internal.NewLoggerTo(internal.LogLevelWarn, &buf))).Run(context.Background(), Request{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Fractions.Degenerate)
	assert.Contains(t, buf.String(), "vbf: bin")
	assert.Contains(t, buf.String(), "has zero denominator")
}

func TestRunWithAxes(t *testing.T) {
	src := testkit.SingleBinSource("mt_tree", map[sample.Group]float64{
		sample.GroupData: 100,
		sample.GroupW:    40,
		sample.GroupTT:   10,
		sample.GroupReal: 5,
	}, 90, 0)
	x := histogram.MustAxis([]float64{0, 400})
	y := histogram.MustAxis([]float64{0, 10})

	res, err := New(src, WithAxes(x, y)).Run(context.Background(), Request{})
	require.NoError(t, err)

	qcd, err := res.Fractions.Surface(sample.GroupQCD, sample.CategoryInclusive)
	require.NoError(t, err)
	assert.Equal(t, 1, qcd.XAxis().NBins())
	assert.Equal(t, 1, qcd.YAxis().NBins())
	assert.InDelta(t, 45.0/95, lookup(t, res, sample.GroupQCD, sample.CategoryInclusive), 1e-12)
	assert.Equal(t, 4, res.Stats.Selected[sample.CategoryInclusive])
	assert.Equal(t, 4, res.Stats.Selected[sample.CategoryZeroJet])
	assert.Zero(t, res.Stats.Selected[sample.CategoryVBF])
}
