package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/domain/core"
	"jetfakes/domain/sample"
)

func TestGeneratorDeterministic(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.EventsPerSample = 50

	a := NewGenerator(cfg).Generate()
	b := NewGenerator(cfg).Generate()

	require.Len(t, a, len(sample.DefaultRegistry))
	for name, tbl := range a {
		require.NoError(t, tbl.Validate(), name)
		assert.Equal(t, tbl.Rows, b[name].Rows, name)
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource("et_tree", NewSampleTable("W", "et_tree", Row{Weight: 2, VisMass: 60, AntiIso: true}))

	tbl, err := src.Load(context.Background(), "W")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	tbl.Rows[0][0] = "99"
	again, err := src.Load(context.Background(), "W")
	require.NoError(t, err)
	assert.Equal(t, "2", again.Rows[0][0], "loads return copies")

	_, err = src.Load(context.Background(), "TTJ")
	assert.ErrorIs(t, err, core.ErrMissingInput)
	assert.Equal(t, []string{"W", "W", "TTJ"}, src.Loads())
}

func TestSingleBinSource(t *testing.T) {
	src := SingleBinSource("mt_tree", map[sample.Group]float64{sample.GroupData: 100}, 90, 0)
	assert.Len(t, src.Samples(), len(sample.DefaultRegistry))

	data, err := src.Load(context.Background(), sample.DataSample)
	require.NoError(t, err)
	events, err := data.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 100.0, events[0].Weight)

	w, err := src.Load(context.Background(), "STJ")
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
}
