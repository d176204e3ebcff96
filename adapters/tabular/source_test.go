package tabular

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jetfakes/domain/core"
	"jetfakes/internal/engine"
	"jetfakes/internal/testkit"
)

func writeGenerated(t *testing.T, format, tree string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := testkit.DefaultGeneratorConfig()
	cfg.Tree = tree
	cfg.EventsPerSample = 40
	for _, tbl := range testkit.NewGenerator(cfg).Generate() {
		require.NoError(t, WriteStore(context.Background(), dir, format, tbl))
	}
	return dir
}

func TestDirectorySourceFormats(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatXLSX, FormatSQLite} {
		t.Run(format, func(t *testing.T) {
			ctx := context.Background()
			dir := writeGenerated(t, format, "et_tree")

			src, err := NewDirectorySource(dir, format, "et", nil)
			require.NoError(t, err)

			tree, err := src.Tree(ctx)
			require.NoError(t, err)
			assert.Equal(t, "et_tree", tree)

			tbl, err := src.Load(ctx, "TTJ")
			require.NoError(t, err)
			assert.Equal(t, 40, tbl.Len())
			assert.True(t, tbl.Schema.Equal(testkit.Schema()))

			cfg := testkit.DefaultGeneratorConfig()
			cfg.Tree = "et_tree"
			cfg.EventsPerSample = 40
			want := testkit.NewGenerator(cfg).Generate()["TTJ"]
			assert.Equal(t, want.Rows, tbl.Rows)
		})
	}
}

func TestDirectorySourceMatchesMemorySource(t *testing.T) {
	ctx := context.Background()
	dir := writeGenerated(t, FormatSQLite, "mt_tree")
	src, err := NewDirectorySource(dir, FormatSQLite, "", nil)
	require.NoError(t, err)

	cfg := testkit.DefaultGeneratorConfig()
	cfg.EventsPerSample = 40
	mem := testkit.NewGenerator(cfg).Source()

	a, err := engine.New(src).Run(ctx, engine.Request{Period: "2017"})
	require.NoError(t, err)
	b, err := engine.New(mem).Run(ctx, engine.Request{Period: "2017"})
	require.NoError(t, err)
	assert.Equal(t, b.Fractions.Fingerprint(), a.Fractions.Fingerprint())
}

func TestDirectorySourceMissingSample(t *testing.T) {
	ctx := context.Background()
	dir := writeGenerated(t, FormatCSV, "mt_tree")
	src, err := NewDirectorySource(dir, FormatCSV, "mt", nil)
	require.NoError(t, err)

	_, err = src.Load(ctx, "embed_missing")
	assert.ErrorIs(t, err, core.ErrMissingInput)
}

func TestDirectorySourceTreeDetection(t *testing.T) {
	ctx := context.Background()

	t.Run("csv needs a channel", func(t *testing.T) {
		src, err := NewDirectorySource(t.TempDir(), FormatCSV, "", nil)
		require.NoError(t, err)
		_, err = src.Tree(ctx)
		assert.ErrorIs(t, err, core.ErrTreeNotFound)
	})

	t.Run("channel must match the stored tree", func(t *testing.T) {
		dir := writeGenerated(t, FormatXLSX, "mt_tree")
		src, err := NewDirectorySource(dir, FormatXLSX, "et", nil)
		require.NoError(t, err)
		_, err = src.Tree(ctx)
		assert.ErrorIs(t, err, core.ErrTreeNotFound)
	})

	t.Run("missing data store", func(t *testing.T) {
		src, err := NewDirectorySource(t.TempDir(), FormatSQLite, "", nil)
		require.NoError(t, err)
		_, err = src.Tree(ctx)
		assert.ErrorIs(t, err, core.ErrMissingInput)
	})
}

func TestNewDirectorySourceValidates(t *testing.T) {
	_, err := NewDirectorySource(t.TempDir(), "root", "mt", nil)
	assert.Error(t, err)

	_, err = NewDirectorySource("/nonexistent/input", FormatCSV, "mt", nil)
	assert.ErrorIs(t, err, core.ErrMissingInput)
}
