package ports

import (
	"context"

	"jetfakes/domain/core"
	"jetfakes/domain/fraction"
	"jetfakes/domain/table"
)

// FractionStore persists fraction sets. Save is all-or-nothing: either every
// surface of the set is stored or none is.
type FractionStore interface {
	Save(ctx context.Context, info fraction.RunInfo, set *fraction.Set) error
	Load(ctx context.Context, channel, period string) (*fraction.Set, *fraction.RunInfo, error)
	LoadRun(ctx context.Context, runID core.RunID) (*fraction.Set, *fraction.RunInfo, error)
	Latest(ctx context.Context, channel, period string) (*fraction.RunInfo, error)
	ListRuns(ctx context.Context) ([]fraction.RunInfo, error)
	Close() error
}

// TableExporter writes the flattened anti-isolated event table consumed by
// the weight applier. The table's schema must be written without any dtype
// change.
type TableExporter interface {
	Export(ctx context.Context, tbl *table.Table) error
	Path() string
}
