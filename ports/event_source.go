package ports

import (
	"context"

	"jetfakes/domain/table"
)

// EventSource provides read-only access to the per-sample event stores of
// one input directory.
type EventSource interface {
	// Load reads one sample's store. A store that does not exist yields an
	// error wrapping core.ErrMissingInput.
	Load(ctx context.Context, sampleName string) (*table.Table, error)

	// Tree names the event tree shared by every store (et_tree or mt_tree).
	Tree(ctx context.Context) (string, error)
}
