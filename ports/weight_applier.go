package ports

import "context"

// ApplyRequest is the command-line contract of the external weight applier.
// The applier reads pre_jetFakes.db from InputTableDir and writes
// jetFakes.db next to it.
type ApplyRequest struct {
	InputTableDir      string
	FractionStorePath  string
	FakeFactorPath     string
	ChannelPrefix      string
	IncludeSystematics bool
}

// WeightApplier runs the external binary that assigns one fake weight per
// event. It runs to completion or fails; it cannot be resumed.
type WeightApplier interface {
	Apply(ctx context.Context, req ApplyRequest) error
}
