package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"jetfakes/domain/core"
	"jetfakes/domain/fraction"
	"jetfakes/domain/sample"
	"jetfakes/internal"
	"jetfakes/internal/engine"
	"jetfakes/internal/errors"
	"jetfakes/ports"
)

// SourceFactory opens the event stores of one input directory
type SourceFactory func(inputDir, format, channel string) (ports.EventSource, error)

// StoreLocator resolves the fraction store of a run
type StoreLocator interface {
	Location(channel, period, suffix string) string
	Open(ctx context.Context, channel, period, suffix string) (ports.FractionStore, error)
	Resolve(ctx context.Context, channel, period, suffix string) (ports.FractionStore, error)
	Stores(ctx context.Context) ([]ports.FractionStore, error)
}

// ExporterFactory creates the pre-fakes exporter for a staging directory
type ExporterFactory func(stagingDir string) ports.TableExporter

// OutputMover moves the applier's output from staging into the input directory
type OutputMover func(stagingDir, destDir string) (string, error)

// PipelineOptions are the fixed settings of a pipeline service
type PipelineOptions struct {
	InputFormat        string
	StagingDir         string
	FakeFactorDir      string
	IncludeSystematics bool
}

// PipelineService runs the fraction engine for one channel/period, persists
// its output and optionally hands off to the external weight applier.
type PipelineService struct {
	sources   SourceFactory
	stores    StoreLocator
	exporters ExporterFactory
	applier   ports.WeightApplier
	mover     OutputMover
	options   PipelineOptions
	runner    *StageRunner
	logger    *internal.Logger
}

// NewPipelineService creates a pipeline service. applier may be nil, which
// disables the weight-applier stage.
func NewPipelineService(
	sources SourceFactory,
	stores StoreLocator,
	exporters ExporterFactory,
	applier ports.WeightApplier,
	mover OutputMover,
	options PipelineOptions,
	logger *internal.Logger,
) *PipelineService {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &PipelineService{
		sources:   sources,
		stores:    stores,
		exporters: exporters,
		applier:   applier,
		mover:     mover,
		options:   options,
		runner:    NewStageRunner(logger),
		logger:    logger,
	}
}

// FakeFactorPath is the per channel/period fake-factor directory handed to
// the weight applier: <dir>/ff_files_<channel>_<period>/
func FakeFactorPath(dir, channel, period string) string {
	return filepath.Join(dir, fmt.Sprintf("ff_files_%s_%s", channel, period)) + string(filepath.Separator)
}

// RunRequest identifies one fraction run
type RunRequest struct {
	InputDir string   `json:"input"`
	Period   string   `json:"period"`
	Suffix   string   `json:"suffix"`
	Channel  string   `json:"channel,omitempty"`
	Samples  []string `json:"samples,omitempty"`
}

// RunResult describes a completed run
type RunResult struct {
	Info          fraction.RunInfo   `json:"run"`
	StoreLocation string             `json:"store"`
	PreFakesPath  string             `json:"pre_fakes"`
	OutputPath    string             `json:"output,omitempty"`
	Summaries     []fraction.Summary `json:"summaries"`
	Clamps        int                `json:"clamped_bins"`
	Degenerate    int                `json:"degenerate_bins"`
	Stats         engine.RunStats    `json:"stats"`
	Stages        []StageTiming      `json:"stages"`
}

// Run computes and persists one channel/period. Nothing is written until
// the engine has produced every surface, and the staged pre-fakes table is
// removed again when the fraction store cannot be written.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.InputDir == "" || req.Period == "" || req.Suffix == "" {
		return nil, errors.InvalidInput("input directory, period and suffix are required")
	}

	var (
		res    *engine.Result
		result = &RunResult{}
		stage  = filepath.Join(s.options.StagingDir, req.Suffix)
	)

	stages := []Stage{
		{Name: "compute", Run: func(ctx context.Context) error {
			source, err := s.sources(req.InputDir, s.options.InputFormat, req.Channel)
			if err != nil {
				return err
			}
			eng := engine.New(source, engine.WithLogger(s.logger))
			res, err = eng.Run(ctx, engine.Request{Channel: req.Channel, Period: req.Period, Samples: req.Samples})
			return err
		}},
		{Name: "export", Run: func(ctx context.Context) error {
			exporter := s.exporters(stage)
			result.PreFakesPath = exporter.Path()
			return exporter.Export(ctx, res.PreFakes)
		}},
		{Name: "persist", Run: func(ctx context.Context) error {
			if err := s.persist(ctx, req, res.Fractions, result); err != nil {
				s.discardExport(result.PreFakesPath)
				return err
			}
			return nil
		}},
	}
	if s.applier != nil {
		stages = append(stages, Stage{Name: "apply", Run: func(ctx context.Context) error {
			err := s.applier.Apply(ctx, ports.ApplyRequest{
				InputTableDir:      stage,
				FractionStorePath:  result.StoreLocation,
				FakeFactorPath:     FakeFactorPath(s.options.FakeFactorDir, res.Fractions.Channel, req.Period),
				ChannelPrefix:      res.Fractions.Channel,
				IncludeSystematics: s.options.IncludeSystematics,
			})
			if err != nil {
				return err
			}
			result.OutputPath, err = s.mover(stage, req.InputDir)
			return err
		}})
	}

	timings, err := s.runner.Execute(ctx, stages)
	if err != nil {
		return nil, errors.Wrapf(err, "fraction run %s %s failed", req.Period, req.Suffix)
	}

	result.Summaries = res.Fractions.Summaries
	result.Clamps = len(res.Fractions.Clamps)
	result.Degenerate = len(res.Fractions.Degenerate)
	result.Stats = res.Stats
	result.Stages = timings
	s.logger.Info("[Pipeline] run %s stored at %s", result.Info.RunID, result.StoreLocation)
	return result, nil
}

func (s *PipelineService) persist(ctx context.Context, req RunRequest, set *fraction.Set, result *RunResult) error {
	result.Info = fraction.RunInfo{
		RunID:       core.NewRunID(),
		Channel:     set.Channel,
		Period:      req.Period,
		Suffix:      req.Suffix,
		Tree:        set.Tree,
		Fingerprint: set.Fingerprint(),
		CreatedAt:   core.Now(),
	}
	result.StoreLocation = s.stores.Location(set.Channel, req.Period, req.Suffix)
	store, err := s.stores.Open(ctx, set.Channel, req.Period, req.Suffix)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, result.Info, set)
}

// discardExport removes a staged pre-fakes table whose run was not stored.
func (s *PipelineService) discardExport(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("[Pipeline] could not remove %s: %v", path, err)
	}
}

// LoadSet returns the stored fractions of channel/period
func (s *PipelineService) LoadSet(ctx context.Context, channel, period, suffix string) (*fraction.Set, *fraction.RunInfo, error) {
	store, err := s.stores.Resolve(ctx, channel, period, suffix)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()
	return store.Load(ctx, channel, period)
}

// LatestRun returns the metadata of the newest stored run of channel/period
func (s *PipelineService) LatestRun(ctx context.Context, channel, period, suffix string) (*fraction.RunInfo, error) {
	store, err := s.stores.Resolve(ctx, channel, period, suffix)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Latest(ctx, channel, period)
}

// LoadRun returns one stored run of channel/period by ID
func (s *PipelineService) LoadRun(ctx context.Context, channel, period, suffix string, runID core.RunID) (*fraction.Set, *fraction.RunInfo, error) {
	store, err := s.stores.Resolve(ctx, channel, period, suffix)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()
	return store.LoadRun(ctx, runID)
}

// Lookup returns the fractions for one event. An empty category means the
// event's own category.
func (s *PipelineService) Lookup(ctx context.Context, channel, period, suffix string, category sample.Category, visMass, njets, mjj float64) (fraction.Lookup, error) {
	set, _, err := s.LoadSet(ctx, channel, period, suffix)
	if err != nil {
		return fraction.Lookup{}, err
	}
	if category == "" {
		return set.LookupEvent(visMass, njets, mjj)
	}
	return set.Lookup(category, visMass, njets)
}

// ListRuns lists the runs of every store, newest first per store
func (s *PipelineService) ListRuns(ctx context.Context) ([]fraction.RunInfo, error) {
	stores, err := s.stores.Stores(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, store := range stores {
			store.Close()
		}
	}()
	var runs []fraction.RunInfo
	for _, store := range stores {
		infos, err := store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		runs = append(runs, infos...)
	}
	return runs, nil
}
