package container

import (
	"context"
	"fmt"

	"jetfakes/adapters/applier"
	"jetfakes/adapters/sqlstore"
	"jetfakes/adapters/tabular"
	"jetfakes/app"
	"jetfakes/internal"
	"jetfakes/internal/api"
	"jetfakes/internal/batch"
	"jetfakes/internal/config"
	"jetfakes/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Stores  *sqlstore.Locator
	Applier ports.WeightApplier

	// Services
	Pipeline   *app.PipelineService
	Dispatcher *batch.Dispatcher
}

// New wires the pipeline from configuration. The weight applier is only
// attached when enabled.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
		Stores: sqlstore.NewLocator(cfg.Store.Driver, cfg.Store.DSN, cfg.Paths.FractionDir),
	}
	if cfg.Applier.Enabled {
		c.Applier = applier.NewExecApplier(cfg.Applier.Binary, logger)
	}

	c.Pipeline = app.NewPipelineService(
		c.sourceFactory(),
		c.Stores,
		func(stagingDir string) ports.TableExporter { return sqlstore.NewTableExporter(stagingDir) },
		c.Applier,
		applier.MoveOutput,
		app.PipelineOptions{
			InputFormat:        cfg.Input.Format,
			StagingDir:         cfg.Paths.StagingDir,
			FakeFactorDir:      cfg.Applier.FakeFactorDir,
			IncludeSystematics: cfg.Applier.IncludeSystematics,
		},
		logger,
	)
	c.Dispatcher = batch.NewDispatcher(cfg.Batch.MaxParallel, logger)

	logger.Debug("[Container] store=%s format=%s applier=%t", cfg.Store.Driver, cfg.Input.Format, cfg.Applier.Enabled)
	return c, nil
}

func (c *Container) sourceFactory() app.SourceFactory {
	return func(inputDir, format, channel string) (ports.EventSource, error) {
		return tabular.NewDirectorySource(inputDir, format, channel, c.Logger)
	}
}

// RunRequest builds a pipeline request from the configured run fields
func (c *Container) RunRequest() app.RunRequest {
	return app.RunRequest{
		InputDir: c.Config.Run.InputDir,
		Period:   c.Config.Run.Period,
		Suffix:   c.Config.Run.Suffix,
		Channel:  c.Config.Run.Channel,
		Samples:  c.Config.Input.Samples,
	}
}

// Server creates the lookup service backed by the pipeline's stores
func (c *Container) Server() *api.Server {
	return api.NewServer(c.Pipeline, c.Config.Server.GinMode, c.Logger)
}

// Shutdown releases held resources. Stores are opened per call, so there
// is nothing long-lived to close yet.
func (c *Container) Shutdown(ctx context.Context) error {
	return ctx.Err()
}
