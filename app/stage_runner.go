package app

import (
	"context"
	"fmt"
	"time"

	"jetfakes/internal"
)

// Stage is one named step of a pipeline run
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// StageTiming records how long a stage took
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// StageRunner executes stages in order and stops at the first failure
type StageRunner struct {
	logger *internal.Logger
}

// NewStageRunner creates a new stage runner
func NewStageRunner(logger *internal.Logger) *StageRunner {
	return &StageRunner{logger: logger}
}

// Execute runs every stage, returning the timings of those that completed
func (r *StageRunner) Execute(ctx context.Context, stages []Stage) ([]StageTiming, error) {
	timings := make([]StageTiming, 0, len(stages))
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return timings, err
		}
		start := time.Now()
		r.logger.Debug("[Pipeline] stage %s started", st.Name)
		if err := st.Run(ctx); err != nil {
			r.logger.Error("[Pipeline] stage %s failed: %v", st.Name, err)
			return timings, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		timings = append(timings, StageTiming{Name: st.Name, Duration: time.Since(start)})
		r.logger.Debug("[Pipeline] stage %s finished in %v", st.Name, time.Since(start))
	}
	return timings, nil
}
