package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"jetfakes/internal"
	"jetfakes/internal/errors"
)

// Job is one independent unit of work, typically a single channel/period run
type Job struct {
	Name   string
	Weight int64 // capacity units held while running; values below 1 count as 1
	Fn     func(ctx context.Context) error
}

// Outcome records how a job finished
type Outcome struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the job succeeded
func (o Outcome) OK() bool { return o.Err == nil }

// Dispatcher runs jobs concurrently under a weighted capacity limit. A
// failing or panicking job never cancels or corrupts its siblings.
type Dispatcher struct {
	capacity int64
	sem      *semaphore.Weighted
	logger   *internal.Logger
}

// NewDispatcher creates a dispatcher allowing maxParallel capacity units at once
func NewDispatcher(maxParallel int, logger *internal.Logger) *Dispatcher {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &Dispatcher{
		capacity: int64(maxParallel),
		sem:      semaphore.NewWeighted(int64(maxParallel)),
		logger:   logger,
	}
}

// Run executes every job and returns one outcome per job, in job order. Jobs
// that could not start because ctx ended report the context error.
func (d *Dispatcher) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	var wg sync.WaitGroup

	for i, job := range jobs {
		outcomes[i].Name = job.Name
		weight := d.weight(job)
		if err := d.sem.Acquire(ctx, weight); err != nil {
			outcomes[i].Err = errors.Wrapf(err, "job %s not started", job.Name)
			outcomes[i].Error = outcomes[i].Err.Error()
			continue
		}

		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			defer d.sem.Release(weight)

			start := time.Now()
			err := d.execute(ctx, job)
			outcomes[idx].Duration = time.Since(start)
			outcomes[idx].Err = err
			if err != nil {
				outcomes[idx].Error = err.Error()
				d.logger.Error("[Batch] %s failed after %v: %v", job.Name, outcomes[idx].Duration, err)
				return
			}
			d.logger.Info("[Batch] %s finished in %v", job.Name, outcomes[idx].Duration)
		}(i, job)
	}

	wg.Wait()
	return outcomes
}

func (d *Dispatcher) weight(job Job) int64 {
	switch {
	case job.Weight < 1:
		return 1
	case job.Weight > d.capacity:
		return d.capacity
	}
	return job.Weight
}

func (d *Dispatcher) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(fmt.Sprintf("job %s panicked: %v", job.Name, r))
		}
	}()
	if job.Fn == nil {
		return errors.InvalidInput(fmt.Sprintf("job %s has no work", job.Name))
	}
	return job.Fn(ctx)
}

// Failed returns the outcomes that ended in error, sorted by name
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Name < failed[j].Name })
	return failed
}
