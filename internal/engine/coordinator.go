package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/pkg/logger"
)

// Coordinator expands the matrix and drives one job executor run per
// configuration. Jobs are independent: no job observes another's state,
// and one job's fault never aborts its siblings.
type Coordinator struct {
	executor    *Executor
	maxParallel int
	logger      *logger.Logger
}

// NewCoordinator creates a run coordinator. maxParallel bounds how many
// jobs execute concurrently; zero or negative means one per configuration.
func NewCoordinator(exec *Executor, maxParallel int, log *logger.Logger) *Coordinator {
	return &Coordinator{executor: exec, maxParallel: maxParallel, logger: log}
}

// Run executes the full matrix for one triggering event and returns the
// aggregate verdict. A ConfigError from expansion aborts before any job is
// dispatched. If ctx is canceled the run reports no verdict: a canceled
// run must never publish a false one.
func (c *Coordinator) Run(ctx context.Context, pipeline *models.Pipeline) (*models.PipelineVerdict, error) {
	jobs, err := ExpandMatrix(pipeline.Matrix)
	if err != nil {
		return nil, err
	}

	limit := c.maxParallel
	if limit <= 0 {
		limit = len(jobs)
	}

	c.logger.Info("dispatching matrix",
		"pipeline", pipeline.Name,
		"job_count", len(jobs),
		"max_parallel", limit)

	// Verdicts land in expansion order regardless of completion order
	verdicts := make([]models.JobVerdict, len(jobs))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job models.JobConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			verdicts[i] = c.executor.RunJob(ctx, job, pipeline.Steps)
		}(i, job)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		c.logger.Info("run canceled", "pipeline", pipeline.Name)
		return nil, err
	}

	verdict := &models.PipelineVerdict{
		Jobs:   verdicts,
		Status: AggregateStatus(verdicts),
	}
	c.logger.Info("matrix finished",
		"pipeline", pipeline.Name,
		"status", verdict.Status)
	return verdict, nil
}

// AggregateStatus computes the pipeline status over a set of job verdicts:
// failed if any job failed or errored, unstable if any job is unstable and
// none failed, passed otherwise.
func AggregateStatus(jobs []models.JobVerdict) models.PipelineStatus {
	status := models.PipelinePassed
	for _, j := range jobs {
		switch j.Status {
		case models.JobFailed, models.JobErrored:
			return models.PipelineFailed
		case models.JobUnstable:
			status = models.PipelineUnstable
		}
	}
	return status
}

// Faults collects the infrastructure faults recorded across a verdict's
// jobs into a single error, nil when no job errored.
func Faults(v *models.PipelineVerdict) error {
	var errs error
	for _, j := range v.Jobs {
		if j.Status == models.JobErrored && j.Error != "" {
			errs = multierr.Append(errs, fmt.Errorf("job %s: %s", j.Job.Key(), j.Error))
		}
	}
	return errs
}
