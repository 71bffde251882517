package report

import (
	"context"
	"strings"

	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/pkg/logger"
)

// Sink receives the pipeline verdict and per-job verdicts of a finished
// run. Canceled runs are never reported.
type Sink interface {
	Report(ctx context.Context, runID string, verdict *models.PipelineVerdict) error
}

// LogSink reports verdicts through the structured logger, one line per job
// and a summary line for the pipeline
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a logger-backed sink
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

// Report writes the verdict to the log
func (s *LogSink) Report(ctx context.Context, runID string, verdict *models.PipelineVerdict) error {
	for _, job := range verdict.Jobs {
		steps := make([]string, 0, len(job.Steps))
		for _, sr := range job.Steps {
			steps = append(steps, sr.Name+"="+string(sr.Status))
		}
		s.logger.Info("job verdict",
			"run_id", runID,
			"job", job.Job.Key(),
			"status", job.Status,
			"steps", strings.Join(steps, ","))
	}
	s.logger.Info("pipeline verdict",
		"run_id", runID,
		"status", verdict.Status,
		"job_count", len(verdict.Jobs))
	return nil
}
