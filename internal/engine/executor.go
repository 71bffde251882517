package engine

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lei/matrix-ci/internal/action"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/pkg/logger"
)

// matrixRef matches "${{ matrix.<dimension> }}" references in step parameters
var matrixRef = regexp.MustCompile(`\$\{\{\s*matrix\.([A-Za-z0-9_.-]+)\s*\}\}`)

// Executor runs the step sequence of a single job configuration
type Executor struct {
	invoker action.Invoker
	gate    *GatePolicy
	logger  *logger.Logger
}

// NewExecutor creates a job executor
func NewExecutor(inv action.Invoker, gate *GatePolicy, log *logger.Logger) *Executor {
	return &Executor{invoker: inv, gate: gate, logger: log}
}

// RunJob executes the steps strictly in declaration order for one job
// configuration and returns its verdict. Per step, the job's dimension
// values are substituted into the parameters before invocation. A blocking
// failure skips every remaining step; an advisory failure is recorded and
// execution continues; an invocation fault stops the job as errored.
func (e *Executor) RunJob(ctx context.Context, job models.JobConfig, steps []models.Step) models.JobVerdict {
	log := e.logger.With("job", job.Key())
	log.Debug("job started", "step_count", len(steps))

	state := stateRunning
	results := make([]models.StepResult, 0, len(steps))
	var faultMsg string

	for _, step := range steps {
		if state.terminal() {
			results = append(results, models.StepResult{Name: step.Name, Status: models.StepSkipped})
			continue
		}

		if err := ctx.Err(); err != nil {
			state = stateErrored
			faultMsg = fmt.Sprintf("run canceled before step %q: %v", step.Name, err)
			results = append(results, models.StepResult{Name: step.Name, Status: models.StepSkipped})
			continue
		}

		blocking, err := e.gate.IsBlocking(step.Name)
		if err != nil {
			state = stateErrored
			faultMsg = err.Error()
			results = append(results, models.StepResult{Name: step.Name, Status: models.StepSkipped})
			continue
		}

		outcome, err := e.invoker.Invoke(ctx, step.ActionRef(), resolveParams(step, job))
		if err != nil {
			// The check was never performed: errored, not failed
			log.Warn("step invocation faulted", "step", step.Name, "error", err)
			state = stateErrored
			faultMsg = fmt.Sprintf("step %q: %v", step.Name, err)
			results = append(results, models.StepResult{Name: step.Name, Status: models.StepSkipped})
			continue
		}

		status := models.StepSucceeded
		if outcome == action.OutcomeFailed {
			status = models.StepFailed
			log.Debug("step failed", "step", step.Name, "blocking", blocking)
		}
		results = append(results, models.StepResult{Name: step.Name, Status: status})
		state = state.next(outcome, blocking)
	}

	verdict := models.JobVerdict{
		Job:    job,
		Steps:  results,
		Status: state.verdict(),
		Error:  faultMsg,
	}
	log.Info("job finished", "status", verdict.Status)
	return verdict
}

// resolveParams substitutes the job's dimension values into the step's
// parameters. Run shorthand steps invoke the shell action with a single
// "command" parameter.
func resolveParams(step models.Step, job models.JobConfig) map[string]string {
	params := make(map[string]string, len(step.With)+1)
	for k, v := range step.With {
		params[k] = substitute(v, job)
	}
	if step.Uses == "" && step.Run != "" {
		params["command"] = substitute(step.Run, job)
	}
	return params
}

// substitute replaces matrix references with the job's selected values.
// Unknown references are left intact; the configuration loader rejects
// them before any job is dispatched.
func substitute(s string, job models.JobConfig) string {
	return matrixRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := matrixRef.FindStringSubmatch(ref)[1]
		if v, ok := job.Value(name); ok {
			return v
		}
		return ref
	})
}
