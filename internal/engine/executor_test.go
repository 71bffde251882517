package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lei/matrix-ci/internal/action"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/pkg/logger"
)

// fakeInvoker records invocations and delegates outcomes to a script
type fakeInvoker struct {
	mu      sync.Mutex
	invoked []invocation
	fn      func(ref string, params map[string]string) (action.Outcome, error)
}

type invocation struct {
	ref    string
	params map[string]string
}

func (f *fakeInvoker) Invoke(ctx context.Context, ref string, params map[string]string) (action.Outcome, error) {
	f.mu.Lock()
	f.invoked = append(f.invoked, invocation{ref: ref, params: params})
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ref, params)
	}
	return action.OutcomeSucceeded, nil
}

func (f *fakeInvoker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invoked)
}

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func testJob() models.JobConfig {
	return models.NewJobConfig(
		[]string{"os", "python-version"},
		map[string]string{"os": "ubuntu-latest", "python-version": "3.10"},
	)
}

func threeSteps() []models.Step {
	return []models.Step{
		{Name: "first", Uses: "first"},
		{Name: "second", Uses: "second"},
		{Name: "third", Uses: "third"},
	}
}

func newTestExecutor(inv action.Invoker, steps []models.Step) *Executor {
	return NewExecutor(inv, NewGatePolicy(steps), testLogger())
}

func stepStatuses(v models.JobVerdict) []models.StepStatus {
	out := make([]models.StepStatus, len(v.Steps))
	for i, s := range v.Steps {
		out[i] = s.Status
	}
	return out
}

func TestExecutor_AllStepsSucceed(t *testing.T) {
	inv := &fakeInvoker{}
	steps := threeSteps()

	verdict := newTestExecutor(inv, steps).RunJob(context.Background(), testJob(), steps)

	assert.Equal(t, models.JobPassed, verdict.Status)
	assert.Equal(t, []models.StepStatus{
		models.StepSucceeded, models.StepSucceeded, models.StepSucceeded,
	}, stepStatuses(verdict))
	assert.Equal(t, 3, inv.count())
}

func TestExecutor_BlockingFailureSkipsRemainder(t *testing.T) {
	inv := &fakeInvoker{fn: func(ref string, _ map[string]string) (action.Outcome, error) {
		if ref == "second" {
			return action.OutcomeFailed, nil
		}
		return action.OutcomeSucceeded, nil
	}}
	steps := threeSteps()

	verdict := newTestExecutor(inv, steps).RunJob(context.Background(), testJob(), steps)

	assert.Equal(t, models.JobFailed, verdict.Status)
	assert.Equal(t, []models.StepStatus{
		models.StepSucceeded, models.StepFailed, models.StepSkipped,
	}, stepStatuses(verdict))
	// The third step is never invoked
	assert.Equal(t, 2, inv.count())
}

func TestExecutor_AdvisoryFailureContinues(t *testing.T) {
	inv := &fakeInvoker{fn: func(ref string, _ map[string]string) (action.Outcome, error) {
		if ref == "second" {
			return action.OutcomeFailed, nil
		}
		return action.OutcomeSucceeded, nil
	}}
	steps := threeSteps()
	steps[1].ContinueOnError = true

	verdict := newTestExecutor(inv, steps).RunJob(context.Background(), testJob(), steps)

	// Advisory-only failures do not fail the job; they mark it unstable
	assert.Equal(t, models.JobUnstable, verdict.Status)
	assert.Equal(t, []models.StepStatus{
		models.StepSucceeded, models.StepFailed, models.StepSucceeded,
	}, stepStatuses(verdict))
	assert.Equal(t, 3, inv.count())
}

func TestExecutor_AdvisoryThenBlockingFailure(t *testing.T) {
	inv := &fakeInvoker{fn: func(ref string, _ map[string]string) (action.Outcome, error) {
		return action.OutcomeFailed, nil
	}}
	steps := threeSteps()
	steps[0].ContinueOnError = true

	verdict := newTestExecutor(inv, steps).RunJob(context.Background(), testJob(), steps)

	// The blocking failure wins over the earlier advisory one
	assert.Equal(t, models.JobFailed, verdict.Status)
	assert.Equal(t, []models.StepStatus{
		models.StepFailed, models.StepFailed, models.StepSkipped,
	}, stepStatuses(verdict))
}

func TestExecutor_InfrastructureFault(t *testing.T) {
	inv := &fakeInvoker{fn: func(ref string, _ map[string]string) (action.Outcome, error) {
		if ref == "second" {
			return action.OutcomeFailed, &action.Fault{Ref: ref, Err: errors.New("runner unavailable")}
		}
		return action.OutcomeSucceeded, nil
	}}
	steps := threeSteps()

	verdict := newTestExecutor(inv, steps).RunJob(context.Background(), testJob(), steps)

	// The check was never performed: errored, not failed
	assert.Equal(t, models.JobErrored, verdict.Status)
	assert.Equal(t, []models.StepStatus{
		models.StepSucceeded, models.StepSkipped, models.StepSkipped,
	}, stepStatuses(verdict))
	assert.Contains(t, verdict.Error, "second")
	assert.Contains(t, verdict.Error, "runner unavailable")
	assert.Equal(t, 2, inv.count())
}

func TestExecutor_CanceledContext(t *testing.T) {
	inv := &fakeInvoker{}
	steps := threeSteps()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	verdict := newTestExecutor(inv, steps).RunJob(ctx, testJob(), steps)

	assert.Equal(t, models.JobErrored, verdict.Status)
	assert.Equal(t, []models.StepStatus{
		models.StepSkipped, models.StepSkipped, models.StepSkipped,
	}, stepStatuses(verdict))
	assert.Equal(t, 0, inv.count())
}

func TestExecutor_SubstitutesMatrixValues(t *testing.T) {
	inv := &fakeInvoker{}
	steps := []models.Step{
		{Name: "setup-python", Uses: "setup-python", With: map[string]string{
			"python-version": "${{ matrix.python-version }}",
			"cache":          "pip",
		}},
		{Name: "report", Run: "echo ${{ matrix.os }}/${{matrix.python-version}}"},
	}

	verdict := newTestExecutor(inv, steps).RunJob(context.Background(), testJob(), steps)
	require.Equal(t, models.JobPassed, verdict.Status)

	require.Equal(t, 2, inv.count())
	assert.Equal(t, "setup-python", inv.invoked[0].ref)
	assert.Equal(t, map[string]string{
		"python-version": "3.10",
		"cache":          "pip",
	}, inv.invoked[0].params)

	assert.Equal(t, models.RunActionRef, inv.invoked[1].ref)
	assert.Equal(t, "echo ubuntu-latest/3.10", inv.invoked[1].params["command"])
}
