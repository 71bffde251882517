package engine

import (
	"github.com/lei/matrix-ci/internal/action"
	"github.com/lei/matrix-ci/internal/models"
)

// jobState is the explicit per-job state machine. A job starts running;
// the only transitions out are driven by recorded step outcomes. failed
// and errored are terminal: once entered, remaining steps are skipped.
type jobState int

const (
	// stateRunning: every step so far succeeded
	stateRunning jobState = iota
	// stateDegraded: an advisory step failed; execution continues
	stateDegraded
	// stateFailed: a blocking step failed
	stateFailed
	// stateErrored: an action invocation faulted
	stateErrored
)

// terminal reports whether no further steps may execute in this state
func (s jobState) terminal() bool {
	return s == stateFailed || s == stateErrored
}

// next returns the state after recording one step outcome
func (s jobState) next(outcome action.Outcome, blocking bool) jobState {
	if s.terminal() {
		return s
	}
	if outcome == action.OutcomeSucceeded {
		return s
	}
	if blocking {
		return stateFailed
	}
	return stateDegraded
}

// verdict maps the final state to the job's terminal status
func (s jobState) verdict() models.JobStatus {
	switch s {
	case stateDegraded:
		return models.JobUnstable
	case stateFailed:
		return models.JobFailed
	case stateErrored:
		return models.JobErrored
	default:
		return models.JobPassed
	}
}
