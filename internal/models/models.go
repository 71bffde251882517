package models

import "time"

// Run represents one pipeline execution triggered by an event
type Run struct {
	RunID      string           `json:"run_id"`
	Pipeline   string           `json:"pipeline"`
	Trigger    TriggerEvent     `json:"trigger"`
	Status     RunStatus        `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Verdict    *PipelineVerdict `json:"verdict,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// RunStatus represents the state of a run
type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunPassed   RunStatus = "passed"
	RunUnstable RunStatus = "unstable"
	RunFailed   RunStatus = "failed"
	RunCanceled RunStatus = "canceled"
)

// TriggerKind identifies the kind of event that starts a run
type TriggerKind string

const (
	TriggerPush        TriggerKind = "push"
	TriggerPullRequest TriggerKind = "pull_request"
)

// TriggerEvent carries the metadata used to decide whether to start a run.
// The engine does not interpret the commit reference beyond recording it.
type TriggerEvent struct {
	Kind   TriggerKind `json:"kind"`
	Branch string      `json:"branch"`
	Commit string      `json:"commit,omitempty"`
}
