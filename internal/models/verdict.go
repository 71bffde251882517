package models

// StepStatus is the outcome of one step within one job
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records the outcome of one step execution
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// JobStatus is the terminal status of one job
type JobStatus string

const (
	// JobPassed means every step succeeded
	JobPassed JobStatus = "passed"
	// JobUnstable means only advisory steps failed; the job ran to completion
	JobUnstable JobStatus = "unstable"
	// JobFailed means a blocking step failed; remaining steps were skipped
	JobFailed JobStatus = "failed"
	// JobErrored means an action invocation faulted; the checks after the
	// fault were never performed
	JobErrored JobStatus = "errored"
)

// JobVerdict is the ordered list of step results for one job configuration
// plus its terminal status. Immutable once finalized.
type JobVerdict struct {
	Job    JobConfig    `json:"job"`
	Steps  []StepResult `json:"steps"`
	Status JobStatus    `json:"status"`

	// Error describes the infrastructure fault for errored jobs
	Error string `json:"error,omitempty"`
}

// PipelineStatus is the aggregate status over all jobs of one run
type PipelineStatus string

const (
	PipelinePassed   PipelineStatus = "passed"
	PipelineUnstable PipelineStatus = "unstable"
	PipelineFailed   PipelineStatus = "failed"
)

// PipelineVerdict aggregates the job verdicts for one triggering event.
// Status is failed if any job failed or errored, unstable if any job is
// unstable and none failed, passed otherwise.
type PipelineVerdict struct {
	Jobs   []JobVerdict   `json:"jobs"`
	Status PipelineStatus `json:"status"`
}
