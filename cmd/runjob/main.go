// Command runjob executes a single matrix job configuration locally and
// exits 0 when the job passed, 1 when a step failed, and 2 when the job
// errored before its checks could run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lei/matrix-ci/internal/action/localexec"
	"github.com/lei/matrix-ci/internal/config"
	"github.com/lei/matrix-ci/internal/engine"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/pkg/logger"
)

const (
	exitPassed  = 0
	exitFailed  = 1
	exitErrored = 2
)

// selections collects repeated -set dimension=value flags
type selections map[string]string

func (s selections) String() string {
	parts := make([]string, 0, len(s))
	for k, v := range s {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (s selections) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok || name == "" || val == "" {
		return fmt.Errorf("expected dimension=value, got %q", value)
	}
	s[name] = val
	return nil
}

func main() {
	status, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "runjob: %v\n", err)
		os.Exit(exitErrored)
	}
	os.Exit(exitCode(status))
}

// exitCode maps a job's terminal status to the process exit code. An
// unstable job carries a real step failure, so it shares the failed class.
func exitCode(status models.JobStatus) int {
	switch status {
	case models.JobPassed:
		return exitPassed
	case models.JobErrored:
		return exitErrored
	default:
		return exitFailed
	}
}

func run(args []string) (models.JobStatus, error) {
	fs := flag.NewFlagSet("runjob", flag.ContinueOnError)
	pipelineFile := fs.String("pipeline", "configs/pipeline.yaml", "pipeline definition file")
	stepTimeout := fs.Duration("step-timeout", 5*time.Minute, "timeout per step invocation")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	selected := selections{}
	fs.Var(selected, "set", "dimension selection as dimension=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return models.JobErrored, err
	}

	pipeline, err := config.LoadPipeline(*pipelineFile)
	if err != nil {
		return models.JobErrored, err
	}

	job, err := selectJob(pipeline.Matrix, selected)
	if err != nil {
		return models.JobErrored, err
	}

	log := logger.New(*logLevel, "text")
	invoker := localexec.New(localexec.Config{StepTimeout: *stepTimeout}, log)
	executor := engine.NewExecutor(invoker, engine.NewGatePolicy(pipeline.Steps), log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("pipeline %s, job %s\n", pipeline.Name, job.Key())
	verdict := executor.RunJob(ctx, job, pipeline.Steps)

	for _, step := range verdict.Steps {
		fmt.Printf("  %-24s %s\n", step.Name, step.Status)
	}
	fmt.Printf("job %s: %s\n", job.Key(), verdict.Status)
	if verdict.Error != "" {
		fmt.Fprintf(os.Stderr, "runjob: %s\n", verdict.Error)
	}

	return verdict.Status, nil
}

// selectJob resolves the -set selection to one configuration of the
// expanded matrix. The selection must name every dimension and must not
// hit an excluded combination.
func selectJob(matrix models.Matrix, selected selections) (models.JobConfig, error) {
	if len(selected) != len(matrix.Dimensions) {
		names := make([]string, len(matrix.Dimensions))
		for i, d := range matrix.Dimensions {
			names[i] = d.Name
		}
		return models.JobConfig{}, fmt.Errorf("selection must set every dimension (%s)", strings.Join(names, ", "))
	}

	jobs, err := engine.ExpandMatrix(matrix)
	if err != nil {
		return models.JobConfig{}, err
	}

	for _, job := range jobs {
		match := true
		for name, value := range selected {
			if v, ok := job.Value(name); !ok || v != value {
				match = false
				break
			}
		}
		if match {
			return job, nil
		}
	}
	return models.JobConfig{}, fmt.Errorf("selection %s is not a configuration of the matrix", selected.String())
}
