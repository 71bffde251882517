// Package localexec implements the action invoker for local runs by
// spawning shell commands on the host.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/lei/matrix-ci/internal/action"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/pkg/logger"
)

// Config holds settings for the local invoker
type Config struct {
	// StepTimeout bounds each command invocation. Zero means no timeout.
	StepTimeout time.Duration

	// WorkDir is the working directory for spawned commands. Empty means
	// the current directory.
	WorkDir string
}

// Invoker runs actions on the local host. The "run" action executes its
// command parameter through the shell; environment actions like checkout
// are no-ops because a local run already has the tree and interpreter in
// place. Unknown references are infrastructure faults.
type Invoker struct {
	cfg    Config
	logger *logger.Logger
}

// New creates a local invoker
func New(cfg Config, log *logger.Logger) *Invoker {
	return &Invoker{cfg: cfg, logger: log}
}

// Invoke executes one action and reports its logical outcome
func (i *Invoker) Invoke(ctx context.Context, ref string, params map[string]string) (action.Outcome, error) {
	switch ref {
	case models.RunActionRef:
		return i.runCommand(ctx, params)
	case "checkout", "setup-python":
		// Already satisfied by the local environment
		i.logger.Debug("action is a local no-op", "ref", ref)
		return action.OutcomeSucceeded, nil
	default:
		return action.OutcomeFailed, &action.Fault{Ref: ref, Err: action.ErrUnsupportedAction}
	}
}

func (i *Invoker) runCommand(ctx context.Context, params map[string]string) (action.Outcome, error) {
	command := params["command"]
	if command == "" {
		return action.OutcomeFailed, &action.Fault{Ref: models.RunActionRef, Err: errors.New("missing command parameter")}
	}

	if i.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.StepTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = i.cfg.WorkDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		i.logger.Debug("command succeeded", "command", command)
		return action.OutcomeSucceeded, nil
	}

	// A deadline or cancellation means the command never ran to completion
	if ctxErr := ctx.Err(); ctxErr != nil {
		return action.OutcomeFailed, &action.Fault{Ref: models.RunActionRef, Err: fmt.Errorf("command interrupted: %w", ctxErr)}
	}

	// Non-zero exit is a logical failure; anything else (shell missing,
	// fork failure) means the check was never performed
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		i.logger.Debug("command failed",
			"command", command,
			"exit_code", exitErr.ExitCode(),
			"output_bytes", out.Len())
		return action.OutcomeFailed, nil
	}
	return action.OutcomeFailed, &action.Fault{Ref: models.RunActionRef, Err: err}
}
