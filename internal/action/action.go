package action

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the logical result of an action invocation. A failed outcome
// means the action ran to completion and reported failure (e.g. the format
// check found unformatted files); it is not an error.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

// String returns a human-readable outcome name
func (o Outcome) String() string {
	if o == OutcomeSucceeded {
		return "succeeded"
	}
	return "failed"
}

// Invoker abstracts the execution of step actions. The engine treats action
// internals as opaque: it only consumes the outcome.
//
// A non-nil error is an infrastructure fault: the action could not be
// carried out at all, so the check it represents was never performed.
type Invoker interface {
	Invoke(ctx context.Context, ref string, params map[string]string) (Outcome, error)
}

// ErrUnsupportedAction indicates the invoker has no implementation for the
// requested action reference
var ErrUnsupportedAction = errors.New("unsupported action reference")

// Fault is an infrastructure fault raised while invoking an action
type Fault struct {
	Ref string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("action %q: %v", f.Ref, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
