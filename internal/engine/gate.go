package engine

import (
	"github.com/lei/matrix-ci/internal/models"
)

// GatePolicy answers whether a step is blocking. It is total over the
// declared step set; querying an undeclared step is a ConfigError.
type GatePolicy struct {
	blocking map[string]bool
}

// NewGatePolicy builds the policy from the pipeline's step list. Steps are
// blocking unless marked continue_on_error.
func NewGatePolicy(steps []models.Step) *GatePolicy {
	blocking := make(map[string]bool, len(steps))
	for _, s := range steps {
		blocking[s.Name] = !s.ContinueOnError
	}
	return &GatePolicy{blocking: blocking}
}

// IsBlocking reports whether a failure of the named step must fail the job
// and skip its remaining steps
func (g *GatePolicy) IsBlocking(stepName string) (bool, error) {
	b, ok := g.blocking[stepName]
	if !ok {
		return false, models.NewConfigError("step %q is not declared in the pipeline", stepName)
	}
	return b, nil
}
