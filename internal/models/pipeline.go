package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline is a fully parsed pipeline definition: what triggers a run,
// the matrix of job configurations, and the ordered step list shared by
// every job.
type Pipeline struct {
	Name   string   `yaml:"name" json:"name"`
	On     Triggers `yaml:"on" json:"on"`
	Matrix Matrix   `yaml:"matrix" json:"matrix"`
	Steps  []Step   `yaml:"steps" json:"steps"`
}

// Triggers declares which events start a run
type Triggers struct {
	Push        *PushTrigger        `yaml:"push,omitempty" json:"push,omitempty"`
	PullRequest *PullRequestTrigger `yaml:"pull_request,omitempty" json:"pull_request,omitempty"`
}

// PushTrigger restricts push-triggered runs to the listed branches.
// An empty branch list means any branch.
type PushTrigger struct {
	Branches []string `yaml:"branches,omitempty" json:"branches,omitempty"`
}

// PullRequestTrigger enables runs for pull request events
type PullRequestTrigger struct{}

// Dimension is a named axis of variation with an ordered set of values
type Dimension struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Matrix is the ordered list of dimensions a pipeline varies over, plus
// optional exclusions removed from the cross product. Dimension order
// follows declaration order in the definition file.
type Matrix struct {
	Dimensions []Dimension         `json:"dimensions"`
	Exclude    []map[string]string `json:"exclude,omitempty"`
}

// UnmarshalYAML parses the matrix mapping while preserving the declaration
// order of its dimensions, which a plain map would lose.
func (m *Matrix) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("matrix must be a mapping")
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		if keyNode.Value == "exclude" {
			if err := valNode.Decode(&m.Exclude); err != nil {
				return fmt.Errorf("parse matrix exclude: %w", err)
			}
			continue
		}

		if valNode.Kind != yaml.SequenceNode {
			return fmt.Errorf("matrix dimension %q must be a sequence", keyNode.Value)
		}
		values := make([]string, 0, len(valNode.Content))
		for _, item := range valNode.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("matrix dimension %q has a non-scalar value", keyNode.Value)
			}
			values = append(values, item.Value)
		}
		m.Dimensions = append(m.Dimensions, Dimension{Name: keyNode.Value, Values: values})
	}
	return nil
}

// Step is one ordered unit of work within every job. Exactly one of Uses
// (an opaque action reference) or Run (shorthand for the shell action) must
// be set. Parameters in With and the Run command may reference the job's
// selected dimension values as "${{ matrix.<name> }}".
type Step struct {
	Name string            `yaml:"name" json:"name"`
	Uses string            `yaml:"uses,omitempty" json:"uses,omitempty"`
	Run  string            `yaml:"run,omitempty" json:"run,omitempty"`
	With map[string]string `yaml:"with,omitempty" json:"with,omitempty"`

	// ContinueOnError marks the step advisory: its failure is recorded but
	// does not stop the job. Steps are blocking by default.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
}

// RunActionRef is the action reference used for Run shorthand steps
const RunActionRef = "run"

// ActionRef returns the action reference this step invokes
func (s Step) ActionRef() string {
	if s.Uses != "" {
		return s.Uses
	}
	return RunActionRef
}

// JobConfig is one point in the matrix cross product: an immutable
// selection of one value per dimension. Identity is the full value tuple.
type JobConfig struct {
	names  []string
	values map[string]string
}

// NewJobConfig builds a JobConfig from a dimension order and a selection.
// Both inputs are copied; the result never aliases caller state.
func NewJobConfig(names []string, values map[string]string) JobConfig {
	c := JobConfig{
		names:  make([]string, len(names)),
		values: make(map[string]string, len(values)),
	}
	copy(c.names, names)
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Value returns the selected value for a dimension
func (c JobConfig) Value(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Values returns a copy of the full selection
func (c JobConfig) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Key renders the canonical identity of the config in dimension order,
// e.g. "os=ubuntu-latest,python-version=3.10".
func (c JobConfig) Key() string {
	names := c.names
	if len(names) == 0 && len(c.values) > 0 {
		names = make([]string, 0, len(c.values))
		for k := range c.values {
			names = append(names, k)
		}
		sort.Strings(names)
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+"="+c.values[n])
	}
	return strings.Join(parts, ",")
}

// MarshalJSON renders the selection as a plain object
func (c JobConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.values)
}
