package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/lei/matrix-ci/internal/models"
)

// matrixRef matches "${{ matrix.<dimension> }}" references in step parameters
var matrixRef = regexp.MustCompile(`\$\{\{\s*matrix\.([A-Za-z0-9_.-]+)\s*\}\}`)

// LoadPipeline reads and parses a pipeline definition file. Any
// inconsistency is a ConfigError and surfaces here, before a single job is
// dispatched.
func LoadPipeline(path string) (*models.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}

	var p models.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}

	if err := ValidatePipeline(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ValidatePipeline checks a pipeline definition for consistency. All
// violations are ConfigErrors.
func ValidatePipeline(p *models.Pipeline) error {
	if p.Name == "" {
		return models.NewConfigError("pipeline has no name")
	}
	if p.On.Push == nil && p.On.PullRequest == nil {
		return models.NewConfigError("pipeline %q declares no trigger", p.Name)
	}

	if len(p.Matrix.Dimensions) == 0 {
		return models.NewConfigError("pipeline %q declares no matrix dimensions", p.Name)
	}
	declared := make(map[string]map[string]bool, len(p.Matrix.Dimensions))
	for _, dim := range p.Matrix.Dimensions {
		if len(dim.Values) == 0 {
			return models.NewConfigError("dimension %q has no values", dim.Name)
		}
		if _, ok := declared[dim.Name]; ok {
			return models.NewConfigError("dimension %q is declared twice", dim.Name)
		}
		seen := make(map[string]bool, len(dim.Values))
		for _, v := range dim.Values {
			if seen[v] {
				return models.NewConfigError("dimension %q has duplicate value %q", dim.Name, v)
			}
			seen[v] = true
		}
		declared[dim.Name] = seen
	}

	for i, entry := range p.Matrix.Exclude {
		if len(entry) == 0 {
			return models.NewConfigError("matrix exclude entry %d is empty", i)
		}
		for k, v := range entry {
			values, ok := declared[k]
			if !ok {
				return models.NewConfigError("matrix exclude entry %d references unknown dimension %q", i, k)
			}
			if !values[v] {
				return models.NewConfigError("matrix exclude entry %d references unknown value %q of dimension %q", i, v, k)
			}
		}
	}

	if len(p.Steps) == 0 {
		return models.NewConfigError("pipeline %q declares no steps", p.Name)
	}
	stepNames := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Name == "" {
			return models.NewConfigError("pipeline %q has a step without a name", p.Name)
		}
		if stepNames[s.Name] {
			return models.NewConfigError("step %q is declared twice", s.Name)
		}
		stepNames[s.Name] = true

		if s.Uses == "" && s.Run == "" {
			return models.NewConfigError("step %q declares neither uses nor run", s.Name)
		}
		if s.Uses != "" && s.Run != "" {
			return models.NewConfigError("step %q declares both uses and run", s.Name)
		}

		for param, value := range s.With {
			if err := checkMatrixRefs(value, declared, s.Name, param); err != nil {
				return err
			}
		}
		if err := checkMatrixRefs(s.Run, declared, s.Name, "run"); err != nil {
			return err
		}
	}

	return nil
}

// checkMatrixRefs rejects matrix references to undeclared dimensions
func checkMatrixRefs(value string, declared map[string]map[string]bool, step, param string) error {
	for _, match := range matrixRef.FindAllStringSubmatch(value, -1) {
		if _, ok := declared[match[1]]; !ok {
			return models.NewConfigError(
				"step %q parameter %q references unknown dimension %q", step, param, match[1])
		}
	}
	return nil
}
