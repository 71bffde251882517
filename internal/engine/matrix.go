package engine

import (
	"github.com/lei/matrix-ci/internal/models"
)

// ExpandMatrix produces the full cross product of the matrix dimensions as
// an ordered sequence of job configurations. The first dimension iterates
// outermost, each subsequent dimension progressively inner, so the output
// order is deterministic and stable across calls. The input is never
// mutated.
//
// The number of configurations equals the product of the dimension sizes,
// minus any exclusions.
func ExpandMatrix(m models.Matrix) ([]models.JobConfig, error) {
	if len(m.Dimensions) == 0 {
		return nil, models.NewConfigError("matrix declares no dimensions")
	}

	names := make([]string, len(m.Dimensions))
	total := 1
	for i, dim := range m.Dimensions {
		if len(dim.Values) == 0 {
			return nil, models.NewConfigError("dimension %q has no values", dim.Name)
		}
		names[i] = dim.Name
		total *= len(dim.Values)
	}

	// Odometer over the value indices: the last dimension advances fastest
	selection := make([]int, len(m.Dimensions))
	configs := make([]models.JobConfig, 0, total)
	for n := 0; n < total; n++ {
		values := make(map[string]string, len(m.Dimensions))
		for d, dim := range m.Dimensions {
			values[dim.Name] = dim.Values[selection[d]]
		}
		if !excluded(m.Exclude, values) {
			configs = append(configs, models.NewJobConfig(names, values))
		}

		for d := len(m.Dimensions) - 1; d >= 0; d-- {
			selection[d]++
			if selection[d] < len(m.Dimensions[d].Values) {
				break
			}
			selection[d] = 0
		}
	}

	return configs, nil
}

// excluded reports whether a selection matches any exclude entry. An entry
// matches when every one of its key/value pairs matches the selection.
func excluded(exclude []map[string]string, values map[string]string) bool {
	for _, entry := range exclude {
		if len(entry) == 0 {
			continue
		}
		match := true
		for k, v := range entry {
			if values[k] != v {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
