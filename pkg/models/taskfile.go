package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskFile is the on-disk format for predefined task sets.
type TaskFile struct {
	Tasks []TaskDefinition `yaml:"tasks"`
}

// LoadTaskFile reads a YAML task set and validates it: every task needs an
// ID and a description, IDs must be unique, and dependencies must refer to
// tasks in the same file.
func LoadTaskFile(path string) ([]TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	var file TaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("task file %s defines no tasks", path)
	}

	seen := make(map[string]bool, len(file.Tasks))
	for i, task := range file.Tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("task %d has no id", i)
		}
		if task.Description == "" {
			return nil, fmt.Errorf("task %s has no description", task.ID)
		}
		if seen[task.ID] {
			return nil, fmt.Errorf("duplicate task id %s", task.ID)
		}
		seen[task.ID] = true
	}
	for _, task := range file.Tasks {
		for _, dep := range task.DependsOn {
			if !seen[dep] {
				return nil, fmt.Errorf("task %s depends on unknown task %s", task.ID, dep)
			}
		}
	}

	return file.Tasks, nil
}
