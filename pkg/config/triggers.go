// Package config provides configuration file loading for the worker.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TriggerBinding binds one trigger source to a workflow, declared in the
// worker's triggers.yaml. Bindings supplement the trigger nodes stored on the
// workflows themselves.
type TriggerBinding struct {
	Type          string         `yaml:"type"`
	Name          string         `yaml:"name"`
	WorkflowID    string         `yaml:"workflow_id"`
	Configuration map[string]any `yaml:"configuration"`
}

// TriggersFile is the structure of the worker triggers file.
type TriggersFile struct {
	Triggers []TriggerBinding `yaml:"triggers"`
}

// LoadTriggers reads trigger bindings from a YAML file.
func LoadTriggers(path string) ([]TriggerBinding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read triggers file %s: %w", path, err)
	}

	var file TriggersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse triggers file %s: %w", path, err)
	}

	for i, binding := range file.Triggers {
		if err := validateBinding(binding); err != nil {
			return nil, fmt.Errorf("invalid trigger binding %d: %w", i, err)
		}
	}

	return file.Triggers, nil
}

func validateBinding(binding TriggerBinding) error {
	if binding.Type == "" {
		return errors.New("trigger type is required")
	}

	if binding.WorkflowID == "" {
		return errors.New("workflow_id is required")
	}

	return nil
}
