package workflow

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PlanDefinition is the serializable view of a Plan, used for dry runs.
type PlanDefinition struct {
	// Name is the workflow name
	Name string `json:"name" yaml:"name"`
	// Tasks lists the tasks in execution order
	Tasks []TaskDefinition `json:"tasks" yaml:"tasks"`
}

// TaskDefinition is the serializable view of a Task.
type TaskDefinition struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Metadata    Metadata `json:"metadata" yaml:"metadata"`
	CanUndo     bool     `json:"can_undo" yaml:"can_undo"`
	Controller  bool     `json:"controller,omitempty" yaml:"controller,omitempty"`
}

// Definition describes the plan in execution order.
func (p *Plan[C, S]) Definition(name string) *PlanDefinition {
	def := &PlanDefinition{
		Name:  name,
		Tasks: make([]TaskDefinition, 0, len(p.tasks)),
	}
	for _, t := range p.tasks {
		def.Tasks = append(def.Tasks, TaskDefinition{
			ID:          t.id,
			Description: t.description,
			DependsOn:   t.Dependencies(),
			Metadata:    t.Metadata(),
			CanUndo:     t.CanUndo(),
			Controller:  t.IsController(),
		})
	}
	return def
}

// ToJSON converts a PlanDefinition to JSON string
func (d *PlanDefinition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML converts a PlanDefinition to YAML string
func (d *PlanDefinition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}

// PlanFromJSON parses a PlanDefinition, e.g. to diff two dry runs.
func PlanFromJSON(jsonStr string) (*PlanDefinition, error) {
	var def PlanDefinition
	if err := json.Unmarshal([]byte(jsonStr), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal from JSON: %w", err)
	}
	return &def, nil
}

// PlanFromYAML parses a PlanDefinition from YAML.
func PlanFromYAML(yamlStr string) (*PlanDefinition, error) {
	var def PlanDefinition
	if err := yaml.Unmarshal([]byte(yamlStr), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}
	return &def, nil
}

// IDs returns the task ids in order.
func (d *PlanDefinition) IDs() []string {
	out := make([]string, len(d.Tasks))
	for i, t := range d.Tasks {
		out[i] = t.ID
	}
	return out
}
