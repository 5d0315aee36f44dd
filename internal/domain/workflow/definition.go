package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the declarative form of a topology, as found in config files.
// Edges are lists rather than maps so that state codes keep their case when
// read through viper.
type Definition struct {
	EntityType  string           `mapstructure:"entity_type" yaml:"entity_type"`
	States      []string         `mapstructure:"states" yaml:"states,omitempty"`
	Steps       []StepDefinition `mapstructure:"steps" yaml:"steps"`
	Rejections  []EdgeDefinition `mapstructure:"rejections" yaml:"rejections,omitempty"`
	Completed   string           `mapstructure:"completed" yaml:"completed"`
	Transitions []EdgeDefinition `mapstructure:"transitions" yaml:"transitions,omitempty"`
}

// StepDefinition declares one forward step
type StepDefinition struct {
	From       string         `mapstructure:"from" yaml:"from"`
	Permission string         `mapstructure:"permission" yaml:"permission,omitempty"`
	Next       string         `mapstructure:"next" yaml:"next"`
	Metadata   map[string]any `mapstructure:"metadata" yaml:"metadata,omitempty"`
}

// EdgeDefinition declares a rejection or custom transition
type EdgeDefinition struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}

// Builder converts the definition into a builder
func (d Definition) Builder() *Builder {
	b := NewBuilder(d.EntityType)
	for _, s := range d.States {
		b.States(StateCode(s))
	}
	for _, s := range d.Steps {
		var opts []StepOption
		if s.Permission != "" {
			opts = append(opts, RequiringPermission(s.Permission))
		}
		if s.Metadata != nil {
			opts = append(opts, WithMetadata(s.Metadata))
		}
		b.Step(StateCode(s.From), NewStep(StateCode(s.Next), opts...))
	}
	for _, r := range d.Rejections {
		b.Reject(StateCode(r.From), StateCode(r.To))
	}
	for _, tr := range d.Transitions {
		b.Transition(StateCode(tr.From), StateCode(tr.To))
	}
	return b.Complete(StateCode(d.Completed))
}

// Topology validates the definition and builds its topology
func (d Definition) Topology() (*Topology, error) {
	return d.Builder().Build()
}

// LoadDefinitionFile reads a single topology definition from a YAML file
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}

	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse definition file %s: %w", path, err)
	}

	return &d, nil
}

// ScaffoldDefinition returns the starter topology written by the scaffolding
// command: DRAFT -> PENDING_APPROVAL -> APPROVED, rejecting to REJECTED
func ScaffoldDefinition(entityType string) Definition {
	return Definition{
		EntityType: entityType,
		States:     []string{"DRAFT", "PENDING_APPROVAL", "APPROVED", "REJECTED"},
		Steps: []StepDefinition{
			{From: "DRAFT", Next: "PENDING_APPROVAL"},
			{From: "PENDING_APPROVAL", Permission: "approve", Next: "APPROVED"},
		},
		Rejections: []EdgeDefinition{
			{From: "PENDING_APPROVAL", To: "REJECTED"},
		},
		Completed: "APPROVED",
	}
}
