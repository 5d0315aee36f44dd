package workflow

import (
	"fmt"
	"strings"
)

// Builder assembles a topology fluently. It satisfies StatusProvider, so a
// configured builder can also be registered directly.
type Builder struct {
	entityType  string
	states      []StateCode
	forward     map[StateCode]FlowStep
	rejections  map[StateCode]StateCode
	completed   StateCode
	transitions map[StateCode]StateCode
	problems    []string
}

// NewBuilder creates a builder for the given entity type
func NewBuilder(entityType string) *Builder {
	return &Builder{
		entityType:  entityType,
		forward:     make(map[StateCode]FlowStep),
		rejections:  make(map[StateCode]StateCode),
		transitions: make(map[StateCode]StateCode),
	}
}

// States declares the full state set. Once declared, references to other
// states fail validation.
func (b *Builder) States(codes ...StateCode) *Builder {
	b.states = append(b.states, codes...)
	return b
}

// Step sets the forward step for a state. A state has at most one.
func (b *Builder) Step(from StateCode, step FlowStep) *Builder {
	if _, exists := b.forward[from]; exists {
		b.problems = append(b.problems, fmt.Sprintf("duplicate forward step for %s", from))
		return b
	}
	b.forward[from] = step
	return b
}

// Permit adds an unconditional forward step
func (b *Builder) Permit(from, next StateCode) *Builder {
	return b.Step(from, NewStep(next))
}

// PermitIf adds a forward step gated by permission
func (b *Builder) PermitIf(from, next StateCode, permission string) *Builder {
	return b.Step(from, NewStep(next, RequiringPermission(permission)))
}

// Reject maps a state to the state reached on rejection
func (b *Builder) Reject(from, to StateCode) *Builder {
	if _, exists := b.rejections[from]; exists {
		b.problems = append(b.problems, fmt.Sprintf("duplicate rejection for %s", from))
		return b
	}
	b.rejections[from] = to
	return b
}

// Complete sets the terminal success state
func (b *Builder) Complete(code StateCode) *Builder {
	b.completed = code
	return b
}

// Transition adds a custom, non-approval transition
func (b *Builder) Transition(from, to StateCode) *Builder {
	if _, exists := b.transitions[from]; exists {
		b.problems = append(b.problems, fmt.Sprintf("duplicate transition for %s", from))
		return b
	}
	b.transitions[from] = to
	return b
}

// Build validates the configuration and returns the topology
func (b *Builder) Build() (*Topology, error) {
	if len(b.problems) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidTopology, b.entityType, strings.Join(b.problems, "; "))
	}
	if len(b.states) > 0 {
		return newTopology(builderDeclarer{b})
	}
	return newTopology(b)
}

// MustBuild is like Build but panics on an invalid topology
func (b *Builder) MustBuild() *Topology {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// EntityType implements StatusProvider
func (b *Builder) EntityType() string { return b.entityType }

// ApprovalFlow implements StatusProvider
func (b *Builder) ApprovalFlow() map[StateCode]FlowStep { return b.forward }

// RejectionStatuses implements StatusProvider
func (b *Builder) RejectionStatuses() map[StateCode]StateCode { return b.rejections }

// CompletedStatus implements StatusProvider
func (b *Builder) CompletedStatus() StateCode { return b.completed }

// StatusTransitions implements StatusProvider
func (b *Builder) StatusTransitions() map[StateCode]StateCode { return b.transitions }

// builderDeclarer exposes declared states only when some were given
type builderDeclarer struct{ *Builder }

func (d builderDeclarer) States() []StateCode { return d.Builder.states }
