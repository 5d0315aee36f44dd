package workflow

// FlowStep is one forward transition: the permission gating it, the state it
// leads to and optional metadata. Steps are immutable once constructed.
type FlowStep struct {
	permission string
	next       StateCode
	metadata   map[string]any
}

// StepOption configures a FlowStep at construction
type StepOption func(*FlowStep)

// RequiringPermission gates the step behind the named permission
func RequiringPermission(permission string) StepOption {
	return func(s *FlowStep) {
		s.permission = permission
	}
}

// WithMetadata attaches arbitrary metadata to the step
func WithMetadata(metadata map[string]any) StepOption {
	return func(s *FlowStep) {
		s.metadata = copyMetadata(metadata)
	}
}

// NewStep creates a step leading to next. Without RequiringPermission the step
// is unconditional.
func NewStep(next StateCode, opts ...StepOption) FlowStep {
	s := FlowStep{next: next}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Permission returns the required permission and whether one is set
func (s FlowStep) Permission() (string, bool) {
	return s.permission, s.permission != ""
}

// Next returns the destination state code
func (s FlowStep) Next() StateCode {
	return s.next
}

// Metadata returns a copy of the step metadata, or nil when none was set
func (s FlowStep) Metadata() map[string]any {
	return copyMetadata(s.metadata)
}

// IsUnconditional returns true if no permission check is needed
func (s FlowStep) IsUnconditional() bool {
	return s.permission == ""
}

// ToMap returns the step as a map, omitting absent fields
func (s FlowStep) ToMap() map[string]any {
	m := map[string]any{"next": string(s.next)}
	if s.permission != "" {
		m["permission"] = s.permission
	}
	if s.metadata != nil {
		m["metadata"] = copyMetadata(s.metadata)
	}
	return m
}

func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
