package workflow

// StatusProvider declares the workflow topology of one entity type. Every
// approvable type implements it and is registered explicitly at startup.
type StatusProvider interface {
	// EntityType returns the name the topology is registered under
	EntityType() string

	// ApprovalFlow returns the forward step for each state that has one
	ApprovalFlow() map[StateCode]FlowStep

	// RejectionStatuses maps a state to the state reached on rejection
	RejectionStatuses() map[StateCode]StateCode

	// CompletedStatus returns the terminal success state
	CompletedStatus() StateCode

	// StatusTransitions returns non-approval transitions, used only by
	// next-status queries
	StatusTransitions() map[StateCode]StateCode
}

// StateDeclarer is optionally implemented by providers that enumerate their
// states. When present, every state referenced by the topology must be declared.
type StateDeclarer interface {
	States() []StateCode
}
