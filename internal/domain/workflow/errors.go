package workflow

import "errors"

var (
	// ErrInvalidTopology is returned when a workflow topology is malformed.
	// It is raised at registration, never during a transition.
	ErrInvalidTopology = errors.New("invalid workflow topology")

	// ErrUnauthorized is returned when the actor lacks the permission for the
	// current step, or the entity has no active step
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConcurrentModification is returned when the entity state changed
	// between the check and the write
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrPersistenceFailed wraps store-level write errors
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrMissingCapability is returned when an operation needs a collaborator
	// that was not wired, e.g. approval stats without an audit history store
	ErrMissingCapability = errors.New("missing capability")

	// ErrUnknownEntityType is returned for entity types with no registered topology
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrEntityNotFound is returned by stores when the entity does not exist
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists is returned by stores when creating a duplicate entity
	ErrEntityExists = errors.New("entity already exists")
)
