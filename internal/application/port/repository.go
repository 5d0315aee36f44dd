package port

import (
	"context"

	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

// EntityStore is the persistence the workflow controller needs for one or
// more entity types
type EntityStore interface {
	// Read returns the current entity or an error wrapping workflow.ErrEntityNotFound
	Read(ctx context.Context, ref entity.Ref) (*entity.Approvable, error)

	// CompareAndSetState moves the entity to next only if its state still
	// equals expected, writing fields in the same operation. It returns the
	// persisted entity, or an error wrapping workflow.ErrConcurrentModification
	// when the state no longer matches.
	CompareAndSetState(ctx context.Context, ref entity.Ref, expected workflow.State, next workflow.StateCode, fields map[string]string) (*entity.Approvable, error)

	// SupportedFields lists the optional fields the store can write for the type
	SupportedFields(entityType string) []string
}

// ListFilter narrows an entity listing
type ListFilter struct {
	EntityType string
	State      workflow.State
	Limit      int
	Offset     int
}

// EntityRepository is an EntityStore that also owns entity lifecycle
type EntityRepository interface {
	EntityStore
	Create(ctx context.Context, e *entity.Approvable) error
	List(ctx context.Context, filter ListFilter) ([]*entity.Approvable, error)
}

// AuditLogStore defines persistence operations for AuditLogEntry
type AuditLogStore interface {
	// Append stores one entry. Entries are never updated.
	Append(ctx context.Context, entry *entity.AuditLogEntry) error

	// CountByEntityAndAction counts entries for an entity with the given action
	CountByEntityAndAction(ctx context.Context, ref entity.Ref, action entity.Action) (int, error)

	// ListByEntity returns all entries for an entity, newest first
	ListByEntity(ctx context.Context, ref entity.Ref) ([]*entity.AuditLogEntry, error)
}

// TransactionManager runs fn inside a transaction carried by the context
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
