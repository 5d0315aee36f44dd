package port

import (
	"context"

	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// CapabilityChecker decides whether an actor holds a permission on an entity
type CapabilityChecker interface {
	Can(ctx context.Context, actor entity.Actor, permission string, e *entity.Approvable) bool
}

// CapabilityCheckerFunc adapts a function to CapabilityChecker
type CapabilityCheckerFunc func(ctx context.Context, actor entity.Actor, permission string, e *entity.Approvable) bool

// Can calls f
func (f CapabilityCheckerFunc) Can(ctx context.Context, actor entity.Actor, permission string, e *entity.Approvable) bool {
	return f(ctx, actor, permission, e)
}

// Notifier delivers transition notifications
type Notifier interface {
	Notify(ctx context.Context, n *entity.Notification) error
}
