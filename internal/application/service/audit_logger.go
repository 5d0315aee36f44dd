package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
)

// AuditLoggerName is the handler name the audit logger subscribes under
const AuditLoggerName = "audit-logger"

// AuditLogger writes one audit entry per transition event
type AuditLogger struct {
	store   port.AuditLogStore
	enabled bool
	logger  Logger
}

// NewAuditLogger creates an audit logger. When enabled is false every handler is a no-op.
func NewAuditLogger(store port.AuditLogStore, enabled bool, logger Logger) *AuditLogger {
	return &AuditLogger{
		store:   store,
		enabled: enabled,
		logger:  logger,
	}
}

// Register subscribes the logger to approval and rejection events
func (a *AuditLogger) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApproved, AuditLoggerName, a.OnApproved)
	d.SubscribeNamed(event.TypeRejected, AuditLoggerName, a.OnRejected)
}

// OnApproved records an approval
func (a *AuditLogger) OnApproved(ctx context.Context, evt *event.Event) error {
	return a.append(ctx, evt, entity.ActionApproved)
}

// OnRejected records a rejection
func (a *AuditLogger) OnRejected(ctx context.Context, evt *event.Event) error {
	return a.append(ctx, evt, entity.ActionRejected)
}

func (a *AuditLogger) append(ctx context.Context, evt *event.Event, action entity.Action) error {
	if !a.enabled {
		return nil
	}

	entry := &entity.AuditLogEntry{
		ID:            uuid.NewString(),
		EntityType:    evt.EntityType,
		EntityID:      evt.EntityID,
		ActorID:       evt.Transition.ActorID,
		Action:        action,
		PreviousState: evt.Transition.PreviousState.String(),
		NewState:      evt.Transition.NewState.String(),
		Comment:       evt.Transition.Comment,
		Metadata:      evt.AuditMetadata(),
		CreatedAt:     evt.Timestamp,
	}

	if err := a.store.Append(ctx, entry); err != nil {
		a.logger.Error("Failed to append audit entry",
			"error", err,
			"event_id", evt.ID,
			"entity", evt.Ref().String(),
			"action", action,
		)
		return fmt.Errorf("append audit entry: %w", err)
	}

	a.logger.Info("Audit entry recorded",
		"audit_id", entry.ID,
		"entity", evt.Ref().String(),
		"action", action,
	)
	return nil
}
