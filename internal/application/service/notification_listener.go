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

// NotificationListenerName is the handler name the listener subscribes under
const NotificationListenerName = "notification-listener"

// NotificationListener forwards transition events to a Notifier
type NotificationListener struct {
	notifier port.Notifier
	enabled  bool
	logger   Logger
}

// NewNotificationListener creates a listener. When enabled is false events are dropped.
func NewNotificationListener(notifier port.Notifier, enabled bool, logger Logger) *NotificationListener {
	return &NotificationListener{
		notifier: notifier,
		enabled:  enabled,
		logger:   logger,
	}
}

// Register subscribes the listener to approval and rejection events
func (l *NotificationListener) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApproved, NotificationListenerName, l.Handle)
	d.SubscribeNamed(event.TypeRejected, NotificationListenerName, l.Handle)
}

// Handle builds a notification from the event and delivers it
func (l *NotificationListener) Handle(ctx context.Context, evt *event.Event) error {
	if !l.enabled {
		return nil
	}

	action := entity.ActionApproved
	if evt.Type == event.TypeRejected {
		action = entity.ActionRejected
	}

	n := &entity.Notification{
		ID:            uuid.NewString(),
		EntityType:    evt.EntityType,
		EntityID:      evt.EntityID,
		Action:        action,
		PreviousState: evt.Transition.PreviousState.String(),
		NewState:      evt.Transition.NewState.String(),
		ActorID:       evt.Transition.ActorID,
		Comment:       evt.Transition.Comment,
		CreatedAt:     evt.Timestamp,
	}

	if err := l.notifier.Notify(ctx, n); err != nil {
		l.logger.Error("Failed to deliver notification",
			"error", err,
			"event_id", evt.ID,
			"entity", evt.Ref().String(),
		)
		return fmt.Errorf("notify: %w", err)
	}

	return nil
}
