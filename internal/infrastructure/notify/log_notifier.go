// Package notify delivers transition notifications.
package notify

import (
	"context"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"go.uber.org/zap"
)

// LogNotifier writes each notification to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.Notifier
func (n *LogNotifier) Notify(ctx context.Context, notification *entity.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("notification_id", notification.ID),
		zap.String("entity_type", notification.EntityType),
		zap.String("entity_id", notification.EntityID),
		zap.String("action", notification.Action.String()),
		zap.String("previous_status", notification.PreviousState),
		zap.String("new_status", notification.NewState),
	}
	if notification.ActorID != nil {
		fields = append(fields, zap.String("actor_id", *notification.ActorID))
	}
	if notification.Comment != nil {
		fields = append(fields, zap.String("comment", *notification.Comment))
	}

	n.logger.Info(notification.Subject(), fields...)
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
