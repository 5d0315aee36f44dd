package dispatcher

import (
	"context"
	"time"

	"github.com/garyjia/approval-flow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// Observer is told about every handler execution
type Observer interface {
	ObserveHandler(eventType event.Type, handler string, elapsed time.Duration, err error)
}
