package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

// Transition describes a persisted state change
type Transition struct {
	PreviousState workflow.StateCode     `json:"previous_state"`
	NewState      workflow.StateCode     `json:"new_state"`
	Comment       *string                `json:"comment"`
	ActorID       *string                `json:"actor_id"`
	Request       entity.RequestMetadata `json:"request"`
}

// Event represents a domain event
type Event struct {
	ID            string     `json:"id"`
	Type          Type       `json:"type"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	Transition    Transition `json:"transition"`
	Timestamp     time.Time  `json:"timestamp"`
	CorrelationID string     `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, ref entity.Ref, transition Transition) *Event {
	return NewEventWithCorrelation(eventType, ref, transition, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, ref entity.Ref, transition Transition, correlationID string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		EntityType:    ref.Type,
		EntityID:      ref.ID,
		Transition:    transition,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// Ref returns the ref of the entity the event is about
func (e *Event) Ref() entity.Ref {
	return entity.Ref{Type: e.EntityType, ID: e.EntityID}
}

// NewTransition builds a transition payload. Empty comment and anonymous actors become nil.
func NewTransition(from, to workflow.StateCode, comment string, actor entity.Actor, meta entity.RequestMetadata) Transition {
	return Transition{
		PreviousState: from,
		NewState:      to,
		Comment:       optional(comment),
		ActorID:       optional(actor.ID),
		Request:       meta,
	}
}

// AuditMetadata returns the metadata recorded with the audit entry for this event
func (e *Event) AuditMetadata() map[string]any {
	return map[string]any{
		entity.MetadataUserAgent: e.Transition.Request.UserAgent,
		entity.MetadataIPAddress: e.Transition.Request.IPAddress,
		entity.MetadataTimestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
