package entity

import (
	"fmt"
	"time"
)

// Notification tells interested parties that an entity changed state
type Notification struct {
	ID            string    `json:"id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Action        Action    `json:"action"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	ActorID       *string   `json:"actor_id,omitempty"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Subject returns a one-line summary suitable for a message title
func (n *Notification) Subject() string {
	return fmt.Sprintf("%s %s/%s: %s -> %s", n.Action, n.EntityType, n.EntityID, n.PreviousState, n.NewState)
}
