package entity

import "time"

// Action is the kind of transition recorded in the audit log
type Action string

const (
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is one of the defined constants
func (a Action) IsValid() bool {
	switch a {
	case ActionApproved, ActionRejected:
		return true
	default:
		return false
	}
}

// Optional entity fields written alongside a transition when the store supports them
const (
	FieldApprovalComment = "approval_comment"
	FieldRejectionNote   = "rejection_note"
)

// Audit metadata keys
const (
	MetadataUserAgent = "user_agent"
	MetadataIPAddress = "ip_address"
	MetadataTimestamp = "timestamp"
)

// AuditLogEntry is one immutable record of a transition
type AuditLogEntry struct {
	ID            string         `json:"id"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	ActorID       *string        `json:"actor_id"`
	Action        Action         `json:"action"`
	PreviousState string         `json:"previous_state"`
	NewState      string         `json:"new_state"`
	Comment       *string        `json:"comment"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Ref returns the ref of the audited entity
func (e *AuditLogEntry) Ref() Ref {
	return Ref{Type: e.EntityType, ID: e.EntityID}
}
