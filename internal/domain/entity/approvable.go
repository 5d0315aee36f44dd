package entity

import (
	"time"

	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

// Ref identifies an entity by its registered type and its ID
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// String returns the ref as type/id
func (r Ref) String() string {
	return r.Type + "/" + r.ID
}

// Approvable is an entity moving through an approval topology
type Approvable struct {
	Ref
	State     workflow.State    `json:"state"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewApprovable creates an entity with the given initial state
func NewApprovable(entityType, id string, state workflow.State) *Approvable {
	now := time.Now()
	return &Approvable{
		Ref:       Ref{Type: entityType, ID: id},
		State:     state,
		Fields:    make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Field returns an optional field value
func (a *Approvable) Field(name string) (string, bool) {
	v, ok := a.Fields[name]
	return v, ok
}

// Clone returns a deep copy of the entity
func (a *Approvable) Clone() *Approvable {
	c := *a
	c.Fields = make(map[string]string, len(a.Fields))
	for k, v := range a.Fields {
		c.Fields[k] = v
	}
	return &c
}

// Actor is the party performing an approval action. An empty ID is anonymous.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// IsAnonymous returns true if the actor has no ID
func (a Actor) IsAnonymous() bool {
	return a.ID == ""
}

// HasRole returns true if the actor holds the role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequestMetadata describes the request an action originated from
type RequestMetadata struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}
