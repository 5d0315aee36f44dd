package authz

import "strings"

// Assignment gives an actor its roles
type Assignment struct {
	ActorID string   `mapstructure:"actor_id" yaml:"actor_id"`
	Roles   []string `mapstructure:"roles" yaml:"roles"`
}

// Directory looks up an actor's roles from configured assignments
type Directory struct {
	roles map[string][]string
}

// NewDirectory builds a directory. Repeated actors have their roles merged.
func NewDirectory(assignments []Assignment) *Directory {
	d := &Directory{roles: make(map[string][]string)}
	for _, a := range assignments {
		id := strings.TrimSpace(a.ActorID)
		if id == "" {
			continue
		}
		d.roles[id] = append(d.roles[id], a.Roles...)
	}
	return d
}

// Roles returns a copy of the actor's roles, or nil for an unknown actor
func (d *Directory) Roles(actorID string) []string {
	roles, ok := d.roles[actorID]
	if !ok {
		return nil
	}
	return append([]string(nil), roles...)
}
