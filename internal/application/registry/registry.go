package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

// Registration binds an entity type's topology to the store that persists it
type Registration struct {
	Topology *workflow.Topology
	Store    port.EntityStore
	fields   map[string]bool
}

// EntityType returns the registered entity type
func (r *Registration) EntityType() string {
	return r.Topology.EntityType()
}

// SupportsField reports whether the store can write the optional field.
// The answer is fixed at registration time.
func (r *Registration) SupportsField(name string) bool {
	return r.fields[name]
}

// Registry holds one registration per entity type
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Registration),
	}
}

// Register validates the provider's topology and binds it to store
func (r *Registry) Register(provider workflow.StatusProvider, store port.EntityStore) (*Registration, error) {
	topology, err := workflow.NewTopology(provider)
	if err != nil {
		return nil, err
	}
	return r.RegisterTopology(topology, store)
}

// RegisterTopology binds an already built topology to store
func (r *Registry) RegisterTopology(topology *workflow.Topology, store port.EntityStore) (*Registration, error) {
	if topology == nil {
		return nil, fmt.Errorf("%w: topology is nil", workflow.ErrInvalidTopology)
	}
	if store == nil {
		return nil, fmt.Errorf("entity type %s: store is required", topology.EntityType())
	}

	fields := make(map[string]bool)
	for _, f := range store.SupportedFields(topology.EntityType()) {
		fields[f] = true
	}

	reg := &Registration{
		Topology: topology,
		Store:    store,
		fields:   fields,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[topology.EntityType()]; exists {
		return nil, fmt.Errorf("entity type %s is already registered", topology.EntityType())
	}
	r.entries[topology.EntityType()] = reg

	return reg, nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(provider workflow.StatusProvider, store port.EntityStore) *Registration {
	reg, err := r.Register(provider, store)
	if err != nil {
		panic(err)
	}
	return reg
}

// Lookup returns the registration for an entity type
func (r *Registry) Lookup(entityType string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownEntityType, entityType)
	}
	return reg, nil
}

// Types returns the registered entity types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
