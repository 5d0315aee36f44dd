package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

// ApprovableStore keeps entities in memory. It implements port.EntityRepository.
type ApprovableStore struct {
	mu       sync.Mutex
	entities map[entity.Ref]*entity.Approvable
	fields   []string
}

// NewApprovableStore creates an empty store that accepts the given optional fields
func NewApprovableStore(supportedFields ...string) *ApprovableStore {
	return &ApprovableStore{
		entities: make(map[entity.Ref]*entity.Approvable),
		fields:   supportedFields,
	}
}

// Create stores a copy of e
func (s *ApprovableStore) Create(ctx context.Context, e *entity.Approvable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.Ref]; exists {
		return fmt.Errorf("%w: %s", workflow.ErrEntityExists, e.Ref)
	}

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.entities[e.Ref] = e.Clone()
	return nil
}

// Read returns a copy of the stored entity
func (s *ApprovableStore) Read(ctx context.Context, ref entity.Ref) (*entity.Approvable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrEntityNotFound, ref)
	}
	return e.Clone(), nil
}

// CompareAndSetState holds the lock across the comparison and the write
func (s *ApprovableStore) CompareAndSetState(ctx context.Context, ref entity.Ref, expected workflow.State, next workflow.StateCode, fields map[string]string) (*entity.Approvable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrEntityNotFound, ref)
	}
	if e.State != expected {
		return nil, fmt.Errorf("%w: %s expected %q, found %q", workflow.ErrConcurrentModification, ref, expected, e.State)
	}

	e.State = workflow.StateOf(next)
	for k, v := range fields {
		e.Fields[k] = v
	}
	e.UpdatedAt = time.Now()

	return e.Clone(), nil
}

// SupportedFields returns the fields given at construction for every entity type
func (s *ApprovableStore) SupportedFields(entityType string) []string {
	return append([]string(nil), s.fields...)
}

// List returns entities matching the filter ordered by creation time
func (s *ApprovableStore) List(ctx context.Context, filter port.ListFilter) ([]*entity.Approvable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.Approvable
	for _, e := range s.entities {
		if filter.EntityType != "" && e.Type != filter.EntityType {
			continue
		}
		if filter.State.IsSet() && e.State != filter.State {
			continue
		}
		out = append(out, e.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Ref.String() < out[j].Ref.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*entity.Approvable{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Verify interface compliance
var _ port.EntityRepository = (*ApprovableStore)(nil)
