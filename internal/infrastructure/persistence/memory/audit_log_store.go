package memory

import (
	"context"
	"sync"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// AuditLogStore keeps audit entries in memory. It implements port.AuditLogStore.
type AuditLogStore struct {
	mu      sync.RWMutex
	entries []*entity.AuditLogEntry
}

// NewAuditLogStore creates an empty audit log store
func NewAuditLogStore() *AuditLogStore {
	return &AuditLogStore{}
}

// Append stores the entry
func (s *AuditLogStore) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// CountByEntityAndAction counts entries for the entity with the action
func (s *AuditLogStore) CountByEntityAndAction(ctx context.Context, ref entity.Ref, action entity.Action) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.Ref() == ref && e.Action == action {
			n++
		}
	}
	return n, nil
}

// ListByEntity returns the entity's entries, newest first
func (s *AuditLogStore) ListByEntity(ctx context.Context, ref entity.Ref) ([]*entity.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*entity.AuditLogEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Ref() == ref {
			copied := *s.entries[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Len returns the total number of entries
func (s *AuditLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Verify interface compliance
var _ port.AuditLogStore = (*AuditLogStore)(nil)
