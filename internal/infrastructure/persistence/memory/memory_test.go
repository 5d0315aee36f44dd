package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

func TestApprovableStore_CompareAndSetState(t *testing.T) {
	ctx := context.Background()
	store := NewApprovableStore(entity.FieldApprovalComment)
	e := entity.NewApprovable("document", "doc-1", workflow.StateOf("PENDING"))
	require.NoError(t, store.Create(ctx, e))

	updated, err := store.CompareAndSetState(ctx, e.Ref, workflow.StateOf("PENDING"), "APPROVED",
		map[string]string{entity.FieldApprovalComment: "ok"})
	require.NoError(t, err)
	assert.True(t, updated.State.Is("APPROVED"))
	assert.Equal(t, "ok", updated.Fields[entity.FieldApprovalComment])

	_, err = store.CompareAndSetState(ctx, e.Ref, workflow.StateOf("PENDING"), "APPROVED", nil)
	assert.True(t, errors.Is(err, workflow.ErrConcurrentModification))

	_, err = store.CompareAndSetState(ctx, entity.Ref{Type: "document", ID: "missing"}, workflow.NoState, "APPROVED", nil)
	assert.True(t, errors.Is(err, workflow.ErrEntityNotFound))
}

func TestApprovableStore_ConcurrentCASHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewApprovableStore()
	e := entity.NewApprovable("document", "doc-1", workflow.StateOf("PENDING"))
	require.NoError(t, store.Create(ctx, e))

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CompareAndSetState(ctx, e.Ref, workflow.StateOf("PENDING"), "APPROVED", nil)
			if err == nil {
				wins.Add(1)
			} else if errors.Is(err, workflow.ErrConcurrentModification) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), conflicts.Load())
}

func TestApprovableStore_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewApprovableStore()
	require.NoError(t, store.Create(ctx, entity.NewApprovable("document", "doc-1", workflow.StateOf("DRAFT"))))

	got, err := store.Read(ctx, entity.Ref{Type: "document", ID: "doc-1"})
	require.NoError(t, err)
	got.State = workflow.StateOf("APPROVED")

	again, err := store.Read(ctx, got.Ref)
	require.NoError(t, err)
	assert.True(t, again.State.Is("DRAFT"))
}

func TestApprovableStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewApprovableStore()
	require.NoError(t, store.Create(ctx, entity.NewApprovable("document", "a", workflow.StateOf("DRAFT"))))
	require.NoError(t, store.Create(ctx, entity.NewApprovable("document", "b", workflow.StateOf("PENDING"))))
	require.NoError(t, store.Create(ctx, entity.NewApprovable("invoice", "c", workflow.StateOf("DRAFT"))))

	docs, err := store.List(ctx, port.ListFilter{EntityType: "document"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	drafts, err := store.List(ctx, port.ListFilter{State: workflow.StateOf("DRAFT")})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	page, err := store.List(ctx, port.ListFilter{Limit: 1, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, page)

	assert.ErrorIs(t, store.Create(ctx, entity.NewApprovable("document", "a", workflow.NoState)), workflow.ErrEntityExists)
}

func TestAuditLogStore(t *testing.T) {
	ctx := context.Background()
	store := NewAuditLogStore()
	ref := entity.Ref{Type: "document", ID: "doc-1"}

	for i, action := range []entity.Action{entity.ActionApproved, entity.ActionRejected, entity.ActionApproved} {
		require.NoError(t, store.Append(ctx, &entity.AuditLogEntry{
			ID:         string(rune('a' + i)),
			EntityType: ref.Type,
			EntityID:   ref.ID,
			Action:     action,
		}))
	}
	require.NoError(t, store.Append(ctx, &entity.AuditLogEntry{ID: "other", EntityType: "document", EntityID: "doc-2", Action: entity.ActionApproved}))

	approvals, err := store.CountByEntityAndAction(ctx, ref, entity.ActionApproved)
	require.NoError(t, err)
	assert.Equal(t, 2, approvals)

	entries, err := store.ListByEntity(ctx, ref)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "a", entries[2].ID)
	assert.Equal(t, 4, store.Len())
}
