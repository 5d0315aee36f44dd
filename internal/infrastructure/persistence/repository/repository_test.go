package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-flow/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "approvals.db"),
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Up(ctx))
	return sqlite.NewDB(db.DB, zap.NewNop())
}

func newApprovableRepo(t *testing.T) *ApprovableRepository {
	return NewApprovableRepository(openTestDB(t), map[string][]string{
		"document": {entity.FieldApprovalComment, entity.FieldRejectionNote},
	}, zap.NewNop())
}

func TestApprovableRepository_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	repo := newApprovableRepo(t)

	e := entity.NewApprovable("document", "doc-1", workflow.NoState)
	e.Fields["title"] = "Q3 budget"
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.Read(ctx, e.Ref)
	require.NoError(t, err)
	assert.Equal(t, e.Ref, got.Ref)
	assert.False(t, got.State.IsSet())
	assert.Equal(t, "Q3 budget", got.Fields["title"])
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.Read(ctx, entity.Ref{Type: "document", ID: "missing"})
	assert.ErrorIs(t, err, workflow.ErrEntityNotFound)
}

func TestApprovableRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newApprovableRepo(t)

	require.NoError(t, repo.Create(ctx, entity.NewApprovable("document", "doc-1", workflow.NoState)))
	err := repo.Create(ctx, entity.NewApprovable("document", "doc-1", workflow.NoState))
	assert.ErrorIs(t, err, workflow.ErrEntityExists)
}

func TestApprovableRepository_CompareAndSetState(t *testing.T) {
	ctx := context.Background()
	repo := newApprovableRepo(t)

	e := entity.NewApprovable("document", "doc-1", workflow.NoState)
	e.Fields["title"] = "Q3 budget"
	require.NoError(t, repo.Create(ctx, e))

	updated, err := repo.CompareAndSetState(ctx, e.Ref, workflow.NoState, "REVIEWED",
		map[string]string{entity.FieldApprovalComment: "looks good"})
	require.NoError(t, err)
	assert.True(t, updated.State.Is("REVIEWED"))
	assert.Equal(t, "looks good", updated.Fields[entity.FieldApprovalComment])
	assert.Equal(t, "Q3 budget", updated.Fields["title"], "existing fields are kept")

	// stale expectation
	_, err = repo.CompareAndSetState(ctx, e.Ref, workflow.NoState, "REVIEWED", nil)
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

	got, err := repo.Read(ctx, e.Ref)
	require.NoError(t, err)
	assert.True(t, got.State.Is("REVIEWED"))

	_, err = repo.CompareAndSetState(ctx, entity.Ref{Type: "document", ID: "missing"}, workflow.NoState, "REVIEWED", nil)
	assert.ErrorIs(t, err, workflow.ErrEntityNotFound)
}

func TestApprovableRepository_CompareAndSetState_OneWinner(t *testing.T) {
	ctx := context.Background()
	repo := newApprovableRepo(t)

	e := entity.NewApprovable("document", "doc-1", workflow.StateOf("REVIEWED"))
	require.NoError(t, repo.Create(ctx, e))

	const attempts = 8
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := repo.CompareAndSetState(ctx, e.Ref, workflow.StateOf("REVIEWED"), "APPROVED", nil)
			results <- err
		}()
	}

	var won, conflicts int
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			won++
		case errors.Is(err, workflow.ErrConcurrentModification):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, conflicts)
}

func TestApprovableRepository_SupportedFields(t *testing.T) {
	repo := newApprovableRepo(t)

	assert.ElementsMatch(t,
		[]string{entity.FieldApprovalComment, entity.FieldRejectionNote},
		repo.SupportedFields("document"))
	assert.Empty(t, repo.SupportedFields("invoice"))
}

func TestApprovableRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newApprovableRepo(t)

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		typ, id string
		state   workflow.State
	}{
		{"document", "a", workflow.NoState},
		{"document", "b", workflow.StateOf("REVIEWED")},
		{"document", "c", workflow.StateOf("REVIEWED")},
		{"invoice", "x", workflow.NoState},
	}
	for i, s := range seed {
		e := entity.NewApprovable(s.typ, s.id, s.state)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, e))
	}

	tests := []struct {
		name   string
		filter port.ListFilter
		want   []string
	}{
		{"all", port.ListFilter{}, []string{"a", "b", "c", "x"}},
		{"by type", port.ListFilter{EntityType: "document"}, []string{"a", "b", "c"}},
		{"by state", port.ListFilter{EntityType: "document", State: workflow.StateOf("REVIEWED")}, []string{"b", "c"}},
		{"paged", port.ListFilter{Limit: 2, Offset: 1}, []string{"b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAuditLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditLogRepository(openTestDB(t), zap.NewNop())
	ref := entity.Ref{Type: "document", ID: "doc-1"}

	actor := "alice"
	comment := "fine"
	now := time.Now().UTC()

	entries := []*entity.AuditLogEntry{
		{ID: "log-1", EntityType: ref.Type, EntityID: ref.ID, ActorID: &actor, Action: entity.ActionApproved,
			PreviousState: "", NewState: "REVIEWED", Comment: &comment,
			Metadata: map[string]any{entity.MetadataUserAgent: "curl/8"}, CreatedAt: now},
		{ID: "log-2", EntityType: ref.Type, EntityID: ref.ID, Action: entity.ActionRejected,
			PreviousState: "REVIEWED", NewState: "", CreatedAt: now.Add(time.Second)},
		{ID: "log-3", EntityType: ref.Type, EntityID: ref.ID, ActorID: &actor, Action: entity.ActionApproved,
			PreviousState: "", NewState: "REVIEWED", CreatedAt: now.Add(2 * time.Second)},
		{ID: "log-4", EntityType: ref.Type, EntityID: "other", Action: entity.ActionApproved,
			PreviousState: "", NewState: "REVIEWED", CreatedAt: now},
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))
	}

	approved, err := repo.CountByEntityAndAction(ctx, ref, entity.ActionApproved)
	require.NoError(t, err)
	assert.Equal(t, 2, approved)

	rejected, err := repo.CountByEntityAndAction(ctx, ref, entity.ActionRejected)
	require.NoError(t, err)
	assert.Equal(t, 1, rejected)

	history, err := repo.ListByEntity(ctx, ref)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "log-3", history[0].ID)
	assert.Equal(t, "log-1", history[2].ID)

	first := history[2]
	require.NotNil(t, first.ActorID)
	assert.Equal(t, "alice", *first.ActorID)
	require.NotNil(t, first.Comment)
	assert.Equal(t, "fine", *first.Comment)
	assert.Equal(t, "curl/8", first.Metadata[entity.MetadataUserAgent])

	assert.Nil(t, history[1].ActorID)
	assert.Nil(t, history[1].Comment)
}

func TestAuditLogRepository_RejectsUnknownAction(t *testing.T) {
	repo := NewAuditLogRepository(openTestDB(t), zap.NewNop())

	err := repo.Append(context.Background(), &entity.AuditLogEntry{
		ID: "log-1", EntityType: "document", EntityID: "doc-1",
		Action: entity.Action("deleted"), CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}
