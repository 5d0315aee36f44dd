package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

func TestBulkService_BulkApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{loggingEnabled: true})
	bulk := NewBulkService(f.service, f.recorder, &mockLogger{})

	e1 := f.create(t, "e1", workflow.StateOf(stateDraft))
	e2 := f.create(t, "e2", workflow.StateOf(statePending))
	e3 := f.create(t, "e3", workflow.StateOf(stateDraft))

	// anyone may pass DRAFT but not PENDING
	result := bulk.BulkApprove(ctx, []*entity.Approvable{e1, e2, e3}, anyone, "", request)

	assert.Equal(t, []string{"e1", "e3"}, result.Succeeded)
	assert.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed["e2"], "unauthorized")

	assert.True(t, f.stored(t, e1).State.Is(statePending))
	assert.True(t, f.stored(t, e2).State.Is(statePending))
	assert.True(t, f.stored(t, e3).State.Is(statePending))
	assert.Equal(t, 2, f.recorder.bulk[true])
	assert.Equal(t, 1, f.recorder.bulk[false])
}

func TestBulkService_BulkApprove_PreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})
	bulk := NewBulkService(f.service, nil, &mockLogger{})

	ids := []string{"z", "a", "m"}
	var entities []*entity.Approvable
	for _, id := range ids {
		entities = append(entities, f.create(t, id, workflow.StateOf(stateDraft)))
	}

	result := bulk.BulkApprove(ctx, entities, anyone, "", request)

	assert.Equal(t, ids, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestBulkService_BulkApprove_NilEntityDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})
	bulk := NewBulkService(f.service, f.recorder, &mockLogger{})

	e1 := f.create(t, "e1", workflow.StateOf(stateDraft))
	e3 := f.create(t, "e3", workflow.StateOf(stateDraft))

	result := bulk.BulkApprove(ctx, []*entity.Approvable{e1, nil, e3}, anyone, "", request)

	assert.Equal(t, []string{"e1", "e3"}, result.Succeeded)
	assert.Equal(t, map[string]string{"#1": ReasonNilEntity}, result.Failed)
	assert.True(t, f.stored(t, e3).State.Is(statePending))
	assert.Equal(t, 1, f.recorder.bulk[false])
}

func TestBulkService_BulkReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})
	bulk := NewBulkService(f.service, nil, &mockLogger{})

	pending := f.create(t, "p", workflow.StateOf(statePending))
	draft := f.create(t, "d", workflow.StateOf(stateDraft))
	done := f.create(t, "a", workflow.StateOf(stateApproved))

	result := bulk.BulkReject(ctx, []*entity.Approvable{pending, draft, done}, approver, "bad", request)

	assert.Equal(t, []string{"p"}, result.Succeeded)
	assert.Equal(t, ReasonCannotReject, result.Failed["d"])
	assert.Equal(t, ReasonCannotReject, result.Failed["a"])
	assert.True(t, f.stored(t, pending).State.Is(stateRejected))
}

func TestBulkService_BulkApproveRefs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})
	bulk := NewBulkService(f.service, nil, &mockLogger{})

	f.create(t, "e1", workflow.StateOf(stateDraft))
	f.create(t, "e2", workflow.StateOf(stateApproved))

	refs := []entity.Ref{
		{Type: "document", ID: "e1"},
		{Type: "document", ID: "missing"},
		{Type: "document", ID: "e2"},
		{Type: "invoice", ID: "i1"},
	}

	result := bulk.BulkApproveRefs(ctx, refs, approver, "", request)

	assert.Equal(t, []string{"e1"}, result.Succeeded)
	assert.Contains(t, result.Failed["missing"], "not found")
	assert.Contains(t, result.Failed["e2"], "unauthorized")
	assert.Contains(t, result.Failed["i1"], "unknown entity type")
}

func TestBulkService_BulkRejectRefs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOptions{})
	bulk := NewBulkService(f.service, nil, &mockLogger{})

	f.create(t, "e1", workflow.StateOf(stateDraft))

	result := bulk.BulkRejectRefs(ctx, []entity.Ref{{Type: "document", ID: "e1"}}, anyone, "", request)

	assert.Empty(t, result.Succeeded)
	assert.Equal(t, ReasonCannotReject, result.Failed["e1"])
}

// stubWorkflow returns false without error for every approval
type stubWorkflow struct {
	WorkflowService
}

func (stubWorkflow) Approve(ctx context.Context, e *entity.Approvable, actor entity.Actor, comment string, meta entity.RequestMetadata) (bool, error) {
	return false, nil
}

func TestBulkService_FalseReturnIsRecordedAsCannotApprove(t *testing.T) {
	bulk := NewBulkService(stubWorkflow{}, nil, &mockLogger{})
	e := entity.NewApprovable("document", "e1", workflow.StateOf(stateDraft))

	result := bulk.BulkApprove(context.Background(), []*entity.Approvable{e}, anyone, "", request)

	assert.Empty(t, result.Succeeded)
	assert.Equal(t, map[string]string{"e1": ReasonCannotApprove}, result.Failed)
}
