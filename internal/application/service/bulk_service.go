package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// Failure reasons recorded when a transition returns false without error
const (
	ReasonCannotApprove = "cannot approve"
	ReasonCannotReject  = "cannot reject"
	ReasonNilEntity     = "nil entity"
)

// BulkResult reports the outcome of a bulk operation per entity
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

func newBulkResult() *BulkResult {
	return &BulkResult{
		Succeeded: []string{},
		Failed:    make(map[string]string),
	}
}

// BulkRecorder counts bulk item outcomes
type BulkRecorder interface {
	RecordBulkItem(action entity.Action, succeeded bool)
}

// BulkService applies one action to many entities. Items are processed in
// order; a failing item never aborts or rolls back the others.
type BulkService struct {
	workflow WorkflowService
	recorder BulkRecorder
	logger   Logger
}

// NewBulkService creates a new BulkService. recorder may be nil.
func NewBulkService(workflow WorkflowService, recorder BulkRecorder, logger Logger) *BulkService {
	return &BulkService{
		workflow: workflow,
		recorder: recorder,
		logger:   logger,
	}
}

type transitionFunc func(ctx context.Context, e *entity.Approvable, actor entity.Actor, text string, meta entity.RequestMetadata) (bool, error)

// BulkApprove approves each entity
func (b *BulkService) BulkApprove(ctx context.Context, entities []*entity.Approvable, actor entity.Actor, comment string, meta entity.RequestMetadata) *BulkResult {
	return b.run(ctx, entities, actor, comment, meta, entity.ActionApproved, b.workflow.Approve, ReasonCannotApprove)
}

// BulkReject rejects each entity
func (b *BulkService) BulkReject(ctx context.Context, entities []*entity.Approvable, actor entity.Actor, note string, meta entity.RequestMetadata) *BulkResult {
	return b.run(ctx, entities, actor, note, meta, entity.ActionRejected, b.workflow.Reject, ReasonCannotReject)
}

// BulkApproveRefs reads and approves each referenced entity
func (b *BulkService) BulkApproveRefs(ctx context.Context, refs []entity.Ref, actor entity.Actor, comment string, meta entity.RequestMetadata) *BulkResult {
	return b.runRefs(ctx, refs, actor, comment, meta, entity.ActionApproved, b.workflow.Approve, ReasonCannotApprove)
}

// BulkRejectRefs reads and rejects each referenced entity
func (b *BulkService) BulkRejectRefs(ctx context.Context, refs []entity.Ref, actor entity.Actor, note string, meta entity.RequestMetadata) *BulkResult {
	return b.runRefs(ctx, refs, actor, note, meta, entity.ActionRejected, b.workflow.Reject, ReasonCannotReject)
}

func (b *BulkService) runRefs(ctx context.Context, refs []entity.Ref, actor entity.Actor, text string, meta entity.RequestMetadata, action entity.Action, fn transitionFunc, reason string) *BulkResult {
	result := newBulkResult()

	for _, ref := range refs {
		e, err := b.workflow.Read(ctx, ref)
		if err != nil {
			b.fail(result, action, ref.ID, err.Error())
			continue
		}
		b.apply(ctx, result, e, actor, text, meta, action, fn, reason)
	}

	b.summarize(result, action)
	return result
}

func (b *BulkService) run(ctx context.Context, entities []*entity.Approvable, actor entity.Actor, text string, meta entity.RequestMetadata, action entity.Action, fn transitionFunc, reason string) *BulkResult {
	result := newBulkResult()

	for i, e := range entities {
		if e == nil {
			// a nil item has no id; it is keyed by its position
			b.logger.Error("Skipping nil entity in bulk operation", "action", action, "index", i)
			b.fail(result, action, nilItemKey(i), ReasonNilEntity)
			continue
		}
		b.apply(ctx, result, e, actor, text, meta, action, fn, reason)
	}

	b.summarize(result, action)
	return result
}

func (b *BulkService) apply(ctx context.Context, result *BulkResult, e *entity.Approvable, actor entity.Actor, text string, meta entity.RequestMetadata, action entity.Action, fn transitionFunc, reason string) {
	ok, err := fn(ctx, e, actor, text, meta)
	switch {
	case err != nil:
		b.fail(result, action, e.ID, err.Error())
	case !ok:
		b.fail(result, action, e.ID, reason)
	default:
		result.Succeeded = append(result.Succeeded, e.ID)
		if b.recorder != nil {
			b.recorder.RecordBulkItem(action, true)
		}
	}
}

func nilItemKey(index int) string {
	return fmt.Sprintf("#%d", index)
}

func (b *BulkService) fail(result *BulkResult, action entity.Action, id, reason string) {
	result.Failed[id] = reason
	if b.recorder != nil {
		b.recorder.RecordBulkItem(action, false)
	}
}

func (b *BulkService) summarize(result *BulkResult, action entity.Action) {
	b.logger.Info("Bulk operation finished",
		"action", action,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
}
