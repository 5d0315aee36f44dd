package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/registry"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Transition outcomes reported to a TransitionRecorder
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeUnchanged    = "unchanged"
	OutcomeUnauthorized = "unauthorized"
	OutcomeConflict     = "conflict"
	OutcomeFailed       = "failed"
)

// TransitionRecorder counts transition attempts by outcome
type TransitionRecorder interface {
	RecordTransition(entityType string, action entity.Action, outcome string)
}

// Stats summarises an entity's approval progress
type Stats struct {
	TotalApprovals  int                `json:"total_approvals"`
	TotalRejections int                `json:"total_rejections"`
	CurrentState    workflow.State     `json:"current_status"`
	IsCompleted     bool               `json:"is_completed"`
	CanApprove      bool               `json:"can_approve"`
	CanReject       bool               `json:"can_reject"`
	NextStep        *string            `json:"next_step"`
	NextStatus      workflow.StateCode `json:"next_status,omitempty"`
}

// WorkflowService drives entities through their registered topology
type WorkflowService interface {
	// Approve advances the entity one step. It returns false without error
	// when the step leaves the state unchanged. On success e holds the
	// persisted entity.
	Approve(ctx context.Context, e *entity.Approvable, actor entity.Actor, comment string, meta entity.RequestMetadata) (bool, error)

	// Reject moves the entity to its rejection state. It returns false
	// without error when the entity is completed or the current state has
	// no rejection mapping.
	Reject(ctx context.Context, e *entity.Approvable, actor entity.Actor, note string, meta entity.RequestMetadata) (bool, error)

	CanApprove(ctx context.Context, e *entity.Approvable, actor entity.Actor) (bool, error)
	CanReject(ctx context.Context, e *entity.Approvable, actor entity.Actor) (bool, error)
	IsCompleted(ctx context.Context, e *entity.Approvable) (bool, error)
	IsInProcess(ctx context.Context, e *entity.Approvable) (bool, error)
	CurrentApprovalStep(ctx context.Context, e *entity.Approvable) (*workflow.FlowStep, error)
	NextStatusCode(ctx context.Context, e *entity.Approvable) (workflow.StateCode, bool, error)

	// ApprovalStats requires an audit log store
	ApprovalStats(ctx context.Context, e *entity.Approvable, actor entity.Actor) (*Stats, error)

	// History returns the entity's audit entries, newest first. It is empty
	// when audit logging is disabled.
	History(ctx context.Context, e *entity.Approvable) ([]*entity.AuditLogEntry, error)

	// Read loads an entity from its registered store
	Read(ctx context.Context, ref entity.Ref) (*entity.Approvable, error)
}

type workflowServiceImpl struct {
	registry       *registry.Registry
	checker        port.CapabilityChecker
	dispatcher     dispatcher.Dispatcher
	auditStore     port.AuditLogStore
	loggingEnabled bool
	recorder       TransitionRecorder
	logger         Logger
}

// WorkflowOption configures the workflow service
type WorkflowOption func(*workflowServiceImpl)

// WithAuditStore enables ApprovalStats and History
func WithAuditStore(store port.AuditLogStore, loggingEnabled bool) WorkflowOption {
	return func(s *workflowServiceImpl) {
		s.auditStore = store
		s.loggingEnabled = loggingEnabled
	}
}

// WithTransitionRecorder sets a recorder for transition outcomes
func WithTransitionRecorder(recorder TransitionRecorder) WorkflowOption {
	return func(s *workflowServiceImpl) {
		s.recorder = recorder
	}
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	reg *registry.Registry,
	checker port.CapabilityChecker,
	d dispatcher.Dispatcher,
	logger Logger,
	opts ...WorkflowOption,
) WorkflowService {
	s := &workflowServiceImpl{
		registry:   reg,
		checker:    checker,
		dispatcher: d,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Approve advances the entity one step
func (s *workflowServiceImpl) Approve(ctx context.Context, e *entity.Approvable, actor entity.Actor, comment string, meta entity.RequestMetadata) (bool, error) {
	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return false, err
	}

	check := s.capabilityCheck(ctx, actor, e)
	if !reg.Topology.CanAdvance(e.State, check) {
		s.record(e.Type, entity.ActionApproved, OutcomeUnauthorized)
		return false, fmt.Errorf("%w: actor %q cannot approve %s in state %q", workflow.ErrUnauthorized, actor.ID, e.Ref, e.State)
	}

	next := reg.Topology.NextStateOnApprove(e.State, check)
	if next == e.State {
		s.record(e.Type, entity.ActionApproved, OutcomeUnchanged)
		return false, nil
	}

	code, _ := next.Code()
	return s.transition(ctx, reg, e, actor, entity.ActionApproved, code, entity.FieldApprovalComment, comment, meta)
}

// Reject moves the entity to its rejection state
func (s *workflowServiceImpl) Reject(ctx context.Context, e *entity.Approvable, actor entity.Actor, note string, meta entity.RequestMetadata) (bool, error) {
	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return false, err
	}

	// a finished workflow has nothing left to reject
	if reg.Topology.IsCompleted(e.State) {
		s.record(e.Type, entity.ActionRejected, OutcomeUnchanged)
		return false, nil
	}

	if !reg.Topology.CanAdvance(e.State, s.capabilityCheck(ctx, actor, e)) {
		s.record(e.Type, entity.ActionRejected, OutcomeUnauthorized)
		return false, fmt.Errorf("%w: actor %q cannot reject %s in state %q", workflow.ErrUnauthorized, actor.ID, e.Ref, e.State)
	}

	next, ok := reg.Topology.NextStateOnReject(e.State)
	if !ok {
		s.record(e.Type, entity.ActionRejected, OutcomeUnchanged)
		return false, nil
	}

	return s.transition(ctx, reg, e, actor, entity.ActionRejected, next, entity.FieldRejectionNote, note, meta)
}

// transition persists the state change with compare-and-set and emits the event
func (s *workflowServiceImpl) transition(
	ctx context.Context,
	reg *registry.Registration,
	e *entity.Approvable,
	actor entity.Actor,
	action entity.Action,
	next workflow.StateCode,
	field, text string,
	meta entity.RequestMetadata,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fields := make(map[string]string)
	if text != "" && reg.SupportsField(field) {
		fields[field] = text
	}

	previous, _ := e.State.Code()

	// the write and everything after it must not be abandoned halfway
	writeCtx := context.WithoutCancel(ctx)

	updated, err := reg.Store.CompareAndSetState(writeCtx, e.Ref, e.State, next, fields)
	if err != nil {
		if errors.Is(err, workflow.ErrConcurrentModification) {
			s.record(e.Type, action, OutcomeConflict)
			s.logger.Info("Concurrent modification", "entity", e.Ref.String(), "action", action, "expected", previous)
			return false, err
		}
		s.record(e.Type, action, OutcomeFailed)
		s.logger.Error("Failed to persist transition", "error", err, "entity", e.Ref.String(), "action", action)
		if errors.Is(err, workflow.ErrPersistenceFailed) || errors.Is(err, workflow.ErrEntityNotFound) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", workflow.ErrPersistenceFailed, err)
	}

	*e = *updated
	s.record(e.Type, action, OutcomeSucceeded)

	// the store has the final word on the state it wrote
	persisted, ok := e.State.Code()
	if !ok {
		persisted = next
	}

	s.logger.Info("Transition persisted",
		"entity", e.Ref.String(),
		"action", action,
		"from", previous,
		"to", persisted,
		"actor_id", actor.ID,
	)

	eventType := event.TypeApproved
	if action == entity.ActionRejected {
		eventType = event.TypeRejected
	}
	evt := event.NewEvent(eventType, e.Ref, event.NewTransition(previous, persisted, text, actor, meta))

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(writeCtx, evt); err != nil {
			s.logger.Error("Failed to dispatch transition event",
				"error", err,
				"event_id", evt.ID,
				"event_type", evt.Type,
				"entity", e.Ref.String(),
			)
		}
	}

	return true, nil
}

// CanApprove reports whether the actor may advance the entity from its current state
func (s *workflowServiceImpl) CanApprove(ctx context.Context, e *entity.Approvable, actor entity.Actor) (bool, error) {
	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return false, err
	}
	return reg.Topology.CanAdvance(e.State, s.capabilityCheck(ctx, actor, e)), nil
}

// CanReject uses the same authority as CanApprove
func (s *workflowServiceImpl) CanReject(ctx context.Context, e *entity.Approvable, actor entity.Actor) (bool, error) {
	return s.CanApprove(ctx, e, actor)
}

// IsCompleted reports whether the entity is in its terminal success state
func (s *workflowServiceImpl) IsCompleted(ctx context.Context, e *entity.Approvable) (bool, error) {
	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return false, err
	}
	return reg.Topology.IsCompleted(e.State), nil
}

// IsInProcess reports whether the entity's current state has a forward step
func (s *workflowServiceImpl) IsInProcess(ctx context.Context, e *entity.Approvable) (bool, error) {
	step, err := s.CurrentApprovalStep(ctx, e)
	if err != nil {
		return false, err
	}
	return step != nil, nil
}

// CurrentApprovalStep returns the forward step for the current state, or nil
func (s *workflowServiceImpl) CurrentApprovalStep(ctx context.Context, e *entity.Approvable) (*workflow.FlowStep, error) {
	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return nil, err
	}
	step, ok := reg.Topology.CurrentStep(e.State)
	if !ok {
		return nil, nil
	}
	return &step, nil
}

// NextStatusCode returns where the current state leads, ignoring permissions
func (s *workflowServiceImpl) NextStatusCode(ctx context.Context, e *entity.Approvable) (workflow.StateCode, bool, error) {
	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return "", false, err
	}
	code, ok := reg.Topology.NextStatusCode(e.State)
	return code, ok, nil
}

// ApprovalStats summarises counts from the audit log and the current position
func (s *workflowServiceImpl) ApprovalStats(ctx context.Context, e *entity.Approvable, actor entity.Actor) (*Stats, error) {
	if s.auditStore == nil {
		return nil, fmt.Errorf("%w: approval stats need an audit log store", workflow.ErrMissingCapability)
	}

	reg, err := s.registry.Lookup(e.Type)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		CurrentState: e.State,
		IsCompleted:  reg.Topology.IsCompleted(e.State),
	}

	if s.loggingEnabled {
		if stats.TotalApprovals, err = s.auditStore.CountByEntityAndAction(ctx, e.Ref, entity.ActionApproved); err != nil {
			return nil, fmt.Errorf("count approvals: %w", err)
		}
		if stats.TotalRejections, err = s.auditStore.CountByEntityAndAction(ctx, e.Ref, entity.ActionRejected); err != nil {
			return nil, fmt.Errorf("count rejections: %w", err)
		}
	}

	stats.CanApprove = reg.Topology.CanAdvance(e.State, s.capabilityCheck(ctx, actor, e))
	stats.CanReject = stats.CanApprove

	if step, ok := reg.Topology.CurrentStep(e.State); ok {
		if perm, ok := step.Permission(); ok {
			stats.NextStep = &perm
		}
	}
	if code, ok := reg.Topology.NextStatusCode(e.State); ok {
		stats.NextStatus = code
	}

	return stats, nil
}

// History returns the entity's audit entries, newest first
func (s *workflowServiceImpl) History(ctx context.Context, e *entity.Approvable) ([]*entity.AuditLogEntry, error) {
	if s.auditStore == nil {
		return nil, fmt.Errorf("%w: history needs an audit log store", workflow.ErrMissingCapability)
	}
	if _, err := s.registry.Lookup(e.Type); err != nil {
		return nil, err
	}
	if !s.loggingEnabled {
		return []*entity.AuditLogEntry{}, nil
	}

	entries, err := s.auditStore.ListByEntity(ctx, e.Ref)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// Read loads an entity from the store registered for its type
func (s *workflowServiceImpl) Read(ctx context.Context, ref entity.Ref) (*entity.Approvable, error) {
	reg, err := s.registry.Lookup(ref.Type)
	if err != nil {
		return nil, err
	}
	return reg.Store.Read(ctx, ref)
}

// capabilityCheck binds the checker to one actor and entity. A missing
// checker denies every permission.
func (s *workflowServiceImpl) capabilityCheck(ctx context.Context, actor entity.Actor, e *entity.Approvable) workflow.CapabilityCheck {
	return func(permission string) bool {
		if s.checker == nil {
			return false
		}
		return s.checker.Can(ctx, actor, permission, e)
	}
}

func (s *workflowServiceImpl) record(entityType string, action entity.Action, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordTransition(entityType, action, outcome)
	}
}
