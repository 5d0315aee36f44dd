package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/registry"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/memory"
)

const (
	stateDraft    workflow.StateCode = "DRAFT"
	statePending  workflow.StateCode = "PENDING"
	stateApproved workflow.StateCode = "APPROVED"
	stateRejected workflow.StateCode = "REJECTED"

	permApprovePending = "approvePending"
)

var (
	anyone   = entity.Actor{ID: "clerk"}
	approver = entity.Actor{ID: "manager", Roles: []string{permApprovePending}}
	request  = entity.RequestMetadata{UserAgent: "test-agent", IPAddress: "127.0.0.1"}
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// roleChecker grants a permission to actors holding a role of the same name
var roleChecker = port.CapabilityCheckerFunc(func(ctx context.Context, actor entity.Actor, permission string, e *entity.Approvable) bool {
	return actor.HasRole(permission)
})

// eventRecorder collects dispatched events
type eventRecorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *eventRecorder) handle(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) all() []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.Event(nil), r.events...)
}

// mockRecorder implements TransitionRecorder and BulkRecorder
type mockRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
	bulk        map[bool]int
}

func (m *mockRecorder) RecordTransition(entityType string, action entity.Action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions == nil {
		m.transitions = make(map[string]int)
	}
	m.transitions[string(action)+":"+outcome]++
}

func (m *mockRecorder) RecordBulkItem(action entity.Action, succeeded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bulk == nil {
		m.bulk = make(map[bool]int)
	}
	m.bulk[succeeded]++
}

type fixture struct {
	service  WorkflowService
	store    *memory.ApprovableStore
	audit    *memory.AuditLogStore
	events   *eventRecorder
	recorder *mockRecorder
}

type fixtureOptions struct {
	loggingEnabled bool
	withoutAudit   bool
	fields         []string
}

func documentTopology() *workflow.Builder {
	return workflow.NewBuilder("document").
		Permit(stateDraft, statePending).
		PermitIf(statePending, stateApproved, permApprovePending).
		Reject(statePending, stateRejected).
		Complete(stateApproved)
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewApprovableStore(opts.fields...),
		audit:    memory.NewAuditLogStore(),
		events:   &eventRecorder{},
		recorder: &mockRecorder{},
	}

	reg := registry.New()
	reg.MustRegister(documentTopology(), f.store)

	d := dispatcher.NewDispatcher()
	d.Subscribe(event.TypeApproved, f.events.handle)
	d.Subscribe(event.TypeRejected, f.events.handle)
	NewAuditLogger(f.audit, opts.loggingEnabled, &mockLogger{}).Register(d)

	serviceOpts := []WorkflowOption{WithTransitionRecorder(f.recorder)}
	if !opts.withoutAudit {
		serviceOpts = append(serviceOpts, WithAuditStore(f.audit, opts.loggingEnabled))
	}

	f.service = NewWorkflowService(reg, roleChecker, d, &mockLogger{}, serviceOpts...)
	return f
}

func (f *fixture) create(t *testing.T, id string, state workflow.State) *entity.Approvable {
	t.Helper()
	e := entity.NewApprovable("document", id, state)
	require.NoError(t, f.store.Create(context.Background(), e))
	return e
}

func (f *fixture) stored(t *testing.T, e *entity.Approvable) *entity.Approvable {
	t.Helper()
	got, err := f.store.Read(context.Background(), e.Ref)
	require.NoError(t, err)
	return got
}
