package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTopology_CurrentStep(t *testing.T) {
	topo := documentTopology()

	tests := []struct {
		name     string
		state    State
		wantOK   bool
		wantNext StateCode
	}{
		{"draft has step", StateOf(stateDraft), true, statePending},
		{"pending has step", StateOf(statePending), true, stateApproved},
		{"completed has no step", StateOf(stateApproved), false, ""},
		{"unknown state has no step", StateOf("UNKNOWN"), false, ""},
		{"no state has no step", NoState, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, ok := topo.CurrentStep(tt.state)
			if ok != tt.wantOK {
				t.Errorf("CurrentStep() ok = %v, want %v", ok, tt.wantOK)
			}
			if step.Next() != tt.wantNext {
				t.Errorf("CurrentStep().Next() = %v, want %v", step.Next(), tt.wantNext)
			}
		})
	}
}

func TestTopology_IsCompleted(t *testing.T) {
	topo := documentTopology()

	tests := []struct {
		state    State
		expected bool
	}{
		{StateOf(stateApproved), true},
		{StateOf(statePending), false},
		{StateOf(stateRejected), false},
		{NoState, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := topo.IsCompleted(tt.state); got != tt.expected {
				t.Errorf("IsCompleted() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTopology_CanAdvance(t *testing.T) {
	topo := documentTopology()

	tests := []struct {
		name     string
		state    State
		check    CapabilityCheck
		expected bool
	}{
		{"unconditional step ignores denial", StateOf(stateDraft), deny, true},
		{"unconditional step with nil check", StateOf(stateDraft), nil, true},
		{"gated step allowed", StateOf(statePending), allow, true},
		{"gated step denied", StateOf(statePending), deny, false},
		{"gated step with nil check", StateOf(statePending), nil, false},
		{"no step", StateOf(stateApproved), allow, false},
		{"no state", NoState, allow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topo.CanAdvance(tt.state, tt.check); got != tt.expected {
				t.Errorf("CanAdvance() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTopology_CanAdvance_ChecksStepPermission(t *testing.T) {
	topo := documentTopology()

	var asked []string
	check := func(permission string) bool {
		asked = append(asked, permission)
		return true
	}

	topo.CanAdvance(StateOf(stateDraft), check)
	if len(asked) != 0 {
		t.Errorf("unconditional step should not consult the check, asked %v", asked)
	}

	topo.CanAdvance(StateOf(statePending), check)
	if len(asked) != 1 || asked[0] != "approvePending" {
		t.Errorf("check asked %v, want [approvePending]", asked)
	}
}

func TestTopology_NextStateOnApprove(t *testing.T) {
	topo := documentTopology()

	tests := []struct {
		name     string
		state    State
		check    CapabilityCheck
		expected State
	}{
		{"advances draft", StateOf(stateDraft), deny, StateOf(statePending)},
		{"advances pending when allowed", StateOf(statePending), allow, StateOf(stateApproved)},
		{"unchanged when denied", StateOf(statePending), deny, StateOf(statePending)},
		{"unchanged at completion", StateOf(stateApproved), allow, StateOf(stateApproved)},
		{"unchanged for no state", NoState, allow, NoState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topo.NextStateOnApprove(tt.state, tt.check); got != tt.expected {
				t.Errorf("NextStateOnApprove() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTopology_NextStateOnReject(t *testing.T) {
	topo := documentTopology()

	tests := []struct {
		name   string
		state  State
		wantTo StateCode
		wantOK bool
	}{
		{"pending rejects", StateOf(statePending), stateRejected, true},
		{"draft has no rejection", StateOf(stateDraft), "", false},
		{"approved has no rejection", StateOf(stateApproved), "", false},
		{"no state", NoState, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, ok := topo.NextStateOnReject(tt.state)
			if ok != tt.wantOK || to != tt.wantTo {
				t.Errorf("NextStateOnReject() = %v, %v, want %v, %v", to, ok, tt.wantTo, tt.wantOK)
			}
		})
	}
}

func TestTopology_NextStatusCode(t *testing.T) {
	topo := NewBuilder("document").
		Permit(stateDraft, statePending).
		PermitIf(statePending, stateApproved, "approvePending").
		Reject(statePending, stateRejected).
		Transition(statePending, stateArchived).
		Transition(stateRejected, stateDraft).
		Complete(stateApproved).
		MustBuild()

	tests := []struct {
		name   string
		state  State
		wantTo StateCode
		wantOK bool
	}{
		{"forward step", StateOf(stateDraft), statePending, true},
		{"custom transition wins over forward step", StateOf(statePending), stateArchived, true},
		{"custom transition from terminal state", StateOf(stateRejected), stateDraft, true},
		{"nothing from completed", StateOf(stateApproved), "", false},
		{"no state", NoState, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, ok := topo.NextStatusCode(tt.state)
			if ok != tt.wantOK || to != tt.wantTo {
				t.Errorf("NextStatusCode() = %v, %v, want %v, %v", to, ok, tt.wantTo, tt.wantOK)
			}
		})
	}
}

// Approving twice on an authorized, in-process entity always makes progress
// or stops at a state the actor cannot advance from
func TestTopology_MonotonicProgress(t *testing.T) {
	topo := documentTopology()

	s := StateOf(stateDraft)
	for i := 0; i < 5; i++ {
		if !topo.CanAdvance(s, allow) {
			break
		}
		next := topo.NextStateOnApprove(s, allow)
		if next == s {
			t.Fatalf("authorized approve from %v did not advance", s)
		}
		s = next
	}

	if !topo.IsCompleted(s) {
		t.Errorf("final state = %v, want %v", s, stateApproved)
	}
}

func TestDefinition_Topology(t *testing.T) {
	def := Definition{
		EntityType: "invoice",
		States:     []string{"DRAFT", "PENDING", "APPROVED", "REJECTED"},
		Steps: []StepDefinition{
			{From: "DRAFT", Next: "PENDING"},
			{From: "PENDING", Permission: "approveInvoice", Next: "APPROVED", Metadata: map[string]any{"level": 1}},
		},
		Rejections: []EdgeDefinition{{From: "PENDING", To: "REJECTED"}},
		Completed:  "APPROVED",
	}

	topo, err := def.Topology()
	if err != nil {
		t.Fatalf("Topology() failed: %v", err)
	}

	step, ok := topo.CurrentStep(StateOf("PENDING"))
	if !ok {
		t.Fatal("PENDING should have a step")
	}
	if perm, _ := step.Permission(); perm != "approveInvoice" {
		t.Errorf("Permission() = %v, want approveInvoice", perm)
	}
	if step.Metadata()["level"] != 1 {
		t.Errorf("Metadata() = %v, want level=1", step.Metadata())
	}
}

func TestScaffoldDefinition_IsValid(t *testing.T) {
	topo, err := ScaffoldDefinition("purchase_order").Topology()
	if err != nil {
		t.Fatalf("scaffold topology invalid: %v", err)
	}
	if topo.Completed() != "APPROVED" {
		t.Errorf("Completed() = %v, want APPROVED", topo.Completed())
	}
}

func TestLoadDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leave_request.yaml")
	content := `entity_type: leave_request
steps:
  - from: DRAFT
    next: SUBMITTED
  - from: SUBMITTED
    permission: approveLeave
    next: APPROVED
rejections:
  - from: SUBMITTED
    to: DECLINED
completed: APPROVED
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	def, err := LoadDefinitionFile(path)
	if err != nil {
		t.Fatalf("LoadDefinitionFile() failed: %v", err)
	}
	if def.EntityType != "leave_request" {
		t.Errorf("EntityType = %v, want leave_request", def.EntityType)
	}

	topo, err := def.Topology()
	if err != nil {
		t.Fatalf("Topology() failed: %v", err)
	}
	if to, _ := topo.NextStateOnReject(StateOf("SUBMITTED")); to != "DECLINED" {
		t.Errorf("NextStateOnReject(SUBMITTED) = %v, want DECLINED", to)
	}
}

func TestLoadDefinitionFile_Missing(t *testing.T) {
	if _, err := LoadDefinitionFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadDefinitionFile() should fail for a missing file")
	}
}
