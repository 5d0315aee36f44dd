package workflow

import "testing"

func TestNewStep_Unconditional(t *testing.T) {
	step := NewStep(statePending)

	if !step.IsUnconditional() {
		t.Error("step without permission should be unconditional")
	}
	if _, ok := step.Permission(); ok {
		t.Error("Permission() should report no permission")
	}
	if step.Next() != statePending {
		t.Errorf("Next() = %v, want %v", step.Next(), statePending)
	}
	if step.Metadata() != nil {
		t.Errorf("Metadata() = %v, want nil", step.Metadata())
	}
}

func TestNewStep_WithPermissionAndMetadata(t *testing.T) {
	meta := map[string]any{"sla_hours": 24}
	step := NewStep(stateApproved, RequiringPermission("approvePending"), WithMetadata(meta))

	perm, ok := step.Permission()
	if !ok || perm != "approvePending" {
		t.Errorf("Permission() = %q, %v, want %q, true", perm, ok, "approvePending")
	}

	// Mutating the source map or the returned copy must not leak into the step
	meta["sla_hours"] = 1
	got := step.Metadata()
	got["extra"] = true
	if step.Metadata()["sla_hours"] != 24 {
		t.Errorf("metadata changed after construction: %v", step.Metadata())
	}
	if _, leaked := step.Metadata()["extra"]; leaked {
		t.Error("Metadata() should return a copy")
	}
}

func TestFlowStep_ToMap(t *testing.T) {
	tests := []struct {
		name     string
		step     FlowStep
		wantKeys []string
	}{
		{"unconditional", NewStep(statePending), []string{"next"}},
		{"with permission", NewStep(stateApproved, RequiringPermission("approve")), []string{"next", "permission"}},
		{"with metadata", NewStep(stateApproved, WithMetadata(map[string]any{"a": 1})), []string{"next", "metadata"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.step.ToMap()
			if len(m) != len(tt.wantKeys) {
				t.Errorf("ToMap() = %v, want keys %v", m, tt.wantKeys)
			}
			for _, k := range tt.wantKeys {
				if _, ok := m[k]; !ok {
					t.Errorf("ToMap() missing key %q", k)
				}
			}
		})
	}
}
