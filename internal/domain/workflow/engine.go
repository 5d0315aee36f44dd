package workflow

// CapabilityCheck reports whether the acting party holds a permission. The
// topology never evaluates permissions itself.
type CapabilityCheck func(permission string) bool

// CurrentStep returns the forward step for the state, if any
func (t *Topology) CurrentStep(s State) (FlowStep, bool) {
	code, ok := s.Code()
	if !ok {
		return FlowStep{}, false
	}
	step, ok := t.forward[code]
	return step, ok
}

// IsCompleted returns true if the state is the terminal success state
func (t *Topology) IsCompleted(s State) bool {
	return s.Is(t.completed)
}

// CanAdvance returns true if the state has a forward step and the step is
// either unconditional or its permission passes check
func (t *Topology) CanAdvance(s State, check CapabilityCheck) bool {
	step, ok := t.CurrentStep(s)
	if !ok {
		return false
	}
	if step.IsUnconditional() {
		return true
	}
	return check != nil && check(step.permission)
}

// NextStateOnApprove returns the destination of the current step when the
// actor may advance, and s unchanged otherwise
func (t *Topology) NextStateOnApprove(s State, check CapabilityCheck) State {
	if !t.CanAdvance(s, check) {
		return s
	}
	step, _ := t.CurrentStep(s)
	return StateOf(step.next)
}

// NextStateOnReject returns the rejection destination for the state, if mapped
func (t *Topology) NextStateOnReject(s State) (StateCode, bool) {
	code, ok := s.Code()
	if !ok {
		return "", false
	}
	to, ok := t.rejections[code]
	return to, ok
}

// NextStatusCode returns where the state leads without checking permissions.
// Custom transitions take precedence over the forward step.
func (t *Topology) NextStatusCode(s State) (StateCode, bool) {
	code, ok := s.Code()
	if !ok {
		return "", false
	}
	if to, ok := t.transitions[code]; ok {
		return to, true
	}
	if step, ok := t.forward[code]; ok {
		return step.next, true
	}
	return "", false
}
