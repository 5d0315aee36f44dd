package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var permissionPattern = regexp.MustCompile(`^[a-z][a-zA-Z]*$`)

// Topology is the validated, read-only workflow of one entity type
type Topology struct {
	entityType  string
	forward     map[StateCode]FlowStep
	rejections  map[StateCode]StateCode
	completed   StateCode
	transitions map[StateCode]StateCode
	declared    map[StateCode]bool
}

// NewTopology validates the provider's declaration and returns an immutable
// topology. Any violation is reported as ErrInvalidTopology.
func NewTopology(p StatusProvider) (*Topology, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil status provider", ErrInvalidTopology)
	}
	if b, ok := p.(*Builder); ok {
		return b.Build()
	}
	return newTopology(p)
}

func newTopology(p StatusProvider) (*Topology, error) {

	t := &Topology{
		entityType:  p.EntityType(),
		forward:     make(map[StateCode]FlowStep),
		rejections:  make(map[StateCode]StateCode),
		completed:   p.CompletedStatus(),
		transitions: make(map[StateCode]StateCode),
	}
	for from, step := range p.ApprovalFlow() {
		t.forward[from] = step
	}
	for from, to := range p.RejectionStatuses() {
		t.rejections[from] = to
	}
	for from, to := range p.StatusTransitions() {
		t.transitions[from] = to
	}
	if d, ok := p.(StateDeclarer); ok {
		t.declared = make(map[StateCode]bool)
		for _, code := range d.States() {
			t.declared[code] = true
		}
	}

	if problems := t.validate(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidTopology, t.entityType, strings.Join(problems, "; "))
	}

	return t, nil
}

func (t *Topology) validate() []string {
	var problems []string

	if t.entityType == "" {
		problems = append(problems, "entity type is required")
	}
	if t.completed == "" {
		problems = append(problems, "completed status is required")
	} else {
		problems = append(problems, t.checkRef("completed status", t.completed)...)
	}
	if _, ok := t.forward[t.completed]; ok && t.completed != "" {
		problems = append(problems, fmt.Sprintf("completed status %s must not have a forward step", t.completed))
	}

	for _, from := range sortedKeys(t.forward) {
		step := t.forward[from]
		problems = append(problems, t.checkRef("step source", from)...)
		if step.next == "" {
			problems = append(problems, fmt.Sprintf("step %s has no destination", from))
		} else {
			problems = append(problems, t.checkRef(fmt.Sprintf("step %s destination", from), step.next)...)
		}
		if step.permission != "" && !permissionPattern.MatchString(step.permission) {
			problems = append(problems, fmt.Sprintf("step %s permission %q must be lower camel case", from, step.permission))
		}
	}

	problems = append(problems, t.forwardCycles()...)

	for _, from := range sortedKeys(t.rejections) {
		if _, ok := t.forward[from]; !ok {
			problems = append(problems, fmt.Sprintf("rejection from %s has no forward step", from))
		}
		to := t.rejections[from]
		if to == "" {
			problems = append(problems, fmt.Sprintf("rejection from %s has no destination", from))
		} else {
			problems = append(problems, t.checkRef(fmt.Sprintf("rejection %s destination", from), to)...)
		}
	}

	for _, from := range sortedKeys(t.transitions) {
		problems = append(problems, t.checkRef("transition source", from)...)
		to := t.transitions[from]
		if to == "" {
			problems = append(problems, fmt.Sprintf("transition from %s has no destination", from))
		} else {
			problems = append(problems, t.checkRef(fmt.Sprintf("transition %s destination", from), to)...)
		}
	}

	return problems
}

// forwardCycles reports every forward chain that returns to a state it has
// already visited. Each state has at most one forward step, so following the
// chain from a state either ends or loops.
func (t *Topology) forwardCycles() []string {
	var problems []string
	reported := make(map[StateCode]bool)

	for _, start := range sortedKeys(t.forward) {
		onPath := map[StateCode]bool{start: true}
		path := []StateCode{start}
		for cur := start; ; {
			step, ok := t.forward[cur]
			if !ok || step.next == "" {
				break
			}
			if onPath[step.next] {
				if !reported[step.next] {
					reported[step.next] = true
					loop := append(path[indexOf(path, step.next):], step.next)
					problems = append(problems, fmt.Sprintf("forward steps form a cycle: %s", joinCodes(loop)))
				}
				break
			}
			onPath[step.next] = true
			path = append(path, step.next)
			cur = step.next
		}
	}

	return problems
}

func indexOf(path []StateCode, code StateCode) int {
	for i, c := range path {
		if c == code {
			return i
		}
	}
	return 0
}

func joinCodes(codes []StateCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, " -> ")
}

// checkRef reports a reference that is empty or, when states are declared,
// not among them
func (t *Topology) checkRef(what string, code StateCode) []string {
	if code == "" {
		return []string{what + " is empty"}
	}
	if t.declared != nil && !t.declared[code] {
		return []string{fmt.Sprintf("%s %s is not a declared state", what, code)}
	}
	return nil
}

// EntityType returns the entity type the topology belongs to
func (t *Topology) EntityType() string {
	return t.entityType
}

// Completed returns the terminal success state
func (t *Topology) Completed() StateCode {
	return t.completed
}

// Steps returns a copy of the forward steps
func (t *Topology) Steps() map[StateCode]FlowStep {
	out := make(map[StateCode]FlowStep, len(t.forward))
	for k, v := range t.forward {
		out[k] = v
	}
	return out
}

// Rejections returns a copy of the rejection map
func (t *Topology) Rejections() map[StateCode]StateCode {
	return copyEdges(t.rejections)
}

// Transitions returns a copy of the custom transitions
func (t *Topology) Transitions() map[StateCode]StateCode {
	return copyEdges(t.transitions)
}

// States returns every state referenced by the topology, sorted
func (t *Topology) States() []StateCode {
	seen := map[StateCode]bool{t.completed: true}
	for code := range t.declared {
		seen[code] = true
	}
	for from, step := range t.forward {
		seen[from] = true
		seen[step.next] = true
	}
	for _, edges := range []map[StateCode]StateCode{t.rejections, t.transitions} {
		for from, to := range edges {
			seen[from] = true
			seen[to] = true
		}
	}
	return sortedKeys(seen)
}

func copyEdges(src map[StateCode]StateCode) map[StateCode]StateCode {
	out := make(map[StateCode]StateCode, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[StateCode]V) []StateCode {
	keys := make([]StateCode, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
