package workflow

import "encoding/json"

// StateCode names one node in an entity type's workflow
type StateCode string

// String returns the string representation of the state code
func (c StateCode) String() string {
	return string(c)
}

// State is the current workflow state of an entity. The zero value is NoState,
// meaning no workflow state has been assigned.
type State struct {
	code StateCode
	set  bool
}

// NoState is the absent state
var NoState = State{}

// StateOf returns a State holding the given code. An empty code yields NoState.
func StateOf(code StateCode) State {
	if code == "" {
		return NoState
	}
	return State{code: code, set: true}
}

// Code returns the state code and whether one is assigned
func (s State) Code() (StateCode, bool) {
	return s.code, s.set
}

// IsSet returns true if a state code is assigned
func (s State) IsSet() bool {
	return s.set
}

// Is returns true if the state is assigned and equal to code
func (s State) Is(code StateCode) bool {
	return s.set && s.code == code
}

// String returns the state code, or an empty string for NoState
func (s State) String() string {
	return string(s.code)
}

// MarshalJSON encodes NoState as null and any other state as its code
func (s State) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(string(s.code))
}

// UnmarshalJSON decodes null or an empty string as NoState
func (s *State) UnmarshalJSON(data []byte) error {
	var code *string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	if code == nil {
		*s = NoState
		return nil
	}
	*s = StateOf(StateCode(*code))
	return nil
}
