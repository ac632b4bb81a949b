package digester

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrPatternConflict is returned when the same rule is registered twice
	// at the same pattern. Only comparable rule values are detected. Func-typed
	// rules such as PrimitiveRule, and structs holding callbacks such as
	// Funcs, are never reported; registering one twice makes it fire twice.
	ErrPatternConflict = errors.New("digester: rule already registered at pattern")

	// ErrRegistryFrozen is returned when a frozen registry is modified.
	ErrRegistryFrozen = errors.New("digester: registry is frozen")

	// ErrEmptyPattern is returned when registering a rule at an empty pattern.
	ErrEmptyPattern = errors.New("digester: empty pattern")

	// ErrNilRule is returned when registering a nil rule.
	ErrNilRule = errors.New("digester: nil rule")
)

// Stack and rule errors.
var (
	// ErrStackEmpty is returned when popping or peeking past the bottom of a stack.
	ErrStackEmpty = errors.New("digester: stack empty")

	// ErrTypeMismatch is returned by PeekAs and PopAs when the stack value
	// has a different type.
	ErrTypeMismatch = errors.New("digester: unexpected stack value type")

	// ErrNotPrimitive is returned by PrimitiveRule for a constructed TLV.
	ErrNotPrimitive = errors.New("digester: rule requires a primitive TLV")
)

// Phase identifies the rule callback that produced an error.
type Phase uint8

// Rule callback phases.
const (
	PhaseTag Phase = iota
	PhaseLength
	PhaseValue
	PhaseFinish
)

// String returns the callback name.
func (p Phase) String() string {
	switch p {
	case PhaseTag:
		return "tag"
	case PhaseLength:
		return "length"
	case PhaseValue:
		return "value"
	case PhaseFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// RuleError reports a failed rule callback together with the pattern at
// which the rule was matched.
type RuleError struct {
	Pattern Pattern
	Rule    Rule
	Phase   Phase
	Err     error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("digester: rule %T failed in %s at %s: %v", e.Rule, e.Phase, e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Err
}
