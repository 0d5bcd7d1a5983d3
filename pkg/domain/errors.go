package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every typed error below unwraps to one of them so callers
// can branch with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvariant         = errors.New("invariant violated")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTerminalNode      = errors.New("terminal node")
)

// ErrSessionNotFound is returned when a preview session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoMatch is returned when an utterance selects none of the outgoing edges.
var ErrNoMatch = errors.New("no matching response")

// ValidationError reports malformed input, e.g. an empty condition value or a second root.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Entity kinds used by NotFoundError.
const (
	KindFlow    = "flow"
	KindNode    = "node"
	KindEdge    = "edge"
	KindSession = "session"
)

// NotFoundError reports a reference to a missing flow, node, edge or session.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvariantError reports a mutation that would break a structural rule of the graph.
type InvariantError struct {
	Op     string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// InvalidTransitionError is returned when an edge does not leave the current node.
type InvalidTransitionError struct {
	EdgeID        string
	FromNodeID    string
	CurrentNodeID string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("edge %q leaves %q, but the cursor is on %q", e.EdgeID, e.FromNodeID, e.CurrentNodeID)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// TerminalNodeError is returned when a branch is added under an end or transfer node.
type TerminalNodeError struct {
	NodeID string
	Type   NodeType
}

func (e *TerminalNodeError) Error() string {
	return fmt.Sprintf("node %q is terminal (%s) and cannot have responses", e.NodeID, e.Type)
}

func (e *TerminalNodeError) Unwrap() error { return ErrTerminalNode }

// ErrorKind names the sentinel behind err, or "internal" for anything else.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrTerminalNode):
		return "terminal_node"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	default:
		return "internal"
	}
}
