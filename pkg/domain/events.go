package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventMutation  EventType = "mutation"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent represents a preview entering or leaving a node.
type NodeEvent struct {
	EventBase
	SessionID string   `json:"session_id"`
	NodeID    string   `json:"node_id"`
	NodeType  NodeType `json:"node_type"`
}

// MutationEvent is emitted after a command was applied to a flow.
type MutationEvent struct {
	EventBase
	FlowID  string     `json:"flow_id"`
	Command string     `json:"command"`
	Changes *ChangeSet `json:"changes,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnMutation  func(context.Context, *MutationEvent)
}
