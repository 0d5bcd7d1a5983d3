package domain

import "fmt"

// NodeType is the closed set of behaviours a FlowNode can have.
type NodeType string

const (
	// NodeTypeStart marks the opening line of the call. Only used by the root.
	NodeTypeStart NodeType = "start"
	// NodeTypeQuestion asks the customer something and waits for a reply.
	NodeTypeQuestion NodeType = "question"
	// NodeTypeStatement says something without expecting a specific answer.
	NodeTypeStatement NodeType = "statement"
	// NodeTypeEnd closes the call. Terminal.
	NodeTypeEnd NodeType = "end"
	// NodeTypeTransfer hands the call to a human. Terminal.
	NodeTypeTransfer NodeType = "transfer"
	// NodeTypeCapture records the customer's answer under CaptureField.
	NodeTypeCapture NodeType = "capture"
)

// NodeTypes lists every NodeType in display order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeQuestion,
	NodeTypeStatement,
	NodeTypeEnd,
	NodeTypeTransfer,
	NodeTypeCapture,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStart, NodeTypeQuestion, NodeTypeStatement, NodeTypeEnd, NodeTypeTransfer, NodeTypeCapture:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether nodes of this type end the conversation.
// Terminal nodes never have outgoing edges.
func (t NodeType) IsTerminal() bool {
	switch t {
	case NodeTypeEnd, NodeTypeTransfer:
		return true
	case NodeTypeStart, NodeTypeQuestion, NodeTypeStatement, NodeTypeCapture:
		return false
	default:
		return false
	}
}

// ParseNodeType converts a raw string into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "node_type", Reason: fmt.Sprintf("unknown node type %q", s)}
	}
	return t, nil
}

// FlowNode is a single AI utterance in the call script.
type FlowNode struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id"`
	Label string `json:"label" yaml:"label" mapstructure:"label"`

	// AIMessage is what the agent says. It may contain (field), [field] or
	// {field} placeholders filled from contact data at call time.
	AIMessage string `json:"ai_message" yaml:"ai_message" mapstructure:"ai_message"`

	Type   NodeType `json:"node_type" yaml:"node_type" mapstructure:"node_type"`
	IsRoot bool     `json:"is_root" yaml:"is_root,omitempty" mapstructure:"is_root"`

	// Outcome tags how the call ended. Meaningful for end and transfer only.
	Outcome string `json:"outcome,omitempty" yaml:"outcome,omitempty" mapstructure:"outcome"`

	// CaptureField names the contact attribute a capture node records.
	CaptureField string `json:"capture_field,omitempty" yaml:"capture_field,omitempty" mapstructure:"capture_field"`

	// Canvas coordinates. Presentation only.
	PositionX float64 `json:"position_x" yaml:"position_x,omitempty" mapstructure:"position_x"`
	PositionY float64 `json:"position_y" yaml:"position_y,omitempty" mapstructure:"position_y"`
}

// NodePatch is a partial update of a FlowNode. Nil fields are left untouched.
// ID and IsRoot are not patchable.
type NodePatch struct {
	Label        *string   `json:"label,omitempty" mapstructure:"label"`
	AIMessage    *string   `json:"ai_message,omitempty" mapstructure:"ai_message"`
	Type         *NodeType `json:"node_type,omitempty" mapstructure:"node_type"`
	Outcome      *string   `json:"outcome,omitempty" mapstructure:"outcome"`
	CaptureField *string   `json:"capture_field,omitempty" mapstructure:"capture_field"`
	PositionX    *float64  `json:"position_x,omitempty" mapstructure:"position_x"`
	PositionY    *float64  `json:"position_y,omitempty" mapstructure:"position_y"`
}

// IsEmpty reports whether the patch changes nothing.
func (p NodePatch) IsEmpty() bool {
	return p.Label == nil && p.AIMessage == nil && p.Type == nil &&
		p.Outcome == nil && p.CaptureField == nil &&
		p.PositionX == nil && p.PositionY == nil
}

// ApplyTo returns a copy of n with the patch applied.
func (p NodePatch) ApplyTo(n FlowNode) FlowNode {
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.AIMessage != nil {
		n.AIMessage = *p.AIMessage
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Outcome != nil {
		n.Outcome = *p.Outcome
	}
	if p.CaptureField != nil {
		n.CaptureField = *p.CaptureField
	}
	if p.PositionX != nil {
		n.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		n.PositionY = *p.PositionY
	}
	return n
}
