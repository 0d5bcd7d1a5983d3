package loam

import (
	"github.com/aretw0/callflow/pkg/domain"
)

// FlowMetadata is the frontmatter of a flow document. The markdown body
// holds the flow description.
type FlowMetadata struct {
	ID       string         `json:"id" mapstructure:"id"`
	Name     string         `json:"name" mapstructure:"name"`
	IsActive bool           `json:"is_active" mapstructure:"is_active"`
	Nodes    []NodeMetadata `json:"nodes" mapstructure:"nodes"`
	Edges    []EdgeMetadata `json:"edges" mapstructure:"edges"`
}

// NodeMetadata is one node entry. Short keys keep hand-written files terse.
type NodeMetadata struct {
	ID           string  `json:"id" mapstructure:"id"`
	Label        string  `json:"label,omitempty" mapstructure:"label"`
	Message      string  `json:"message" mapstructure:"message"`
	Type         string  `json:"type" mapstructure:"type"`
	Root         bool    `json:"root,omitempty" mapstructure:"root"`
	Outcome      string  `json:"outcome,omitempty" mapstructure:"outcome"`
	CaptureField string  `json:"capture_field,omitempty" mapstructure:"capture_field"`
	X            float64 `json:"x,omitempty" mapstructure:"x"`
	Y            float64 `json:"y,omitempty" mapstructure:"y"`
}

// EdgeMetadata is one customer response. Label defaults to Condition.
type EdgeMetadata struct {
	ID        string `json:"id" mapstructure:"id"`
	From      string `json:"from" mapstructure:"from"`
	To        string `json:"to" mapstructure:"to"`
	Condition string `json:"condition" mapstructure:"condition"`
	Label     string `json:"label,omitempty" mapstructure:"label"`
}

func (m NodeMetadata) toDomain() domain.FlowNode {
	nodeType := domain.NodeType(m.Type)
	if m.Type == "" {
		nodeType = domain.NodeTypeQuestion
		if m.Root {
			nodeType = domain.NodeTypeStart
		}
	}
	return domain.FlowNode{
		ID:           m.ID,
		Label:        m.Label,
		AIMessage:    m.Message,
		Type:         nodeType,
		IsRoot:       m.Root,
		Outcome:      m.Outcome,
		CaptureField: m.CaptureField,
		PositionX:    m.X,
		PositionY:    m.Y,
	}
}

func (m EdgeMetadata) toDomain() domain.FlowEdge {
	label := m.Label
	if label == "" {
		label = m.Condition
	}
	return domain.FlowEdge{
		ID:             m.ID,
		FromNodeID:     m.From,
		ToNodeID:       m.To,
		ConditionValue: m.Condition,
		Label:          label,
	}
}

func metadataFromFlow(f domain.Flow) FlowMetadata {
	meta := FlowMetadata{
		ID:       f.ID,
		Name:     f.Name,
		IsActive: f.IsActive,
		Nodes:    make([]NodeMetadata, 0, len(f.Nodes)),
		Edges:    make([]EdgeMetadata, 0, len(f.Edges)),
	}
	for _, n := range f.Nodes {
		meta.Nodes = append(meta.Nodes, NodeMetadata{
			ID:           n.ID,
			Label:        n.Label,
			Message:      n.AIMessage,
			Type:         string(n.Type),
			Root:         n.IsRoot,
			Outcome:      n.Outcome,
			CaptureField: n.CaptureField,
			X:            n.PositionX,
			Y:            n.PositionY,
		})
	}
	for _, e := range f.Edges {
		em := EdgeMetadata{ID: e.ID, From: e.FromNodeID, To: e.ToNodeID, Condition: e.ConditionValue}
		if e.Label != e.ConditionValue {
			em.Label = e.Label
		}
		meta.Edges = append(meta.Edges, em)
	}
	return meta
}
