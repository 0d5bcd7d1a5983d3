package domain

// DefaultGreeting is the root message of a freshly created flow.
const DefaultGreeting = "Hi, this is an automated call. Am I speaking with (name)?"

// Flow is the aggregate of one call script.
// Nodes and Edges keep insertion order, which also orders outgoing edges.
type Flow struct {
	ID          string     `json:"id" yaml:"id" mapstructure:"id"`
	Name        string     `json:"name" yaml:"name" mapstructure:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	IsActive    bool       `json:"is_active" yaml:"is_active" mapstructure:"is_active"`
	Nodes       []FlowNode `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges       []FlowEdge `json:"edges" yaml:"edges" mapstructure:"edges"`
}

// FlowSummary is the catalogue view of a Flow.
type FlowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	NodeCount   int    `json:"node_count"`
}

// FlowMeta is a partial update of the flow's descriptive fields.
type FlowMeta struct {
	Name        *string `json:"name,omitempty" mapstructure:"name"`
	Description *string `json:"description,omitempty" mapstructure:"description"`
	IsActive    *bool   `json:"is_active,omitempty" mapstructure:"is_active"`
}

// IsEmpty reports whether the meta update changes nothing.
func (m FlowMeta) IsEmpty() bool {
	return m.Name == nil && m.Description == nil && m.IsActive == nil
}

// ApplyTo copies the set fields of m onto f.
func (m FlowMeta) ApplyTo(f *Flow) {
	if m.Name != nil {
		f.Name = *m.Name
	}
	if m.Description != nil {
		f.Description = *m.Description
	}
	if m.IsActive != nil {
		f.IsActive = *m.IsActive
	}
}

// NewFlow creates an empty-with-root flow: a single start node holding the
// default greeting.
func NewFlow(id, name, description, rootID string) Flow {
	return Flow{
		ID:          id,
		Name:        name,
		Description: description,
		Nodes: []FlowNode{{
			ID:        rootID,
			Label:     "Greeting",
			AIMessage: DefaultGreeting,
			Type:      NodeTypeStart,
			IsRoot:    true,
		}},
		Edges: []FlowEdge{},
	}
}

// Summary returns the catalogue view of f.
func (f Flow) Summary() FlowSummary {
	return FlowSummary{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		IsActive:    f.IsActive,
		NodeCount:   len(f.Nodes),
	}
}

// RootID returns the id of the first root node, if any.
func (f Flow) RootID() (string, bool) {
	for _, n := range f.Nodes {
		if n.IsRoot {
			return n.ID, true
		}
	}
	return "", false
}

// Node looks up a node by id.
func (f Flow) Node(id string) (FlowNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return FlowNode{}, false
}

// Edge looks up an edge by id.
func (f Flow) Edge(id string) (FlowEdge, bool) {
	for _, e := range f.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return FlowEdge{}, false
}

// OutgoingEdges returns the edges leaving id in insertion order.
func (f Flow) OutgoingEdges(id string) []FlowEdge {
	var out []FlowEdge
	for _, e := range f.Edges {
		if e.FromNodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// AllNodes returns the nodes in insertion order.
func (f Flow) AllNodes() []FlowNode {
	return f.Nodes
}

// Clone returns a deep copy of f.
func (f Flow) Clone() Flow {
	out := f
	out.Nodes = append([]FlowNode(nil), f.Nodes...)
	out.Edges = append([]FlowEdge(nil), f.Edges...)
	if out.Nodes == nil {
		out.Nodes = []FlowNode{}
	}
	if out.Edges == nil {
		out.Edges = []FlowEdge{}
	}
	return out
}

// GraphView is the read side shared by Flow snapshots and live graph stores.
type GraphView interface {
	RootID() (string, bool)
	Node(id string) (FlowNode, bool)
	AllNodes() []FlowNode
	OutgoingEdges(id string) []FlowEdge
}

var _ GraphView = Flow{}
