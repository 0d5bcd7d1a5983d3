package domain

// Command is an explicit mutation of a Flow aggregate.
// Applying a command yields a ChangeSet describing exactly what changed.
type Command interface {
	CommandName() string
}

// AddNode inserts a node. An empty ID is filled by the store.
type AddNode struct {
	Node FlowNode `json:"node"`
}

// UpdateNode patches an existing node.
type UpdateNode struct {
	ID    string    `json:"id"`
	Patch NodePatch `json:"patch"`
}

// RemoveNode deletes a node and every edge touching it.
type RemoveNode struct {
	ID string `json:"id"`
}

// AddEdge inserts an edge. An empty ID is filled by the store.
type AddEdge struct {
	Edge FlowEdge `json:"edge"`
}

// RemoveEdge deletes a single edge.
type RemoveEdge struct {
	ID string `json:"id"`
}

// UpdateFlowMeta renames, describes or toggles the flow.
type UpdateFlowMeta struct {
	Meta FlowMeta `json:"meta"`
}

func (AddNode) CommandName() string        { return "add_node" }
func (UpdateNode) CommandName() string     { return "update_node" }
func (RemoveNode) CommandName() string     { return "remove_node" }
func (AddEdge) CommandName() string        { return "add_edge" }
func (RemoveEdge) CommandName() string     { return "remove_edge" }
func (UpdateFlowMeta) CommandName() string { return "update_flow_meta" }

// FullPatch returns a patch that overwrites every patchable field of n.
func FullPatch(n FlowNode) NodePatch {
	t := n.Type
	return NodePatch{
		Label:        &n.Label,
		AIMessage:    &n.AIMessage,
		Type:         &t,
		Outcome:      &n.Outcome,
		CaptureField: &n.CaptureField,
		PositionX:    &n.PositionX,
		PositionY:    &n.PositionY,
	}
}
