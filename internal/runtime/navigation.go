package runtime

import (
	"github.com/aretw0/callflow/pkg/domain"
)

// Cursor is the traversal pointer over a flow graph. It is shared by the
// authoring "selected path" view and the preview engine, so both obey the
// same transition rule: only an edge leaving the current node can be taken.
type Cursor struct {
	graph   domain.GraphView
	current string
}

// NewCursor places a cursor on startID.
func NewCursor(g domain.GraphView, startID string) *Cursor {
	return &Cursor{graph: g, current: startID}
}

// Current returns the id of the node under the cursor.
func (c *Cursor) Current() string {
	return c.current
}

// CurrentNode resolves the node under the cursor. ok is false when the node
// has been deleted since the cursor moved there.
func (c *Cursor) CurrentNode() (domain.FlowNode, bool) {
	return c.graph.Node(c.current)
}

// Choices returns the outgoing edges of the current node in insertion order.
func (c *Cursor) Choices() []domain.FlowEdge {
	return c.graph.OutgoingEdges(c.current)
}

// Advance follows edge and returns the node it lands on.
// The edge must leave the current node and still exist in the graph.
func (c *Cursor) Advance(edge domain.FlowEdge) (domain.FlowNode, error) {
	if edge.FromNodeID != c.current {
		return domain.FlowNode{}, &domain.InvalidTransitionError{
			EdgeID:        edge.ID,
			FromNodeID:    edge.FromNodeID,
			CurrentNodeID: c.current,
		}
	}

	live, ok := c.findChoice(edge.ID)
	if !ok {
		return domain.FlowNode{}, &domain.NotFoundError{Kind: domain.KindEdge, ID: edge.ID}
	}
	next, ok := c.graph.Node(live.ToNodeID)
	if !ok {
		return domain.FlowNode{}, &domain.NotFoundError{Kind: domain.KindNode, ID: live.ToNodeID}
	}

	c.current = next.ID
	return next, nil
}

// Reset moves the cursor back to rootID.
func (c *Cursor) Reset(rootID string) {
	c.current = rootID
}

func (c *Cursor) findChoice(edgeID string) (domain.FlowEdge, bool) {
	for _, e := range c.Choices() {
		if e.ID == edgeID {
			return e, true
		}
	}
	return domain.FlowEdge{}, false
}

// IsTerminal reports whether the conversation cannot continue from node:
// either its type ends the call or no response has been defined yet.
func IsTerminal(g domain.GraphView, node domain.FlowNode) bool {
	return node.Type.IsTerminal() || len(g.OutgoingEdges(node.ID)) == 0
}
