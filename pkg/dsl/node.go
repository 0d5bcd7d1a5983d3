package dsl

import (
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
)

// NodeBuilder configures the node just added and its outgoing edges.
// Its node-adding methods delegate to the Builder so a flow reads as one chain.
type NodeBuilder struct {
	builder *Builder
	id      string
}

func (n *NodeBuilder) node() *domain.FlowNode {
	return &n.builder.flow.Nodes[n.builder.index[n.id]]
}

// Label overrides the display label, which defaults to the node id.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node().Label = label
	return n
}

// Outcome tags how the call ends at this node.
func (n *NodeBuilder) Outcome(tag string) *NodeBuilder {
	n.node().Outcome = tag
	return n
}

// At sets the canvas position.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	node := n.node()
	node.PositionX, node.PositionY = x, y
	return n
}

// Branch adds an edge from this node taken when the customer says condition.
func (n *NodeBuilder) Branch(condition, target string) *NodeBuilder {
	return n.BranchLabel(condition, "", target)
}

// BranchLabel is Branch with a display label different from the condition.
func (n *NodeBuilder) BranchLabel(condition, label, target string) *NodeBuilder {
	b := n.builder
	b.edgeSeq[n.id]++
	b.flow.Edges = append(b.flow.Edges, domain.FlowEdge{
		ID:             fmt.Sprintf("%s-%d", n.id, b.edgeSeq[n.id]),
		FromNodeID:     n.id,
		ToNodeID:       target,
		ConditionValue: condition,
		Label:          label,
	})
	return n
}

func (n *NodeBuilder) Start(id, message string) *NodeBuilder {
	return n.builder.Start(id, message)
}

func (n *NodeBuilder) Ask(id, message string) *NodeBuilder {
	return n.builder.Ask(id, message)
}

func (n *NodeBuilder) Say(id, message string) *NodeBuilder {
	return n.builder.Say(id, message)
}

func (n *NodeBuilder) Capture(id, message, field string) *NodeBuilder {
	return n.builder.Capture(id, message, field)
}

func (n *NodeBuilder) Transfer(id, message string) *NodeBuilder {
	return n.builder.Transfer(id, message)
}

func (n *NodeBuilder) End(id, message, outcome string) *NodeBuilder {
	return n.builder.End(id, message, outcome)
}

// Flow finishes the chain; see Builder.Flow.
func (n *NodeBuilder) Flow() (domain.Flow, error) {
	return n.builder.Flow()
}

// MustFlow finishes the chain; see Builder.MustFlow.
func (n *NodeBuilder) MustFlow() domain.Flow {
	return n.builder.MustFlow()
}
