package dsl

import (
	"fmt"

	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
)

// Builder accumulates the nodes and edges of one flow in insertion order.
type Builder struct {
	flow    domain.Flow
	index   map[string]int
	edgeSeq map[string]int
}

// New creates a builder for an empty flow.
func New(id, name string) *Builder {
	return &Builder{
		flow: domain.Flow{
			ID:       id,
			Name:     name,
			IsActive: true,
			Nodes:    []domain.FlowNode{},
			Edges:    []domain.FlowEdge{},
		},
		index:   make(map[string]int),
		edgeSeq: make(map[string]int),
	}
}

// Describe sets the flow description.
func (b *Builder) Describe(description string) *Builder {
	b.flow.Description = description
	return b
}

// Inactive marks the flow as not active.
func (b *Builder) Inactive() *Builder {
	b.flow.IsActive = false
	return b
}

func (b *Builder) add(id string, t domain.NodeType, message string) *NodeBuilder {
	if i, ok := b.index[id]; ok {
		b.flow.Nodes[i].Type = t
		b.flow.Nodes[i].AIMessage = message
		return &NodeBuilder{builder: b, id: id}
	}
	b.index[id] = len(b.flow.Nodes)
	b.flow.Nodes = append(b.flow.Nodes, domain.FlowNode{
		ID:        id,
		Label:     id,
		AIMessage: message,
		Type:      t,
		IsRoot:    t == domain.NodeTypeStart,
	})
	return &NodeBuilder{builder: b, id: id}
}

// Start adds the root node.
func (b *Builder) Start(id, message string) *NodeBuilder {
	return b.add(id, domain.NodeTypeStart, message)
}

// Ask adds a question node.
func (b *Builder) Ask(id, message string) *NodeBuilder {
	return b.add(id, domain.NodeTypeQuestion, message)
}

// Say adds a statement node.
func (b *Builder) Say(id, message string) *NodeBuilder {
	return b.add(id, domain.NodeTypeStatement, message)
}

// Capture adds a node recording the customer's answer under field.
func (b *Builder) Capture(id, message, field string) *NodeBuilder {
	nb := b.add(id, domain.NodeTypeCapture, message)
	nb.node().CaptureField = field
	return nb
}

// Transfer adds a node handing the call to a human.
func (b *Builder) Transfer(id, message string) *NodeBuilder {
	return b.add(id, domain.NodeTypeTransfer, message)
}

// End adds a closing node with the given outcome.
func (b *Builder) End(id, message, outcome string) *NodeBuilder {
	nb := b.add(id, domain.NodeTypeEnd, message)
	nb.node().Outcome = outcome
	return nb
}

// Flow checks the structure and returns a copy of the built flow.
func (b *Builder) Flow() (domain.Flow, error) {
	if err := validator.CheckStructure(b.flow); err != nil {
		return domain.Flow{}, fmt.Errorf("invalid flow %q: %w", b.flow.ID, err)
	}
	return b.flow.Clone(), nil
}

// MustFlow is Flow for fixtures; it panics on a structural error.
func (b *Builder) MustFlow() domain.Flow {
	f, err := b.Flow()
	if err != nil {
		panic(err)
	}
	return f
}

// Repository builds the flow and seeds an in-memory repository with it.
func (b *Builder) Repository() (*memory.Repository, error) {
	f, err := b.Flow()
	if err != nil {
		return nil, err
	}
	return memory.NewRepository(f), nil
}
