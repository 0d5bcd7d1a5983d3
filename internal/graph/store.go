// Package graph holds the in-memory nodes and edges of a single flow and the
// mutation primitives that keep its structural invariants.
//
// A Store is not safe for concurrent use. Callers that share one across
// goroutines (the root Editor does) must serialize access.
package graph

import (
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/google/uuid"
)

// Store is the GraphStore of one flow.
type Store struct {
	meta  domain.Flow // ID, Name, Description, IsActive; Nodes/Edges unused
	nodes []domain.FlowNode
	edges []domain.FlowEdge

	nodeIdx map[string]int
	edgeIdx map[string]int

	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the uuid generator used for empty node and edge ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.New().String()
}

// New loads flow into a Store, rejecting structural violations.
func New(flow domain.Flow, opts ...Option) (*Store, error) {
	s := &Store{
		meta:  domain.Flow{ID: flow.ID, Name: flow.Name, Description: flow.Description, IsActive: flow.IsActive},
		newID: NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reindex()

	for _, n := range flow.Nodes {
		if _, err := s.AddNode(n); err != nil {
			return nil, fmt.Errorf("load node %q: %w", n.ID, err)
		}
	}
	for _, e := range flow.Edges {
		if _, err := s.AddEdge(e); err != nil {
			return nil, fmt.Errorf("load edge %q: %w", e.ID, err)
		}
	}
	return s, nil
}

func (s *Store) reindex() {
	s.nodeIdx = make(map[string]int, len(s.nodes))
	for i, n := range s.nodes {
		s.nodeIdx[n.ID] = i
	}
	s.edgeIdx = make(map[string]int, len(s.edges))
	for i, e := range s.edges {
		s.edgeIdx[e.ID] = i
	}
}

// FlowID returns the id of the flow held by the store.
func (s *Store) FlowID() string {
	return s.meta.ID
}

// RootID returns the root node id. ok is false when the flow has no root.
func (s *Store) RootID() (string, bool) {
	for _, n := range s.nodes {
		if n.IsRoot {
			return n.ID, true
		}
	}
	return "", false
}

// Node looks up a node by id.
func (s *Store) Node(id string) (domain.FlowNode, bool) {
	i, ok := s.nodeIdx[id]
	if !ok {
		return domain.FlowNode{}, false
	}
	return s.nodes[i], true
}

// Edge looks up an edge by id.
func (s *Store) Edge(id string) (domain.FlowEdge, bool) {
	i, ok := s.edgeIdx[id]
	if !ok {
		return domain.FlowEdge{}, false
	}
	return s.edges[i], true
}

// AllNodes returns a copy of the nodes in insertion order.
func (s *Store) AllNodes() []domain.FlowNode {
	return append([]domain.FlowNode(nil), s.nodes...)
}

// AllEdges returns a copy of the edges in insertion order.
func (s *Store) AllEdges() []domain.FlowEdge {
	return append([]domain.FlowEdge(nil), s.edges...)
}

// OutgoingEdges returns the edges leaving id in insertion order.
func (s *Store) OutgoingEdges(id string) []domain.FlowEdge {
	var out []domain.FlowEdge
	for _, e := range s.edges {
		if e.FromNodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns the edges entering id in insertion order.
func (s *Store) IncomingEdges(id string) []domain.FlowEdge {
	var out []domain.FlowEdge
	for _, e := range s.edges {
		if e.ToNodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a deep copy of the whole flow.
func (s *Store) Snapshot() domain.Flow {
	f := s.meta
	f.Nodes = append([]domain.FlowNode{}, s.nodes...)
	f.Edges = append([]domain.FlowEdge{}, s.edges...)
	return f
}

// Restore replaces the store contents with a snapshot taken earlier.
// The snapshot is trusted; it is not re-validated.
func (s *Store) Restore(f domain.Flow) {
	s.meta = domain.Flow{ID: f.ID, Name: f.Name, Description: f.Description, IsActive: f.IsActive}
	s.nodes = append([]domain.FlowNode(nil), f.Nodes...)
	s.edges = append([]domain.FlowEdge(nil), f.Edges...)
	s.reindex()
}

// AddNode inserts node and returns its id. An empty id is generated.
func (s *Store) AddNode(node domain.FlowNode) (string, error) {
	if node.ID == "" {
		node.ID = s.newID()
	}
	if _, exists := s.nodeIdx[node.ID]; exists {
		return "", &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("node %q already exists", node.ID)}
	}
	if !node.Type.Valid() {
		return "", &domain.ValidationError{Field: "node_type", Reason: fmt.Sprintf("unknown node type %q", node.Type)}
	}
	if node.IsRoot {
		if rootID, ok := s.RootID(); ok {
			return "", &domain.ValidationError{Field: "is_root", Reason: fmt.Sprintf("flow already has root %q", rootID)}
		}
	}

	s.nodes = append(s.nodes, node)
	s.nodeIdx[node.ID] = len(s.nodes) - 1
	return node.ID, nil
}

// UpdateNode applies patch to the node with the given id.
func (s *Store) UpdateNode(id string, patch domain.NodePatch) (domain.FlowNode, error) {
	i, ok := s.nodeIdx[id]
	if !ok {
		return domain.FlowNode{}, &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}
	updated := patch.ApplyTo(s.nodes[i])
	if !updated.Type.Valid() {
		return domain.FlowNode{}, &domain.ValidationError{Field: "node_type", Reason: fmt.Sprintf("unknown node type %q", updated.Type)}
	}
	if updated.Type.IsTerminal() && len(s.OutgoingEdges(id)) > 0 {
		return domain.FlowNode{}, &domain.InvariantError{
			Op:     "update_node",
			Reason: fmt.Sprintf("node %q has responses and cannot become %s", id, updated.Type),
		}
	}
	s.nodes[i] = updated
	return updated, nil
}

// RemoveNode deletes the node and every edge touching it. It returns the
// removed edges. The root can only be removed once nothing references it.
func (s *Store) RemoveNode(id string) ([]domain.FlowEdge, error) {
	i, ok := s.nodeIdx[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}

	var removed []domain.FlowEdge
	kept := s.edges[:0:0]
	for _, e := range s.edges {
		if e.FromNodeID == id || e.ToNodeID == id {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	if s.nodes[i].IsRoot && len(removed) > 0 {
		return nil, &domain.InvariantError{
			Op:     "remove_node",
			Reason: fmt.Sprintf("root %q still has %d edge(s)", id, len(removed)),
		}
	}

	s.nodes = append(s.nodes[:i:i], s.nodes[i+1:]...)
	s.edges = kept
	s.reindex()
	return removed, nil
}

// AddEdge inserts edge and returns its id. An empty id is generated and an
// empty label defaults to the condition value.
func (s *Store) AddEdge(edge domain.FlowEdge) (string, error) {
	if edge.ID == "" {
		edge.ID = s.newID()
	}
	if _, exists := s.edgeIdx[edge.ID]; exists {
		return "", &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("edge %q already exists", edge.ID)}
	}
	from, ok := s.Node(edge.FromNodeID)
	if !ok {
		return "", &domain.NotFoundError{Kind: domain.KindNode, ID: edge.FromNodeID}
	}
	to, ok := s.Node(edge.ToNodeID)
	if !ok {
		return "", &domain.NotFoundError{Kind: domain.KindNode, ID: edge.ToNodeID}
	}
	if from.Type.IsTerminal() {
		return "", &domain.InvariantError{
			Op:     "add_edge",
			Reason: fmt.Sprintf("node %q is %s and cannot have responses", from.ID, from.Type),
		}
	}
	if to.IsRoot {
		return "", &domain.InvariantError{
			Op:     "add_edge",
			Reason: fmt.Sprintf("root %q cannot have incoming edges", to.ID),
		}
	}
	if edge.Label == "" {
		edge.Label = edge.ConditionValue
	}

	s.edges = append(s.edges, edge)
	s.edgeIdx[edge.ID] = len(s.edges) - 1
	return edge.ID, nil
}

// RemoveEdge deletes a single edge and returns it. Nodes are untouched.
func (s *Store) RemoveEdge(id string) (domain.FlowEdge, error) {
	i, ok := s.edgeIdx[id]
	if !ok {
		return domain.FlowEdge{}, &domain.NotFoundError{Kind: domain.KindEdge, ID: id}
	}
	removed := s.edges[i]
	s.edges = append(s.edges[:i:i], s.edges[i+1:]...)
	s.reindex()
	return removed, nil
}

// UpdateMeta applies a meta patch to the flow.
func (s *Store) UpdateMeta(meta domain.FlowMeta) {
	meta.ApplyTo(&s.meta)
}
