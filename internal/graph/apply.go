package graph

import (
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
)

// Apply executes cmd against the store and returns what changed.
// A failed command leaves the store untouched.
func (s *Store) Apply(cmd domain.Command) (domain.ChangeSet, error) {
	cs := domain.ChangeSet{FlowID: s.meta.ID}

	switch c := cmd.(type) {
	case domain.AddNode:
		id, err := s.AddNode(c.Node)
		if err != nil {
			return cs, err
		}
		n, _ := s.Node(id)
		cs.AddedNodes = []domain.FlowNode{n}

	case domain.UpdateNode:
		n, err := s.UpdateNode(c.ID, c.Patch)
		if err != nil {
			return cs, err
		}
		cs.UpdatedNodes = []domain.FlowNode{n}

	case domain.RemoveNode:
		removed, err := s.RemoveNode(c.ID)
		if err != nil {
			return cs, err
		}
		for _, e := range removed {
			cs.RemovedEdges = append(cs.RemovedEdges, e.ID)
		}
		cs.RemovedNodes = []string{c.ID}

	case domain.AddEdge:
		id, err := s.AddEdge(c.Edge)
		if err != nil {
			return cs, err
		}
		e, _ := s.Edge(id)
		cs.AddedEdges = []domain.FlowEdge{e}

	case domain.RemoveEdge:
		if _, err := s.RemoveEdge(c.ID); err != nil {
			return cs, err
		}
		cs.RemovedEdges = []string{c.ID}

	case domain.UpdateFlowMeta:
		if c.Meta.Name != nil && *c.Meta.Name == "" {
			return cs, &domain.ValidationError{Field: "name", Reason: "flow name is required"}
		}
		s.UpdateMeta(c.Meta)
		meta := c.Meta
		cs.Meta = &meta

	default:
		return cs, &domain.ValidationError{Field: "command", Reason: fmt.Sprintf("unsupported command %T", cmd)}
	}

	return cs, nil
}
