// Package flowops holds the record-level mutations shared by repositories
// that store a whole flow as one document (memory, redis).
//
// These are persistence rules only: ids must be unique and edges must point
// at stored nodes. Graph invariants are the editor's job.
package flowops

import (
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
)

// AddNode appends n to f.
func AddNode(f *domain.Flow, n domain.FlowNode) error {
	if n.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "node id is required"}
	}
	if _, ok := f.Node(n.ID); ok {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("node %q already exists", n.ID)}
	}
	f.Nodes = append(f.Nodes, n)
	return nil
}

// UpdateNode applies patch to the node with the given id.
func UpdateNode(f *domain.Flow, id string, patch domain.NodePatch) error {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			f.Nodes[i] = patch.ApplyTo(f.Nodes[i])
			return nil
		}
	}
	return &domain.NotFoundError{Kind: domain.KindNode, ID: id}
}

// DeleteNode removes the node and every edge touching it.
func DeleteNode(f *domain.Flow, id string) error {
	idx := -1
	for i, n := range f.Nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}
	f.Nodes = append(f.Nodes[:idx:idx], f.Nodes[idx+1:]...)

	kept := f.Edges[:0:0]
	for _, e := range f.Edges {
		if e.FromNodeID != id && e.ToNodeID != id {
			kept = append(kept, e)
		}
	}
	f.Edges = kept
	return nil
}

// AddEdge appends e to f after checking both endpoints exist.
func AddEdge(f *domain.Flow, e domain.FlowEdge) error {
	if e.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "edge id is required"}
	}
	if _, ok := f.Edge(e.ID); ok {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("edge %q already exists", e.ID)}
	}
	for _, endpoint := range []string{e.FromNodeID, e.ToNodeID} {
		if _, ok := f.Node(endpoint); !ok {
			return &domain.NotFoundError{Kind: domain.KindNode, ID: endpoint}
		}
	}
	f.Edges = append(f.Edges, e)
	return nil
}

// DeleteEdge removes a single edge.
func DeleteEdge(f *domain.Flow, id string) error {
	for i, e := range f.Edges {
		if e.ID == id {
			f.Edges = append(f.Edges[:i:i], f.Edges[i+1:]...)
			return nil
		}
	}
	return &domain.NotFoundError{Kind: domain.KindEdge, ID: id}
}
