package authoring

import (
	"fmt"

	"github.com/aretw0/callflow/internal/runtime"
	"github.com/aretw0/callflow/pkg/domain"
)

// Selection is the editor's view state: the chosen branch index per node.
// Missing entries mean the first branch.
type Selection map[string]int

// Select records that nodeID should follow its idx-th outgoing edge.
func (s Selection) Select(g domain.GraphView, nodeID string, idx int) error {
	if _, ok := g.Node(nodeID); !ok {
		return &domain.NotFoundError{Kind: domain.KindNode, ID: nodeID}
	}
	n := len(g.OutgoingEdges(nodeID))
	if idx < 0 || idx >= n {
		return &domain.ValidationError{Field: "index", Reason: fmt.Sprintf("node %q has %d response(s), got index %d", nodeID, n, idx)}
	}
	s[nodeID] = idx
	return nil
}

// PathStep is one node of the selected path.
type PathStep struct {
	Node     domain.FlowNode   `json:"node"`
	Choices  []domain.FlowEdge `json:"choices"`
	Selected int               `json:"selected"`

	// Edge is the branch followed out of Node; nil on the last step.
	Edge *domain.FlowEdge `json:"edge,omitempty"`

	// Revisit marks a step that closes a cycle; the walk stops there.
	Revisit bool `json:"revisit,omitempty"`
}

// SelectedPath walks from the root following sel and returns the visited
// steps. It stops at a terminal node or the first revisited node.
func SelectedPath(g domain.GraphView, sel Selection) []PathStep {
	rootID, ok := g.RootID()
	if !ok {
		return nil
	}

	cursor := runtime.NewCursor(g, rootID)
	visited := make(map[string]struct{})
	var path []PathStep

	for {
		node, ok := cursor.CurrentNode()
		if !ok {
			return path
		}
		step := PathStep{Node: node, Choices: cursor.Choices()}
		if _, seen := visited[node.ID]; seen {
			step.Revisit = true
			return append(path, step)
		}
		visited[node.ID] = struct{}{}

		if runtime.IsTerminal(g, node) {
			return append(path, step)
		}

		idx := sel[node.ID]
		if idx < 0 || idx >= len(step.Choices) {
			idx = 0
		}
		edge := step.Choices[idx]
		step.Selected = idx
		step.Edge = &edge
		path = append(path, step)

		if _, err := cursor.Advance(edge); err != nil {
			return path
		}
	}
}
