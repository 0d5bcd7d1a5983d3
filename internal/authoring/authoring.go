// Package authoring implements the branch-building operations of the flow
// editor on top of a graph.Store.
package authoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/callflow/internal/graph"
	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/domain"
)

// labelLimit caps the auto-generated node label (in runes).
const labelLimit = 30

// BranchSpec describes a customer response and the AI reply it leads to.
type BranchSpec struct {
	ConditionValue string          `json:"condition_value" validate:"required"`
	AIMessage      string          `json:"ai_message" validate:"required"`
	Type           domain.NodeType `json:"node_type,omitempty"`
	Label          string          `json:"label,omitempty"`
	Outcome        string          `json:"outcome,omitempty"`
	CaptureField   string          `json:"capture_field,omitempty"`
}

// Branch is the node and edge created by AddBranch.
type Branch struct {
	Node domain.FlowNode `json:"node"`
	Edge domain.FlowEdge `json:"edge"`
}

// DeleteMode selects what happens to the descendants of a deleted node.
type DeleteMode int

const (
	// Detach removes the node and its incident edges; descendants become orphans.
	Detach DeleteMode = iota
	// Cascade also removes descendants that are no longer reachable from the root.
	Cascade
)

// Authoring wraps a graph store with branch-level operations.
type Authoring struct {
	store *graph.Store
}

// New creates an Authoring over store.
func New(store *graph.Store) *Authoring {
	return &Authoring{store: store}
}

// TypeFor picks the node type of a new branch from its flags.
// Precedence is transfer, end, capture, question.
func TypeFor(endsConversation, transfer, capture bool) domain.NodeType {
	switch {
	case transfer:
		return domain.NodeTypeTransfer
	case endsConversation:
		return domain.NodeTypeEnd
	case capture:
		return domain.NodeTypeCapture
	default:
		return domain.NodeTypeQuestion
	}
}

// DefaultLabel truncates a condition to the label length limit.
func DefaultLabel(condition string) string {
	if utf8.RuneCountInString(condition) <= labelLimit {
		return condition
	}
	return string([]rune(condition)[:labelLimit])
}

// AddBranch creates a child node under parentID and the edge leading to it.
// Either both are inserted or neither is.
func (a *Authoring) AddBranch(parentID string, spec BranchSpec) (Branch, domain.ChangeSet, error) {
	cs := domain.ChangeSet{FlowID: a.store.FlowID()}

	parent, ok := a.store.Node(parentID)
	if !ok {
		return Branch{}, cs, &domain.NotFoundError{Kind: domain.KindNode, ID: parentID}
	}
	if parent.Type.IsTerminal() {
		return Branch{}, cs, &domain.TerminalNodeError{NodeID: parent.ID, Type: parent.Type}
	}

	node, err := branchNode(spec)
	if err != nil {
		return Branch{}, cs, err
	}

	nodeCS, err := a.store.Apply(domain.AddNode{Node: node})
	if err != nil {
		return Branch{}, cs, err
	}
	node = nodeCS.AddedNodes[0]

	edgeCS, err := a.store.Apply(domain.AddEdge{Edge: domain.FlowEdge{
		FromNodeID:     parent.ID,
		ToNodeID:       node.ID,
		ConditionValue: strings.TrimSpace(spec.ConditionValue),
		Label:          strings.TrimSpace(spec.ConditionValue),
	}})
	if err != nil {
		if _, rbErr := a.store.RemoveNode(node.ID); rbErr != nil {
			return Branch{}, cs, fmt.Errorf("add branch: %w (rollback failed: %v)", err, rbErr)
		}
		return Branch{}, cs, err
	}

	cs.Merge(nodeCS)
	cs.Merge(edgeCS)
	return Branch{Node: node, Edge: edgeCS.AddedEdges[0]}, cs, nil
}

func branchNode(spec BranchSpec) (domain.FlowNode, error) {
	condition := strings.TrimSpace(spec.ConditionValue)
	message := strings.TrimSpace(spec.AIMessage)
	if condition == "" {
		return domain.FlowNode{}, &domain.ValidationError{Field: "condition_value", Reason: "customer response is required"}
	}
	if message == "" {
		return domain.FlowNode{}, &domain.ValidationError{Field: "ai_message", Reason: "AI response is required"}
	}

	nodeType := spec.Type
	if nodeType == "" {
		nodeType = domain.NodeTypeQuestion
	}
	if !nodeType.Valid() {
		return domain.FlowNode{}, &domain.ValidationError{Field: "node_type", Reason: fmt.Sprintf("unknown node type %q", nodeType)}
	}
	if nodeType == domain.NodeTypeStart {
		return domain.FlowNode{}, &domain.ValidationError{Field: "node_type", Reason: "only the root can be a start node"}
	}

	label := strings.TrimSpace(spec.Label)
	if label == "" {
		label = DefaultLabel(condition)
	}

	node := domain.FlowNode{
		Label:     label,
		AIMessage: message,
		Type:      nodeType,
	}
	switch nodeType {
	case domain.NodeTypeEnd, domain.NodeTypeTransfer:
		node.Outcome = strings.TrimSpace(spec.Outcome)
	case domain.NodeTypeCapture:
		node.CaptureField = strings.TrimSpace(spec.CaptureField)
	case domain.NodeTypeStart, domain.NodeTypeQuestion, domain.NodeTypeStatement:
	}
	return node, nil
}

// DeleteBranch removes a single edge. The subtree it led to stays in the
// flow and shows up as orphaned until reconnected.
func (a *Authoring) DeleteBranch(edgeID string) (domain.ChangeSet, error) {
	return a.store.Apply(domain.RemoveEdge{ID: edgeID})
}

// DeleteNode removes a node. The root is never deletable from the editor.
func (a *Authoring) DeleteNode(nodeID string, mode DeleteMode) (domain.ChangeSet, error) {
	cs := domain.ChangeSet{FlowID: a.store.FlowID()}

	node, ok := a.store.Node(nodeID)
	if !ok {
		return cs, &domain.NotFoundError{Kind: domain.KindNode, ID: nodeID}
	}
	if node.IsRoot {
		return cs, &domain.InvariantError{Op: "delete_node", Reason: "the root node cannot be deleted"}
	}

	var descendants map[string]struct{}
	if mode == Cascade {
		descendants = validator.ReachableFrom(a.store, nodeID)
	}

	removed, err := a.store.Apply(domain.RemoveNode{ID: nodeID})
	if err != nil {
		return cs, err
	}
	cs.Merge(removed)
	if mode != Cascade {
		return cs, nil
	}

	var reachable map[string]struct{}
	if rootID, ok := a.store.RootID(); ok {
		reachable = validator.ReachableFrom(a.store, rootID)
	}
	for _, n := range a.store.AllNodes() {
		if _, isDesc := descendants[n.ID]; !isDesc {
			continue
		}
		if _, live := reachable[n.ID]; live {
			continue
		}
		step, err := a.store.Apply(domain.RemoveNode{ID: n.ID})
		if err != nil {
			return cs, err
		}
		cs.Merge(step)
	}
	return cs, nil
}
