// Package validator classifies the nodes of a flow as connected or orphaned
// and raises advisory warnings about missing per-type attributes.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
)

// Report is the result of validating a flow. Nothing in it blocks saving.
type Report struct {
	RootID    string            `json:"root_id,omitempty"`
	Connected []string          `json:"connected"`
	Orphans   []domain.FlowNode `json:"orphans"`
	Warnings  []domain.Warning  `json:"warnings"`
}

// HasIssues reports whether the flow has orphans or warnings.
func (r Report) HasIssues() bool {
	return len(r.Orphans) > 0 || len(r.Warnings) > 0
}

// ReachableFrom returns the ids reachable from rootID by following outgoing
// edges, rootID included. Cycles are handled by the visited set.
func ReachableFrom(g domain.GraphView, rootID string) map[string]struct{} {
	visited := make(map[string]struct{})
	if _, ok := g.Node(rootID); !ok {
		return visited
	}

	queue := []string{rootID}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if _, seen := visited[currentID]; seen {
			continue
		}
		visited[currentID] = struct{}{}

		for _, e := range g.OutgoingEdges(currentID) {
			if _, seen := visited[e.ToNodeID]; !seen {
				queue = append(queue, e.ToNodeID)
			}
		}
	}
	return visited
}

// Orphans returns the nodes not reachable from the root, in insertion order.
// Without a root every node is an orphan.
func Orphans(g domain.GraphView) []domain.FlowNode {
	var reachable map[string]struct{}
	if rootID, ok := g.RootID(); ok {
		reachable = ReachableFrom(g, rootID)
	}

	out := []domain.FlowNode{}
	for _, n := range g.AllNodes() {
		if _, ok := reachable[n.ID]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// FieldWarnings lists the advisory problems of a single node.
func FieldWarnings(n domain.FlowNode) []domain.Warning {
	var out []domain.Warning
	switch n.Type {
	case domain.NodeTypeCapture:
		if strings.TrimSpace(n.CaptureField) == "" {
			out = append(out, domain.Warning{NodeID: n.ID, Code: domain.WarnCaptureFieldMissing, Message: "capture field missing"})
		}
	case domain.NodeTypeEnd, domain.NodeTypeTransfer:
		if strings.TrimSpace(n.Outcome) == "" {
			out = append(out, domain.Warning{NodeID: n.ID, Code: domain.WarnOutcomeMissing, Message: "outcome tag missing"})
		}
	case domain.NodeTypeStart, domain.NodeTypeQuestion, domain.NodeTypeStatement:
	}
	return out
}

// Validate builds the full report for g.
func Validate(g domain.GraphView) Report {
	r := Report{Connected: []string{}, Warnings: []domain.Warning{}}

	var reachable map[string]struct{}
	if rootID, ok := g.RootID(); ok {
		r.RootID = rootID
		reachable = ReachableFrom(g, rootID)
	}

	r.Orphans = []domain.FlowNode{}
	for _, n := range g.AllNodes() {
		if _, ok := reachable[n.ID]; ok {
			r.Connected = append(r.Connected, n.ID)
		} else {
			r.Orphans = append(r.Orphans, n)
		}
		r.Warnings = append(r.Warnings, FieldWarnings(n)...)
	}
	return r
}

// StructureError collects the hard violations found by CheckStructure.
type StructureError struct {
	Problems []error
}

func (e *StructureError) Error() string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, p.Error())
	}
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Problems), strings.Join(lines, "\n- "))
}

func (e *StructureError) Unwrap() []error { return e.Problems }

// CheckStructure reports every structural violation of f at once, for flows
// that come from files or remote stores rather than through the GraphStore.
func CheckStructure(f domain.Flow) error {
	var problems []error

	nodes := make(map[string]domain.FlowNode, len(f.Nodes))
	roots := 0
	for _, n := range f.Nodes {
		if _, dup := nodes[n.ID]; dup {
			problems = append(problems, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate node %q", n.ID)})
		}
		nodes[n.ID] = n
		if !n.Type.Valid() {
			problems = append(problems, &domain.ValidationError{Field: "node_type", Reason: fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type)})
		}
		if n.IsRoot {
			roots++
		}
	}
	switch {
	case roots == 0 && len(f.Nodes) > 0:
		problems = append(problems, &domain.ValidationError{Field: "is_root", Reason: "flow has no root"})
	case roots > 1:
		problems = append(problems, &domain.ValidationError{Field: "is_root", Reason: fmt.Sprintf("flow has %d roots", roots)})
	}

	edges := make(map[string]struct{}, len(f.Edges))
	for _, e := range f.Edges {
		if _, dup := edges[e.ID]; dup {
			problems = append(problems, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate edge %q", e.ID)})
		}
		edges[e.ID] = struct{}{}

		from, ok := nodes[e.FromNodeID]
		if !ok {
			problems = append(problems, &domain.NotFoundError{Kind: domain.KindNode, ID: e.FromNodeID})
		} else if from.Type.IsTerminal() {
			problems = append(problems, &domain.InvariantError{Op: "edge " + e.ID, Reason: fmt.Sprintf("leaves terminal node %q", from.ID)})
		}
		to, ok := nodes[e.ToNodeID]
		if !ok {
			problems = append(problems, &domain.NotFoundError{Kind: domain.KindNode, ID: e.ToNodeID})
		} else if to.IsRoot {
			problems = append(problems, &domain.InvariantError{Op: "edge " + e.ID, Reason: fmt.Sprintf("enters root %q", to.ID)})
		}
	}

	if len(problems) > 0 {
		return &StructureError{Problems: problems}
	}
	return nil
}
