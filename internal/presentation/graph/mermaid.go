// Package graph renders flows as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/domain"
)

// GraphOverlay contains preview state to highlight on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces Mermaid flowchart syntax for g.
// Shapes follow the node type:
// - Start: ((Circle))
// - Question: [/Parallelogram/]
// - Capture: [(Cylinder)]
// - Transfer: [[Subroutine]]
// - End: ([Stadium])
// - Statement: [Rectangle]
// Nodes unreachable from the root get the orphan class.
func GenerateMermaid(g domain.GraphView, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	nodes := g.AllNodes()
	for _, node := range nodes {
		opener, closer := shape(node.Type)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, nodeLabel(node), closer)
	}

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)
		for _, e := range g.OutgoingEdges(node.ID) {
			arrow := "-->"
			if label := e.DisplayLabel(); label != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", escape(label))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(e.ToNodeID))
		}
	}

	if orphans := validator.Orphans(g); len(orphans) > 0 {
		sb.WriteString("\n    classDef orphan fill:#fafafa,stroke:#9e9e9e,stroke-dasharray:5 5,color:#616161;\n")
		for _, n := range orphans {
			fmt.Fprintf(&sb, "    class %s orphan;\n", sanitizeMermaidID(n.ID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			// History may still name nodes deleted since.
			if _, ok := g.Node(id); !ok || id == overlay.CurrentNode {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if _, ok := g.Node(overlay.CurrentNode); ok {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch t {
	case domain.NodeTypeStart:
		return "((", "))"
	case domain.NodeTypeQuestion:
		return "[/", "/]"
	case domain.NodeTypeCapture:
		return "[(", ")]"
	case domain.NodeTypeTransfer:
		return "[[", "]]"
	case domain.NodeTypeEnd:
		return "([", "])"
	case domain.NodeTypeStatement:
		return "[", "]"
	default:
		return "[", "]"
	}
}

func nodeLabel(n domain.FlowNode) string {
	label := n.Label
	if label == "" {
		label = n.ID
	}
	label = escape(label)
	switch {
	case n.Outcome != "":
		label += " <br/> " + escape(n.Outcome)
	case n.CaptureField != "":
		label += " <br/> → " + escape(n.CaptureField)
	}
	return label
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
