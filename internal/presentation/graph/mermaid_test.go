package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func sample() domain.Flow {
	return domain.Flow{
		ID: "f",
		Nodes: []domain.FlowNode{
			{ID: "root", Label: "Greeting", Type: domain.NodeTypeStart, IsRoot: true},
			{ID: "ask-date", Label: "Ask date", Type: domain.NodeTypeQuestion},
			{ID: "save", Label: "Save", Type: domain.NodeTypeCapture, CaptureField: "date"},
			{ID: "agent", Label: "Agent", Type: domain.NodeTypeTransfer},
			{ID: "bye", Label: `Say "bye"`, Type: domain.NodeTypeEnd, Outcome: "confirmed"},
			{ID: "lost", Label: "Lost", Type: domain.NodeTypeStatement},
		},
		Edges: []domain.FlowEdge{
			{ID: "e1", FromNodeID: "root", ToNodeID: "ask-date", ConditionValue: "yes", Label: `Yes "sure"`},
			{ID: "e2", FromNodeID: "root", ToNodeID: "agent", ConditionValue: "human"},
			{ID: "e3", FromNodeID: "ask-date", ToNodeID: "save", ConditionValue: "tomorrow"},
			{ID: "e4", FromNodeID: "save", ToNodeID: "bye"},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes By Type",
			contains: []string{
				`root(("Greeting"))`,
				`ask_date[/"Ask date"/]`,
				`save[("Save <br/> → date")]`,
				`agent[["Agent"]]`,
				`bye(["Say 'bye' <br/> confirmed"])`,
				`lost["Lost"]`,
			},
		},
		{
			name: "Edges Use Labels",
			contains: []string{
				`root -- "Yes 'sure'" --> ask_date`,
				`root -- "human" --> agent`,
				`save --> bye`,
			},
		},
		{
			name:     "Orphans Styled",
			contains: []string{"classDef orphan", "class lost orphan;"},
			excludes: []string{"class root orphan;"},
		},
		{
			name: "Overlay",
			overlay: &graph.GraphOverlay{
				VisitedNodes: []string{"root", "root", "deleted", "ask-date"},
				CurrentNode:  "ask-date",
			},
			contains: []string{"class root visited;", "class ask_date current;"},
			excludes: []string{"class deleted", "class ask_date visited;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(sample(), tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, bad := range tt.excludes {
				assert.NotContains(t, got, bad)
			}
		})
	}
}
