package authoring

import (
	"testing"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathFlow() domain.Flow {
	return domain.Flow{
		ID: "f1",
		Nodes: []domain.FlowNode{
			{ID: "R", Type: domain.NodeTypeStart, IsRoot: true},
			{ID: "A", Type: domain.NodeTypeQuestion},
			{ID: "B", Type: domain.NodeTypeEnd, Outcome: "confirmed"},
			{ID: "C", Type: domain.NodeTypeTransfer, Outcome: "agent"},
		},
		Edges: []domain.FlowEdge{
			{ID: "e1", FromNodeID: "R", ToNodeID: "A", ConditionValue: "yes"},
			{ID: "e2", FromNodeID: "A", ToNodeID: "B", ConditionValue: "confirm"},
			{ID: "e3", FromNodeID: "A", ToNodeID: "C", ConditionValue: "human please"},
			{ID: "e4", FromNodeID: "A", ToNodeID: "A", ConditionValue: "pardon?"},
		},
	}
}

func stepIDs(path []PathStep) []string {
	out := []string{}
	for _, s := range path {
		out = append(out, s.Node.ID)
	}
	return out
}

func TestSelectedPath_DefaultsToFirstBranch(t *testing.T) {
	path := SelectedPath(pathFlow(), Selection{})

	assert.Equal(t, []string{"R", "A", "B"}, stepIDs(path))
	require.NotNil(t, path[1].Edge)
	assert.Equal(t, "e2", path[1].Edge.ID)
	assert.Nil(t, path[2].Edge)
}

func TestSelectedPath_FollowsSelection(t *testing.T) {
	f := pathFlow()
	sel := Selection{}
	require.NoError(t, sel.Select(f, "A", 1))

	path := SelectedPath(f, sel)
	assert.Equal(t, []string{"R", "A", "C"}, stepIDs(path))
	assert.Equal(t, 1, path[1].Selected)
}

func TestSelectedPath_StopsOnCycle(t *testing.T) {
	f := pathFlow()
	sel := Selection{"A": 2}

	path := SelectedPath(f, sel)
	assert.Equal(t, []string{"R", "A", "A"}, stepIDs(path))
	assert.True(t, path[2].Revisit)
}

func TestSelectedPath_StaleSelectionClamps(t *testing.T) {
	f := pathFlow()
	sel := Selection{"A": 7}

	path := SelectedPath(f, sel)
	assert.Equal(t, []string{"R", "A", "B"}, stepIDs(path))
}

func TestSelection_Select(t *testing.T) {
	f := pathFlow()
	sel := Selection{}

	assert.ErrorIs(t, sel.Select(f, "A", 3), domain.ErrValidation)
	assert.ErrorIs(t, sel.Select(f, "ghost", 0), domain.ErrNotFound)
	assert.Empty(t, sel)
}

func TestSelectedPath_NoRoot(t *testing.T) {
	f := pathFlow()
	f.Nodes[0].IsRoot = false
	assert.Empty(t, SelectedPath(f, Selection{}))
}
