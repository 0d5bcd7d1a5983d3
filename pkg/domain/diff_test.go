package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseFlow() Flow {
	return Flow{
		ID:   "f1",
		Name: "Reminder",
		Nodes: []FlowNode{
			{ID: "r", Type: NodeTypeStart, IsRoot: true, AIMessage: "Hi"},
			{ID: "a", Type: NodeTypeQuestion, AIMessage: "Ok?"},
		},
		Edges: []FlowEdge{{ID: "e1", FromNodeID: "r", ToNodeID: "a", ConditionValue: "yes"}},
	}
}

func TestDiff(t *testing.T) {
	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		f := baseFlow()
		d := Diff(nil, &f)
		require.NotNil(t, d)
		assert.Len(t, d.AddedNodes, 2)
		assert.Len(t, d.AddedEdges, 1)
		require.NotNil(t, d.Meta)
		assert.Equal(t, "Reminder", *d.Meta.Name)
	})

	t.Run("No Changes", func(t *testing.T) {
		a, b := baseFlow(), baseFlow()
		assert.Nil(t, Diff(&a, &b))
	})

	t.Run("Node Updated Removed And Edge Replaced", func(t *testing.T) {
		old := baseFlow()
		cur := baseFlow()
		cur.Nodes[1].AIMessage = "Okay?"
		cur.Nodes = append(cur.Nodes, FlowNode{ID: "b", Type: NodeTypeEnd})
		cur.Edges[0].ConditionValue = "yeah"
		cur.IsActive = true

		d := Diff(&old, &cur)
		require.NotNil(t, d)
		assert.Equal(t, []string{"b"}, ids(d.AddedNodes))
		assert.Equal(t, []string{"a"}, ids(d.UpdatedNodes))
		assert.Equal(t, []string{"e1"}, d.RemovedEdges)
		assert.Equal(t, "yeah", d.AddedEdges[0].ConditionValue)
		require.NotNil(t, d.Meta)
		assert.Nil(t, d.Meta.Name)
		assert.True(t, *d.Meta.IsActive)

		back := Diff(&cur, &old)
		assert.Equal(t, []string{"b"}, back.RemovedNodes)
	})

	t.Run("Omitempty Serialization", func(t *testing.T) {
		d := ChangeSet{FlowID: "f1", RemovedEdges: []string{"e1"}}
		raw, err := json.Marshal(d)
		require.NoError(t, err)
		assert.JSONEq(t, `{"flow_id":"f1","removed_edges":["e1"]}`, string(raw))
	})
}

func TestChangeSet_Merge(t *testing.T) {
	name := "New"
	cs := ChangeSet{FlowID: "f1", AddedNodes: []FlowNode{{ID: "n"}}}
	cs.Merge(ChangeSet{AddedEdges: []FlowEdge{{ID: "e"}}, Meta: &FlowMeta{Name: &name}})

	assert.Len(t, cs.AddedNodes, 1)
	assert.Len(t, cs.AddedEdges, 1)
	assert.Equal(t, "New", *cs.Meta.Name)
	assert.False(t, cs.IsEmpty())
	assert.True(t, (&ChangeSet{FlowID: "f1"}).IsEmpty())
}

func ids(nodes []FlowNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}
