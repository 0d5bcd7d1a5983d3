package authoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/callflow/internal/graph"
	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthoring(t *testing.T) (*Authoring, *graph.Store) {
	t.Helper()
	n := 0
	store, err := graph.New(
		domain.NewFlow("f1", "Reminder", "", "R"),
		graph.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	require.NoError(t, err)
	return New(store), store
}

func TestAddBranch(t *testing.T) {
	a, store := newAuthoring(t)

	br, cs, err := a.AddBranch("R", BranchSpec{
		ConditionValue: "Yes, this is me and I have some time right now",
		AIMessage:      "Great! Your appointment is on {date}.",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.NodeTypeQuestion, br.Node.Type)
	assert.Equal(t, "Yes, this is me and I have som", br.Node.Label)
	assert.Equal(t, "R", br.Edge.FromNodeID)
	assert.Equal(t, br.Node.ID, br.Edge.ToNodeID)
	assert.Equal(t, br.Edge.ConditionValue, br.Edge.Label)
	assert.Len(t, cs.AddedNodes, 1)
	assert.Len(t, cs.AddedEdges, 1)

	assert.Len(t, store.OutgoingEdges("R"), 1)
	assert.Empty(t, validator.Orphans(store))
}

func TestAddBranch_TypeSpecificFields(t *testing.T) {
	a, _ := newAuthoring(t)

	end, _, err := a.AddBranch("R", BranchSpec{
		ConditionValue: "no", AIMessage: "Bye", Type: domain.NodeTypeEnd,
		Outcome: "declined", CaptureField: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "declined", end.Node.Outcome)
	assert.Empty(t, end.Node.CaptureField)

	capture, _, err := a.AddBranch("R", BranchSpec{
		ConditionValue: "another day", AIMessage: "Which day?", Type: domain.NodeTypeCapture,
		Outcome: "ignored", CaptureField: "preferred_date",
	})
	require.NoError(t, err)
	assert.Equal(t, "preferred_date", capture.Node.CaptureField)
	assert.Empty(t, capture.Node.Outcome)
}

func TestAddBranch_TerminalParent(t *testing.T) {
	a, store := newAuthoring(t)

	end, _, err := a.AddBranch("R", BranchSpec{ConditionValue: "no", AIMessage: "Bye", Type: domain.NodeTypeEnd})
	require.NoError(t, err)
	before := store.Snapshot()

	_, _, err = a.AddBranch(end.Node.ID, BranchSpec{ConditionValue: "wait", AIMessage: "Yes?"})

	var terr *domain.TerminalNodeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.NodeTypeEnd, terr.Type)
	assert.Equal(t, before, store.Snapshot(), "graph unchanged")
}

func TestAddBranch_Validation(t *testing.T) {
	tests := []struct {
		name  string
		spec  BranchSpec
		field string
	}{
		{"Empty Condition", BranchSpec{ConditionValue: "  ", AIMessage: "Hi"}, "condition_value"},
		{"Empty Message", BranchSpec{ConditionValue: "yes", AIMessage: ""}, "ai_message"},
		{"Start Type", BranchSpec{ConditionValue: "yes", AIMessage: "Hi", Type: domain.NodeTypeStart}, "node_type"},
		{"Unknown Type", BranchSpec{ConditionValue: "yes", AIMessage: "Hi", Type: "menu"}, "node_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, store := newAuthoring(t)
			_, _, err := a.AddBranch("R", tt.spec)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Len(t, store.AllNodes(), 1)
		})
	}

	a, _ := newAuthoring(t)
	_, _, err := a.AddBranch("ghost", BranchSpec{ConditionValue: "yes", AIMessage: "Hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddBranch_RollsBackNodeOnEdgeFailure(t *testing.T) {
	// The second generated id collides with an existing edge id, so the edge
	// insert fails after the node was created.
	store, err := graph.New(domain.Flow{
		ID: "f1",
		Nodes: []domain.FlowNode{
			{ID: "R", Type: domain.NodeTypeStart, IsRoot: true},
			{ID: "A", Type: domain.NodeTypeQuestion},
		},
		Edges: []domain.FlowEdge{{ID: "taken", FromNodeID: "R", ToNodeID: "A", ConditionValue: "yes"}},
	}, graph.WithIDGenerator(func() func() string {
		ids := []string{"fresh-node", "taken"}
		return func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}
	}()))
	require.NoError(t, err)

	_, _, err = New(store).AddBranch("R", BranchSpec{ConditionValue: "no", AIMessage: "Bye"})
	require.Error(t, err)

	_, exists := store.Node("fresh-node")
	assert.False(t, exists, "node must be rolled back")
	assert.Len(t, store.AllEdges(), 1)
}

func TestDeleteBranch_OrphansSubtree(t *testing.T) {
	a, store := newAuthoring(t)

	child, _, err := a.AddBranch("R", BranchSpec{ConditionValue: "yes", AIMessage: "Ok?"})
	require.NoError(t, err)
	grandchild, _, err := a.AddBranch(child.Node.ID, BranchSpec{ConditionValue: "ok", AIMessage: "Bye", Type: domain.NodeTypeEnd, Outcome: "confirmed"})
	require.NoError(t, err)

	cs, err := a.DeleteBranch(child.Edge.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.Edge.ID}, cs.RemovedEdges)

	orphans := validator.Orphans(store)
	require.Len(t, orphans, 2)
	assert.Equal(t, child.Node.ID, orphans[0].ID)
	assert.Equal(t, grandchild.Node.ID, orphans[1].ID)
}

func TestDeleteNode(t *testing.T) {
	build := func(t *testing.T) (*Authoring, *graph.Store, Branch, Branch) {
		a, store := newAuthoring(t)
		child, _, err := a.AddBranch("R", BranchSpec{ConditionValue: "yes", AIMessage: "Ok?"})
		require.NoError(t, err)
		grandchild, _, err := a.AddBranch(child.Node.ID, BranchSpec{ConditionValue: "ok", AIMessage: "Bye", Type: domain.NodeTypeEnd})
		require.NoError(t, err)
		return a, store, child, grandchild
	}

	t.Run("Detach", func(t *testing.T) {
		a, store, child, grandchild := build(t)

		cs, err := a.DeleteNode(child.Node.ID, Detach)
		require.NoError(t, err)
		assert.Equal(t, []string{child.Node.ID}, cs.RemovedNodes)
		assert.Len(t, cs.RemovedEdges, 2)

		orphans := validator.Orphans(store)
		require.Len(t, orphans, 1)
		assert.Equal(t, grandchild.Node.ID, orphans[0].ID)
	})

	t.Run("Cascade", func(t *testing.T) {
		a, store, child, grandchild := build(t)

		cs, err := a.DeleteNode(child.Node.ID, Cascade)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{child.Node.ID, grandchild.Node.ID}, cs.RemovedNodes)
		assert.Len(t, store.AllNodes(), 1)
	})

	t.Run("Cascade Keeps Shared Descendants", func(t *testing.T) {
		a, store, child, grandchild := build(t)
		_, err := store.AddEdge(domain.FlowEdge{FromNodeID: "R", ToNodeID: grandchild.Node.ID, ConditionValue: "not now"})
		require.NoError(t, err)

		_, err = a.DeleteNode(child.Node.ID, Cascade)
		require.NoError(t, err)
		_, ok := store.Node(grandchild.Node.ID)
		assert.True(t, ok, "still reachable through R")
	})

	t.Run("Root Refused", func(t *testing.T) {
		a, _, _, _ := build(t)
		_, err := a.DeleteNode("R", Detach)
		assert.ErrorIs(t, err, domain.ErrInvariant)
	})
}

func TestTypeFor(t *testing.T) {
	assert.Equal(t, domain.NodeTypeTransfer, TypeFor(true, true, true))
	assert.Equal(t, domain.NodeTypeEnd, TypeFor(true, false, true))
	assert.Equal(t, domain.NodeTypeCapture, TypeFor(false, false, true))
	assert.Equal(t, domain.NodeTypeQuestion, TypeFor(false, false, false))
}

func TestDefaultLabel(t *testing.T) {
	assert.Equal(t, "short", DefaultLabel("short"))
	long := strings.Repeat("é", 40)
	assert.Equal(t, strings.Repeat("é", 30), DefaultLabel(long))
}
