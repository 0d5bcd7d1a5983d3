package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFlowRepositoryContract is a reusable test suite that verifies if an adapter complies with ports.FlowRepository.
func RunFlowRepositoryContract(t *testing.T, repo ports.FlowRepository) {
	t.Helper()
	ctx := context.Background()
	flowID := "contract-flow-" + time.Now().Format("20060102150405.000000")

	// 1. Create
	t.Run("CreateFlow_And_Load", func(t *testing.T) {
		flow := domain.NewFlow(flowID, "Appointment reminder", "Confirms tomorrow's visit", "root")
		require.NoError(t, repo.CreateFlow(ctx, flow))

		loaded, err := repo.LoadFlow(ctx, flowID)
		require.NoError(t, err)
		assert.Equal(t, "Appointment reminder", loaded.Name)
		assert.False(t, loaded.IsActive)
		require.Len(t, loaded.Nodes, 1)
		assert.True(t, loaded.Nodes[0].IsRoot)
		assert.Equal(t, domain.NodeTypeStart, loaded.Nodes[0].Type)
		assert.Empty(t, loaded.Edges)
	})

	t.Run("CreateFlow_Duplicate", func(t *testing.T) {
		err := repo.CreateFlow(ctx, domain.NewFlow(flowID, "dup", "", "root-2"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	// 2. Nodes and edges keep insertion order
	t.Run("Nodes_And_Edges", func(t *testing.T) {
		require.NoError(t, repo.CreateNode(ctx, flowID, domain.FlowNode{ID: "a", Label: "Confirm", AIMessage: "Great, see you (date)", Type: domain.NodeTypeQuestion}))
		require.NoError(t, repo.CreateNode(ctx, flowID, domain.FlowNode{ID: "b", Label: "Bye", AIMessage: "Bye", Type: domain.NodeTypeEnd, Outcome: "confirmed", PositionX: 12.5, PositionY: -3}))
		require.NoError(t, repo.CreateEdge(ctx, flowID, domain.FlowEdge{ID: "e1", FromNodeID: "root", ToNodeID: "a", ConditionValue: "yes", Label: "yes"}))
		require.NoError(t, repo.CreateEdge(ctx, flowID, domain.FlowEdge{ID: "e2", FromNodeID: "a", ToNodeID: "b", ConditionValue: "ok", Label: "ok"}))

		loaded, err := repo.LoadFlow(ctx, flowID)
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "a", "b"}, nodeIDs(loaded))
		assert.Equal(t, []string{"e1", "e2"}, edgeIDs(loaded))

		b, ok := loaded.Node("b")
		require.True(t, ok)
		assert.Equal(t, "confirmed", b.Outcome)
		assert.Equal(t, 12.5, b.PositionX)
		assert.Equal(t, float64(-3), b.PositionY)
	})

	t.Run("UpdateNode", func(t *testing.T) {
		msg := "Great, see you on (date)"
		require.NoError(t, repo.UpdateNode(ctx, flowID, "a", domain.NodePatch{AIMessage: &msg}))

		loaded, err := repo.LoadFlow(ctx, flowID)
		require.NoError(t, err)
		a, _ := loaded.Node("a")
		assert.Equal(t, msg, a.AIMessage)
		assert.Equal(t, "Confirm", a.Label)

		err = repo.UpdateNode(ctx, flowID, "ghost", domain.NodePatch{AIMessage: &msg})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpdateFlowMeta", func(t *testing.T) {
		active := true
		name := "Reminder v2"
		require.NoError(t, repo.UpdateFlowMeta(ctx, flowID, domain.FlowMeta{Name: &name, IsActive: &active}))

		loaded, err := repo.LoadFlow(ctx, flowID)
		require.NoError(t, err)
		assert.Equal(t, "Reminder v2", loaded.Name)
		assert.Equal(t, "Confirms tomorrow's visit", loaded.Description)
		assert.True(t, loaded.IsActive)
	})

	t.Run("ListFlows", func(t *testing.T) {
		flows, err := repo.ListFlows(ctx)
		require.NoError(t, err)

		var found *domain.FlowSummary
		for i := range flows {
			if flows[i].ID == flowID {
				found = &flows[i]
			}
		}
		require.NotNil(t, found, "flow %s missing from list", flowID)
		assert.Equal(t, 3, found.NodeCount)
		assert.True(t, found.IsActive)
	})

	// 3. Deletes
	t.Run("DeleteEdge", func(t *testing.T) {
		require.NoError(t, repo.DeleteEdge(ctx, flowID, "e2"))
		assert.ErrorIs(t, repo.DeleteEdge(ctx, flowID, "e2"), domain.ErrNotFound)

		loaded, err := repo.LoadFlow(ctx, flowID)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, edgeIDs(loaded))
		assert.Len(t, loaded.Nodes, 3, "deleting an edge never deletes nodes")
	})

	t.Run("DeleteNode_Cascades", func(t *testing.T) {
		require.NoError(t, repo.DeleteNode(ctx, flowID, "a"))

		loaded, err := repo.LoadFlow(ctx, flowID)
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "b"}, nodeIDs(loaded))
		assert.Empty(t, loaded.Edges)

		assert.ErrorIs(t, repo.DeleteNode(ctx, flowID, "a"), domain.ErrNotFound)
	})

	t.Run("Missing_Flow", func(t *testing.T) {
		missing := flowID + "-missing"
		_, err := repo.LoadFlow(ctx, missing)
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, domain.KindFlow, nf.Kind)

		assert.ErrorIs(t, repo.CreateNode(ctx, missing, domain.FlowNode{ID: "x", Type: domain.NodeTypeQuestion}), domain.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteFlow(ctx, missing), domain.ErrNotFound)
	})

	t.Run("DeleteFlow", func(t *testing.T) {
		require.NoError(t, repo.DeleteFlow(ctx, flowID))
		_, err := repo.LoadFlow(ctx, flowID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// RunFlowLoaderContract verifies a read-only ports.FlowLoader against the flows it was seeded with.
func RunFlowLoaderContract(t *testing.T, loader ports.FlowLoader, seeded map[string]domain.Flow) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadFlow_Success", func(t *testing.T) {
		for id, want := range seeded {
			got, err := loader.LoadFlow(ctx, id)
			require.NoError(t, err, "flow %s", id)
			assert.Equal(t, want.Name, got.Name)
			assert.Equal(t, nodeIDs(want), nodeIDs(got))
			assert.Equal(t, edgeIDs(want), edgeIDs(got))
		}
	})

	t.Run("LoadFlow_NotFound", func(t *testing.T) {
		_, err := loader.LoadFlow(ctx, "non-existent-flow")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListFlows", func(t *testing.T) {
		flows, err := loader.ListFlows(ctx)
		require.NoError(t, err)
		assert.Len(t, flows, len(seeded))
		for _, f := range flows {
			_, ok := seeded[f.ID]
			assert.True(t, ok, "unexpected flow %s", f.ID)
		}
	})
}

func nodeIDs(f domain.Flow) []string {
	out := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		out = append(out, n.ID)
	}
	return out
}

func edgeIDs(f domain.Flow) []string {
	out := make([]string, 0, len(f.Edges))
	for _, e := range f.Edges {
		out = append(out, e.ID)
	}
	return out
}
