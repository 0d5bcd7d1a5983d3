package callflow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newEditor(t *testing.T, opts ...callflow.Option) *callflow.Editor {
	t.Helper()
	flow := domain.NewFlow("flow-1", "Appointment reminder", "", "root")
	opts = append([]callflow.Option{callflow.WithIDGenerator(sequentialIDs("id-"))}, opts...)
	ed, err := callflow.NewEditor(flow, opts...)
	require.NoError(t, err)
	return ed
}

// flakyRepo fails CreateEdge on demand.
type flakyRepo struct {
	*memory.Repository
	mock.Mock
}

func (r *flakyRepo) CreateEdge(ctx context.Context, flowID string, edge domain.FlowEdge) error {
	args := r.Called(edge.FromNodeID)
	if err := args.Error(0); err != nil {
		return err
	}
	return r.Repository.CreateEdge(ctx, flowID, edge)
}

func TestEditor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(t)

	a, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "When works for you, (name)?"})
	require.NoError(t, err)
	b, cs, err := ed.AddBranch(ctx, a.Node.ID, callflow.BranchSpec{
		ConditionValue: "tomorrow",
		AIMessage:      "Booked, bye!",
		Type:           callflow.TypeFor(true, false, false),
		Outcome:        "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.FlowNode{b.Node}, cs.AddedNodes)
	assert.Equal(t, []domain.FlowEdge{b.Edge}, cs.AddedEdges)

	preview := ed.NewPreview()
	state, err := preview.Start(ctx, "s1", ed.FlowID(), map[string]string{"name": "Ada"})
	require.NoError(t, err)
	state, err = preview.Advance(ctx, state, a.Edge)
	require.NoError(t, err)
	state, err = preview.Advance(ctx, state, b.Edge)
	require.NoError(t, err)

	view, err := preview.Render(ctx, state)
	require.NoError(t, err)
	assert.True(t, view.Terminal)
	assert.Equal(t, "confirmed", view.Banner.Outcome)
	assert.Equal(t, []string{"root", a.Node.ID, b.Node.ID}, state.History)
	assert.Equal(t, "When works for you, Ada?", state.Transcript[2].Text)

	_, err = preview.Advance(ctx, state, b.Edge)
	var transition *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestEditor_TerminalParentRejected(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(t)

	end, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "no", AIMessage: "Bye", Type: domain.NodeTypeEnd})
	require.NoError(t, err)

	_, _, err = ed.AddBranch(ctx, end.Node.ID, callflow.BranchSpec{ConditionValue: "wait", AIMessage: "?"})
	assert.ErrorIs(t, err, domain.ErrTerminalNode)
	assert.Len(t, ed.Flow().Nodes, 2, "rejected branch leaves the graph unchanged")
}

func TestEditor_DeleteBranchOrphansSubtree(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(t)

	x, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "maybe", AIMessage: "Think about it"})
	require.NoError(t, err)

	cs, err := ed.DeleteBranch(ctx, x.Edge.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{x.Edge.ID}, cs.RemovedEdges)

	report := ed.Validate()
	require.Len(t, report.Orphans, 1)
	assert.Equal(t, x.Node.ID, report.Orphans[0].ID)
	assert.True(t, report.HasIssues())
}

func TestEditor_DeleteRootRefused(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.DeleteNode(context.Background(), "root", callflow.Detach)
	assert.ErrorIs(t, err, domain.ErrInvariant)
}

func TestEditor_PersistsThroughRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository(domain.NewFlow("flow-1", "Reminder", "", "root"))

	ed, err := callflow.Open(ctx, repo, "flow-1", callflow.WithIDGenerator(sequentialIDs("id-")))
	require.NoError(t, err)

	a, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
	require.NoError(t, err)
	_, err = ed.SetActive(ctx, true)
	require.NoError(t, err)
	_, err = ed.DeleteNode(ctx, a.Node.ID, callflow.Detach)
	require.NoError(t, err)
	_, _, err = ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "no", AIMessage: "Bye", Type: domain.NodeTypeEnd, Outcome: "declined"})
	require.NoError(t, err)

	stored, err := repo.LoadFlow(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, ed.Flow(), stored)
	assert.True(t, stored.IsActive)
}

func TestEditor_PersistenceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Repository: memory.NewRepository(domain.NewFlow("flow-1", "Reminder", "", "root"))}
	repo.On("CreateEdge", "root").Return(errors.New("connection reset"))

	ed, err := callflow.Open(ctx, repo, "flow-1")
	require.NoError(t, err)
	before := ed.Flow()

	_, _, err = ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, before, ed.Flow())

	stored, err := repo.LoadFlow(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, before, stored, "the node written before the failure is removed again")
	repo.AssertExpectations(t)
}

// nodeDeleteFails accepts every write except node removal.
type nodeDeleteFails struct {
	*memory.Repository
}

func (r nodeDeleteFails) DeleteNode(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestEditor_RollbackKeepsBranchOrder(t *testing.T) {
	ctx := context.Background()
	repo := nodeDeleteFails{Repository: memory.NewRepository(domain.NewFlow("flow-1", "Reminder", "", "root"))}

	ed, err := callflow.Open(ctx, repo, "flow-1", callflow.WithIDGenerator(sequentialIDs("p-")))
	require.NoError(t, err)
	yes, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
	require.NoError(t, err)
	_, _, err = ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "no", AIMessage: "Bye", Type: domain.NodeTypeEnd, Outcome: "declined"})
	require.NoError(t, err)
	before := ed.Flow()

	_, err = ed.DeleteNode(ctx, yes.Node.ID, callflow.Detach)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, before, ed.Flow())

	stored, err := repo.LoadFlow(ctx, "flow-1")
	require.NoError(t, err)
	conditions := func(f domain.Flow) []string {
		var out []string
		for _, e := range f.OutgoingEdges("root") {
			out = append(out, e.ConditionValue)
		}
		return out
	}
	assert.Equal(t, []string{"yes", "no"}, conditions(stored))
	assert.Equal(t, conditions(ed.Flow()), conditions(stored))
	assert.ElementsMatch(t, before.Nodes, stored.Nodes)
}

func TestEditor_MutationHooksAndMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics()
	var events []*domain.MutationEvent
	ed := newEditor(t,
		callflow.WithMetrics(metrics),
		callflow.WithLifecycleHooks(domain.LifecycleHooks{
			OnMutation: func(_ context.Context, ev *domain.MutationEvent) { events = append(events, ev) },
		}),
	)

	_, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
	require.NoError(t, err)
	_, _, err = ed.AddBranch(ctx, "ghost", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, events, 1)
	assert.Equal(t, "add_branch", events[0].Command)
	assert.Len(t, events[0].Changes.AddedNodes, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Mutations.WithLabelValues("add_branch", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Mutations.WithLabelValues("add_branch", "not_found")))
}

func TestEditor_Variables(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(t)
	_, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Order [order_id] arrives {date}"})
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "name", "order_id"}, ed.Variables())

	report := ed.MatchFields([]string{"Name", "Order-ID", "phone"})
	assert.Equal(t, []string{"date"}, report.Missing)
	assert.False(t, report.Compatible())
}

func TestEditor_SelectedPath(t *testing.T) {
	ctx := context.Background()
	ed := newEditor(t)
	yes, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
	require.NoError(t, err)
	no, _, err := ed.AddBranch(ctx, "root", callflow.BranchSpec{ConditionValue: "no", AIMessage: "Bye", Type: domain.NodeTypeEnd})
	require.NoError(t, err)

	path := ed.SelectedPath(nil)
	require.Len(t, path, 2)
	assert.Equal(t, yes.Node.ID, path[1].Node.ID)

	sel := callflow.Selection{}
	require.NoError(t, sel.Select(ed, "root", 1))
	path = ed.SelectedPath(sel)
	require.Len(t, path, 2)
	assert.Equal(t, no.Node.ID, path[1].Node.ID)
}
