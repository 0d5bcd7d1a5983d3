package callflow_test

import (
	"context"
	"testing"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...callflow.ServiceOption) (*callflow.Service, domain.Flow) {
	t.Helper()
	opts = append([]callflow.ServiceOption{callflow.WithServiceIDGenerator(sequentialIDs("id-"))}, opts...)
	svc := callflow.NewService(memory.NewRepository(), opts...)
	flow, err := svc.CreateFlow(context.Background(), "  Appointment reminder ", "Confirms tomorrow's visit")
	require.NoError(t, err)
	return svc, flow
}

func TestService_CreateFlow(t *testing.T) {
	ctx := context.Background()
	svc, flow := newService(t)

	assert.Equal(t, "Appointment reminder", flow.Name)
	require.Len(t, flow.Nodes, 1)
	assert.True(t, flow.Nodes[0].IsRoot)
	assert.Equal(t, domain.DefaultGreeting, flow.Nodes[0].AIMessage)

	_, err := svc.CreateFlow(ctx, "   ", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	flows, err := svc.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, 1, flows[0].NodeCount)
	assert.False(t, flows[0].IsActive)
}

func TestService_EditAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, flow := newService(t)

	err := svc.Edit(ctx, flow.ID, func(ctx context.Context, ed *callflow.Editor) error {
		yes, _, err := ed.AddBranch(ctx, flow.Nodes[0].ID, callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Is {date} fine?", Type: domain.NodeTypeCapture})
		if err != nil {
			return err
		}
		_, err = ed.DeleteBranch(ctx, yes.Edge.ID)
		return err
	})
	require.NoError(t, err)

	report, err := svc.Validate(ctx, flow.ID)
	require.NoError(t, err)
	require.Len(t, report.Orphans, 1)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, domain.WarnCaptureFieldMissing, report.Warnings[0].Code)

	vars, err := svc.Variables(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "name"}, vars)

	match, err := svc.MatchFields(ctx, flow.ID, []string{"NAME", "Date"})
	require.NoError(t, err)
	assert.True(t, match.Compatible())

	_, err = svc.Validate(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_DeleteFlow(t *testing.T) {
	ctx := context.Background()
	svc, flow := newService(t)

	require.NoError(t, svc.DeleteFlow(ctx, flow.ID))
	_, err := svc.GetFlow(ctx, flow.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteFlow(ctx, flow.ID), domain.ErrNotFound)
}

func TestService_PreviewLifecycle(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics()
	svc, flow := newService(t, callflow.WithServiceMetrics(metrics))
	rootID := flow.Nodes[0].ID

	var confirm, bye callflow.Branch
	err := svc.Edit(ctx, flow.ID, func(ctx context.Context, ed *callflow.Editor) error {
		var err error
		confirm, _, err = ed.AddBranch(ctx, rootID, callflow.BranchSpec{ConditionValue: "Yes", AIMessage: "Great, see you (date)."})
		if err != nil {
			return err
		}
		bye, _, err = ed.AddBranch(ctx, confirm.Node.ID, callflow.BranchSpec{ConditionValue: "ok", AIMessage: "Bye", Type: domain.NodeTypeEnd, Outcome: "confirmed"})
		return err
	})
	require.NoError(t, err)

	view, err := svc.StartPreview(ctx, flow.ID, map[string]string{"name": "Ada", "date": "Friday"})
	require.NoError(t, err)
	sessionID := view.State.SessionID
	assert.Equal(t, rootID, view.Node.ID)
	assert.Equal(t, "Hi, this is an automated call. Am I speaking with Ada?", view.Message)
	require.Len(t, view.Choices, 1)

	_, err = svc.ReplyPreview(ctx, sessionID, "what?")
	assert.ErrorIs(t, err, domain.ErrNoMatch)

	view, err = svc.ReplyPreview(ctx, sessionID, "  YES! ")
	require.NoError(t, err)
	assert.Equal(t, confirm.Node.ID, view.Node.ID)
	assert.Equal(t, "Great, see you Friday.", view.Message)

	view, err = svc.AdvancePreview(ctx, sessionID, bye.Edge.ID)
	require.NoError(t, err)
	assert.True(t, view.Terminal)
	assert.Equal(t, "Call ended · confirmed", view.Banner.Text)
	assert.Equal(t, domain.PreviewTerminated, view.State.Status)

	view, err = svc.ResetPreview(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, rootID, view.Node.ID)
	assert.Len(t, view.State.Transcript, 1)

	require.NoError(t, svc.EndPreview(ctx, sessionID))
	_, err = svc.Preview(ctx, sessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, svc.EndPreview(ctx, sessionID), domain.ErrSessionNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PreviewSteps.WithLabelValues("reply", "no_match")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PreviewSteps.WithLabelValues("advance", "ok")))
}

func TestService_PreviewSurvivesDeletedNode(t *testing.T) {
	ctx := context.Background()
	svc, flow := newService(t)
	rootID := flow.Nodes[0].ID

	var branch callflow.Branch
	require.NoError(t, svc.Edit(ctx, flow.ID, func(ctx context.Context, ed *callflow.Editor) error {
		var err error
		branch, _, err = ed.AddBranch(ctx, rootID, callflow.BranchSpec{ConditionValue: "yes", AIMessage: "Great"})
		return err
	}))

	view, err := svc.StartPreview(ctx, flow.ID, nil)
	require.NoError(t, err)
	sessionID := view.State.SessionID
	_, err = svc.AdvancePreview(ctx, sessionID, branch.Edge.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Edit(ctx, flow.ID, func(ctx context.Context, ed *callflow.Editor) error {
		_, err := ed.DeleteNode(ctx, branch.Node.ID, callflow.Detach)
		return err
	}))

	view, err = svc.Preview(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, view.Reset)
	assert.Equal(t, rootID, view.State.CurrentNodeID)

	// The reset was persisted.
	view, err = svc.Preview(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, view.Reset)
}
