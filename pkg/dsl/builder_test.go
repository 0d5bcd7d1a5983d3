package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_ReminderFlow(t *testing.T) {
	flow, err := New("reminder", "Reminder").
		Start("root", "Hi (name)!").
		Branch("yes", "date").
		BranchLabel("human", "Talk to someone", "agent").
		Capture("date", "Which {day} suits you?", "preferred_day").
		Branch("any", "bye").
		Transfer("agent", "Transferring now.").Outcome("escalated").
		End("bye", "Thanks!", "confirmed").Label("Goodbye").At(10, 20).
		Flow()
	require.NoError(t, err)

	assert.Equal(t, "reminder", flow.ID)
	assert.True(t, flow.IsActive)

	rootID, ok := flow.RootID()
	require.True(t, ok)
	assert.Equal(t, "root", rootID)

	edges := flow.OutgoingEdges("root")
	require.Len(t, edges, 2)
	assert.Equal(t, "root-1", edges[0].ID)
	assert.Equal(t, "date", edges[0].ToNodeID)
	assert.Equal(t, "Talk to someone", edges[1].DisplayLabel())

	bye, ok := flow.Node("bye")
	require.True(t, ok)
	assert.Equal(t, "Goodbye", bye.Label)
	assert.Equal(t, "confirmed", bye.Outcome)
	assert.Equal(t, 20.0, bye.PositionY)

	agent, _ := flow.Node("agent")
	assert.Equal(t, "escalated", agent.Outcome)

	date, _ := flow.Node("date")
	assert.Equal(t, "preferred_day", date.CaptureField)

	report := validator.Validate(flow)
	assert.Empty(t, report.Orphans)
	assert.Equal(t, []string{"day", "name"}, domain.FlowPlaceholders(flow))
}

func TestBuilder_RejectsBrokenFlows(t *testing.T) {
	tests := []struct {
		name  string
		build func() (domain.Flow, error)
	}{
		{
			name: "no root",
			build: func() (domain.Flow, error) {
				return New("f", "F").Ask("a", "?").Flow()
			},
		},
		{
			name: "dangling edge",
			build: func() (domain.Flow, error) {
				return New("f", "F").Start("root", "hi").Branch("yes", "nowhere").Flow()
			},
		},
		{
			name: "edge out of terminal",
			build: func() (domain.Flow, error) {
				return New("f", "F").
					Start("root", "hi").Branch("yes", "bye").
					End("bye", "bye", "").Branch("again", "root").
					Flow()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.Error(t, err)
		})
	}
}

func TestBuilder_Repository(t *testing.T) {
	b := New("f", "F")
	b.Start("root", "hi")
	repo, err := b.Repository()
	require.NoError(t, err)

	got, err := repo.LoadFlow(context.Background(), "f")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1)
}

func TestBuilder_MustFlowPanics(t *testing.T) {
	assert.Panics(t, func() { New("f", "F").Ask("a", "?").MustFlow() })
}
