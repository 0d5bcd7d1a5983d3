package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/callflow/internal/graph"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_PreviewRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()
	e := NewEngine(f)

	state, err := e.Start(ctx, "s1", "f1", map[string]string{"name": "Ada", "date": "Monday"})
	require.NoError(t, err)
	require.Len(t, state.Transcript, 1)
	assert.Equal(t, "Hi Ada, got a minute?", state.Transcript[0].Text)
	assert.Equal(t, domain.PreviewActive, state.Status)

	state, err = e.Advance(ctx, state, f.Edges[0])
	require.NoError(t, err)
	state, err = e.Advance(ctx, state, f.Edges[1])
	require.NoError(t, err)

	assert.Equal(t, "B", state.CurrentNodeID)
	assert.True(t, state.Terminated())
	assert.Equal(t, []string{"R", "A", "B"}, state.History)
	assert.Equal(t, "confirm", state.Captured["answer"])

	speakers := []domain.Speaker{}
	texts := []string{}
	for _, line := range state.Transcript {
		speakers = append(speakers, line.Speaker)
		texts = append(texts, line.Text)
	}
	assert.Equal(t, []domain.Speaker{"ai", "customer", "ai", "customer", "ai"}, speakers)
	assert.Equal(t, []string{"Hi Ada, got a minute?", "yes", "Can you confirm Monday?", "confirm", "Thanks, bye."}, texts)

	view, err := e.Render(ctx, state)
	require.NoError(t, err)
	assert.True(t, view.Terminal)
	require.NotNil(t, view.Banner)
	assert.Equal(t, "Call ended · confirmed", view.Banner.Text)
	assert.Empty(t, view.Choices)
}

func TestEngine_AdvanceDoesNotMutateInput(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()
	e := NewEngine(f)

	start, err := e.Start(ctx, "s1", "f1", nil)
	require.NoError(t, err)
	next, err := e.Advance(ctx, start, f.Edges[0])
	require.NoError(t, err)

	assert.Equal(t, "R", start.CurrentNodeID)
	assert.Len(t, start.Transcript, 1)
	assert.Equal(t, "A", next.CurrentNodeID)
}

func TestEngine_InvalidTransition(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()
	e := NewEngine(f)

	state, err := e.Start(ctx, "s1", "f1", nil)
	require.NoError(t, err)

	_, err = e.Advance(ctx, state, f.Edges[1])
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestEngine_Navigate(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()
	e := NewEngine(f)

	state, err := e.Start(ctx, "s1", "f1", nil)
	require.NoError(t, err)

	state, err = e.Navigate(ctx, state, "Yes!")
	require.NoError(t, err)
	assert.Equal(t, "A", state.CurrentNodeID)

	_, err = e.Navigate(ctx, state, "what is this about")
	assert.ErrorIs(t, err, domain.ErrNoMatch)

	_, err = e.Navigate(ctx, state, strings.Repeat("a", match.MaxUtteranceSize+1))
	assert.ErrorIs(t, err, domain.ErrValidation)

	state, err = e.AdvanceByID(ctx, state, "loop")
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "A", "A"}, state.History)

	_, err = e.AdvanceByID(ctx, state, "e1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// firstChoice answers every utterance with the first outgoing edge.
type firstChoice struct{}

func (firstChoice) Match(_ context.Context, edges []domain.FlowEdge, _ string) (domain.FlowEdge, bool) {
	if len(edges) == 0 {
		return domain.FlowEdge{}, false
	}
	return edges[0], true
}

func TestEngine_NavigateCapturesCallerWords(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()
	e := NewEngine(f, WithMatcher(firstChoice{}))

	state, err := e.Start(ctx, "s1", "f1", nil)
	require.NoError(t, err)
	state, err = e.Navigate(ctx, state, "sure thing")
	require.NoError(t, err)
	state, err = e.Navigate(ctx, state, "  yep, Friday works\x00 ")
	require.NoError(t, err)

	assert.Equal(t, "B", state.CurrentNodeID)
	assert.Equal(t, "yep, Friday works", state.Captured["answer"])
	assert.Equal(t, "sure thing", state.Transcript[1].Text)
	assert.Equal(t, "yep, Friday works", state.Transcript[3].Text)
	assert.Equal(t, "e2", state.Transcript[3].EdgeID)
}

func TestEngine_ResetClearsTranscript(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()
	e := NewEngine(f)

	state, err := e.Start(ctx, "s1", "f1", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	state, err = e.Advance(ctx, state, f.Edges[0])
	require.NoError(t, err)

	state, err = e.Reset(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "R", state.CurrentNodeID)
	assert.Len(t, state.Transcript, 1)
	assert.Equal(t, []string{"R"}, state.History)
	assert.Equal(t, "Ada", state.Contact["name"])
}

func TestEngine_StaleCursorResets(t *testing.T) {
	ctx := context.Background()
	store, err := graph.New(sampleFlow())
	require.NoError(t, err)
	e := NewEngine(store)

	state, err := e.Start(ctx, "s1", "f1", nil)
	require.NoError(t, err)
	state, err = e.AdvanceByID(ctx, state, "e1")
	require.NoError(t, err)

	// Node deleted while the preview sits on it.
	_, err = store.RemoveNode("A")
	require.NoError(t, err)

	view, err := e.Render(ctx, state)
	require.NoError(t, err)
	assert.True(t, view.Reset)
	assert.Equal(t, "R", view.State.CurrentNodeID)
	assert.True(t, view.Terminal, "root lost its only response")
	assert.Equal(t, BannerNoResponses, view.Banner.Kind)
}

func TestEngine_Hooks(t *testing.T) {
	ctx := context.Background()
	f := sampleFlow()

	var entered, left []string
	e := NewEngine(f, WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, ev *domain.NodeEvent) { entered = append(entered, ev.NodeID) },
		OnNodeLeave: func(_ context.Context, ev *domain.NodeEvent) { left = append(left, ev.NodeID) },
	}))

	state, err := e.Start(ctx, "s1", "f1", nil)
	require.NoError(t, err)
	_, err = e.Advance(ctx, state, f.Edges[0])
	require.NoError(t, err)

	assert.Equal(t, []string{"R", "A"}, entered)
	assert.Equal(t, []string{"R"}, left)
}

func TestEngine_NoRoot(t *testing.T) {
	f := sampleFlow()
	f.Nodes[0].IsRoot = false
	_, err := NewEngine(f).Start(context.Background(), "s1", "f1", nil)
	assert.ErrorIs(t, err, domain.ErrInvariant)
}
