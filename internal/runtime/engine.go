package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/match"
	"github.com/aretw0/callflow/pkg/ports"
)

// Engine is the preview state machine. It is stateless: every call takes a
// PreviewState and returns a new one, reading the graph live so edits made
// mid-preview are picked up on the next step.
type Engine struct {
	graph   domain.GraphView
	matcher ports.UtteranceMatcher
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithMatcher replaces the utterance matcher used by Navigate.
func WithMatcher(m ports.UtteranceMatcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithLifecycleHooks registers node enter/leave callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine reading g.
func NewEngine(g domain.GraphView, opts ...Option) *Engine {
	e := &Engine{
		graph:   g,
		matcher: match.NewExact(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OutgoingEdges returns the responses available at nodeID in insertion order.
func (e *Engine) OutgoingEdges(nodeID string) []domain.FlowEdge {
	return e.graph.OutgoingEdges(nodeID)
}

// Start opens a new preview on the root and records the greeting.
func (e *Engine) Start(ctx context.Context, sessionID, flowID string, contact map[string]string) (*domain.PreviewState, error) {
	rootID, ok := e.graph.RootID()
	if !ok {
		return nil, &domain.InvariantError{Op: "start preview", Reason: "flow has no root"}
	}
	state := domain.NewPreviewState(sessionID, flowID, rootID)
	for k, v := range contact {
		state.Contact[k] = v
	}
	return e.enterRoot(ctx, state)
}

// Reset sends the preview back to the root with a fresh transcript.
// Contact data survives; captured answers do not.
func (e *Engine) Reset(ctx context.Context, state *domain.PreviewState) (*domain.PreviewState, error) {
	return e.Start(ctx, state.SessionID, state.FlowID, state.Contact)
}

func (e *Engine) enterRoot(ctx context.Context, state *domain.PreviewState) (*domain.PreviewState, error) {
	root, ok := e.graph.Node(state.CurrentNodeID)
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindNode, ID: state.CurrentNodeID}
	}
	state.Transcript = append(state.Transcript, domain.TranscriptEntry{
		Speaker: domain.SpeakerAI,
		Text:    e.renderMessage(root, state),
		NodeID:  root.ID,
	})
	if IsTerminal(e.graph, root) {
		state.Status = domain.PreviewTerminated
	}
	e.emit(ctx, e.hooks.OnNodeEnter, domain.EventNodeEnter, state.SessionID, root)
	return state, nil
}

// refresh resets state when its current node no longer exists.
func (e *Engine) refresh(ctx context.Context, state *domain.PreviewState) (*domain.PreviewState, bool, error) {
	if _, ok := e.graph.Node(state.CurrentNodeID); ok {
		return state.Clone(), false, nil
	}
	e.logger.Info("preview cursor points at a deleted node, restarting",
		"session_id", state.SessionID,
		"node_id", state.CurrentNodeID,
	)
	reset, err := e.Reset(ctx, state)
	if err != nil {
		return nil, false, err
	}
	return reset, true, nil
}

// Render describes the current step of the preview.
func (e *Engine) Render(ctx context.Context, state *domain.PreviewState) (*View, error) {
	current, wasReset, err := e.refresh(ctx, state)
	if err != nil {
		return nil, err
	}
	node, _ := e.graph.Node(current.CurrentNodeID)

	view := &View{
		State:   current,
		Node:    node,
		Message: e.renderMessage(node, current),
		Choices: e.graph.OutgoingEdges(node.ID),
		Reset:   wasReset,
	}
	if view.Choices == nil {
		view.Choices = []domain.FlowEdge{}
	}
	if IsTerminal(e.graph, node) {
		view.Terminal = true
		banner := TerminalBanner(node)
		view.Banner = &banner
	}
	return view, nil
}

// Advance takes edge from the current node and records the exchange.
func (e *Engine) Advance(ctx context.Context, state *domain.PreviewState, edge domain.FlowEdge) (*domain.PreviewState, error) {
	return e.advance(ctx, state, edge, edge.ConditionValue)
}

// advance records answer as the customer's words, both in the transcript and
// in the capture field of the node being left.
func (e *Engine) advance(ctx context.Context, state *domain.PreviewState, edge domain.FlowEdge, answer string) (*domain.PreviewState, error) {
	next, _, err := e.refresh(ctx, state)
	if err != nil {
		return nil, err
	}

	from, _ := e.graph.Node(next.CurrentNodeID)
	cursor := NewCursor(e.graph, next.CurrentNodeID)
	to, err := cursor.Advance(edge)
	if err != nil {
		return nil, err
	}

	e.emit(ctx, e.hooks.OnNodeLeave, domain.EventNodeLeave, next.SessionID, from)

	if from.Type == domain.NodeTypeCapture && from.CaptureField != "" {
		next.Captured[from.CaptureField] = answer
	}

	next.CurrentNodeID = to.ID
	next.History = append(next.History, to.ID)
	next.Transcript = append(next.Transcript,
		domain.TranscriptEntry{Speaker: domain.SpeakerCustomer, Text: answer, EdgeID: edge.ID},
		domain.TranscriptEntry{Speaker: domain.SpeakerAI, Text: e.renderMessage(to, next), NodeID: to.ID},
	)
	if IsTerminal(e.graph, to) {
		next.Status = domain.PreviewTerminated
	} else {
		next.Status = domain.PreviewActive
	}

	e.emit(ctx, e.hooks.OnNodeEnter, domain.EventNodeEnter, next.SessionID, to)
	e.logger.Debug("preview advanced",
		"session_id", next.SessionID,
		"from", from.ID,
		"to", to.ID,
		"edge", edge.ID,
	)
	return next, nil
}

// AdvanceByID is Advance for callers that only hold the edge id.
func (e *Engine) AdvanceByID(ctx context.Context, state *domain.PreviewState, edgeID string) (*domain.PreviewState, error) {
	current, _, err := e.refresh(ctx, state)
	if err != nil {
		return nil, err
	}
	for _, edge := range e.graph.OutgoingEdges(current.CurrentNodeID) {
		if edge.ID == edgeID {
			return e.Advance(ctx, current, edge)
		}
	}
	return nil, &domain.NotFoundError{Kind: domain.KindEdge, ID: edgeID}
}

// Navigate maps a free-text customer utterance to at most one outgoing edge
// and advances along it. It returns domain.ErrNoMatch when nothing matches.
func (e *Engine) Navigate(ctx context.Context, state *domain.PreviewState, utterance string) (*domain.PreviewState, error) {
	utterance, err := match.Sanitize(utterance)
	if err != nil {
		return nil, &domain.ValidationError{Field: "utterance", Reason: err.Error()}
	}
	current, _, err := e.refresh(ctx, state)
	if err != nil {
		return nil, err
	}
	edge, ok := e.matcher.Match(ctx, e.graph.OutgoingEdges(current.CurrentNodeID), utterance)
	if !ok {
		return nil, fmt.Errorf("%q at node %q: %w", utterance, current.CurrentNodeID, domain.ErrNoMatch)
	}
	answer := strings.TrimSpace(utterance)
	if answer == "" {
		answer = edge.ConditionValue
	}
	return e.advance(ctx, current, edge, answer)
}

func (e *Engine) emit(ctx context.Context, hook func(context.Context, *domain.NodeEvent), kind domain.EventType, sessionID string, node domain.FlowNode) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: kind},
		SessionID: sessionID,
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}
