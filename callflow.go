package callflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/callflow/internal/authoring"
	"github.com/aretw0/callflow/internal/graph"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/runtime"
	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/observability"
	"github.com/aretw0/callflow/pkg/ports"
)

// Re-exported authoring and preview types so consumers do not import internal packages.
type (
	BranchSpec       = authoring.BranchSpec
	Branch           = authoring.Branch
	DeleteMode       = authoring.DeleteMode
	Selection        = authoring.Selection
	PathStep         = authoring.PathStep
	ValidationReport = validator.Report
	PreviewView      = runtime.View
	Banner           = runtime.Banner
	Preview          = runtime.Engine
	PreviewOption    = runtime.Option
)

const (
	Detach  = authoring.Detach
	Cascade = authoring.Cascade
)

// WithMatcher replaces the utterance matcher a preview uses for free-text replies.
func WithMatcher(m ports.UtteranceMatcher) PreviewOption {
	return runtime.WithMatcher(m)
}

// TypeFor picks the node type of a new branch from its flags.
func TypeFor(endsConversation, transfer, capture bool) domain.NodeType {
	return authoring.TypeFor(endsConversation, transfer, capture)
}

// Editor is the high-level entry point for editing a single flow.
// It owns the in-memory graph, serializes access to it and mirrors every
// successful mutation onto an optional FlowRepository.
type Editor struct {
	mu     sync.RWMutex
	store  *graph.Store
	author *authoring.Authoring

	repo    ports.FlowRepository
	hooks   domain.LifecycleHooks
	metrics *observability.Metrics
	logger  *slog.Logger
	idGen   func() string
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithRepository persists every mutation through repo.
func WithRepository(repo ports.FlowRepository) Option {
	return func(e *Editor) {
		e.repo = repo
	}
}

// WithLogger sets a custom structured logger for the editor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks for mutations and previews.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = hooks
	}
}

// WithMetrics records mutations and preview steps on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithIDGenerator overrides how node and edge ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(e *Editor) {
		e.idGen = gen
	}
}

// NewEditor loads flow into a fresh in-memory graph.
func NewEditor(flow domain.Flow, opts ...Option) (*Editor, error) {
	e := &Editor{
		logger: logging.NewNop(),
		idGen:  graph.NewID,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.hooks = observability.CombineHooks(e.hooks, observability.TraceHooks(), e.metrics.Hooks())

	store, err := graph.New(flow, graph.WithIDGenerator(e.idGen))
	if err != nil {
		return nil, fmt.Errorf("load flow %q: %w", flow.ID, err)
	}
	e.store = store
	e.author = authoring.New(store)
	return e, nil
}

// Open loads flowID from repo and returns an editor persisting back to it.
func Open(ctx context.Context, repo ports.FlowRepository, flowID string, opts ...Option) (*Editor, error) {
	flow, err := repo.LoadFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithRepository(repo)}, opts...)
	return NewEditor(flow, opts...)
}

// mutate runs op under the write lock, persists its change set and rolls the
// graph back if persistence fails.
func (e *Editor) mutate(ctx context.Context, command string, op func() (domain.ChangeSet, error)) (domain.ChangeSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.store.Snapshot()
	cs, err := op()
	if err != nil {
		e.store.Restore(before)
		e.metrics.ObserveMutationError(command, err)
		return domain.ChangeSet{}, err
	}

	if e.repo != nil {
		if err := Persist(ctx, e.repo, cs); err != nil {
			after := e.store.Snapshot()
			e.store.Restore(before)
			if cerr := compensate(ctx, e.repo, before, after); cerr != nil {
				e.logger.Warn("Failed to undo partial persistence, repository may be ahead of the editor",
					"flow_id", cs.FlowID,
					"err", cerr,
				)
			}
			e.metrics.ObserveMutationError(command, err)
			e.logger.Error("Failed to persist flow mutation",
				"flow_id", cs.FlowID,
				"command", command,
				"err", err,
			)
			return domain.ChangeSet{}, fmt.Errorf("persist %s: %w", command, err)
		}
	}

	if e.hooks.OnMutation != nil {
		e.hooks.OnMutation(ctx, &domain.MutationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventMutation},
			FlowID:    cs.FlowID,
			Command:   command,
			Changes:   &cs,
		})
	}
	e.logger.Debug("Flow mutated",
		"flow_id", cs.FlowID,
		"command", command,
		"added_nodes", len(cs.AddedNodes),
		"removed_nodes", len(cs.RemovedNodes),
		"added_edges", len(cs.AddedEdges),
		"removed_edges", len(cs.RemovedEdges),
	)
	return cs, nil
}

// Apply executes an explicit command and returns the resulting diff.
func (e *Editor) Apply(ctx context.Context, cmd domain.Command) (domain.ChangeSet, error) {
	return e.mutate(ctx, cmd.CommandName(), func() (domain.ChangeSet, error) {
		return e.store.Apply(cmd)
	})
}

// AddBranch creates a child node under parentID together with its edge.
func (e *Editor) AddBranch(ctx context.Context, parentID string, spec BranchSpec) (Branch, domain.ChangeSet, error) {
	var branch Branch
	cs, err := e.mutate(ctx, "add_branch", func() (domain.ChangeSet, error) {
		var (
			cs  domain.ChangeSet
			err error
		)
		branch, cs, err = e.author.AddBranch(parentID, spec)
		return cs, err
	})
	if err != nil {
		return Branch{}, domain.ChangeSet{}, err
	}
	return branch, cs, nil
}

// DeleteBranch removes a single edge; the child subtree becomes orphaned.
func (e *Editor) DeleteBranch(ctx context.Context, edgeID string) (domain.ChangeSet, error) {
	return e.mutate(ctx, "delete_branch", func() (domain.ChangeSet, error) {
		return e.author.DeleteBranch(edgeID)
	})
}

// DeleteNode removes a node and its incident edges, following mode for descendants.
func (e *Editor) DeleteNode(ctx context.Context, nodeID string, mode DeleteMode) (domain.ChangeSet, error) {
	return e.mutate(ctx, "delete_node", func() (domain.ChangeSet, error) {
		return e.author.DeleteNode(nodeID, mode)
	})
}

// UpdateNode patches a node.
func (e *Editor) UpdateNode(ctx context.Context, nodeID string, patch domain.NodePatch) (domain.ChangeSet, error) {
	return e.Apply(ctx, domain.UpdateNode{ID: nodeID, Patch: patch})
}

// UpdateMeta renames, describes or toggles the flow.
func (e *Editor) UpdateMeta(ctx context.Context, meta domain.FlowMeta) (domain.ChangeSet, error) {
	return e.Apply(ctx, domain.UpdateFlowMeta{Meta: meta})
}

// SetActive toggles the flow without deleting anything.
func (e *Editor) SetActive(ctx context.Context, active bool) (domain.ChangeSet, error) {
	return e.UpdateMeta(ctx, domain.FlowMeta{IsActive: &active})
}

// Flow returns a deep copy of the current flow.
func (e *Editor) Flow() domain.Flow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Snapshot()
}

// FlowID returns the id of the edited flow.
func (e *Editor) FlowID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.FlowID()
}

// RootID implements domain.GraphView.
func (e *Editor) RootID() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.RootID()
}

// Node implements domain.GraphView.
func (e *Editor) Node(id string) (domain.FlowNode, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Node(id)
}

// AllNodes implements domain.GraphView.
func (e *Editor) AllNodes() []domain.FlowNode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.AllNodes()
}

// OutgoingEdges implements domain.GraphView.
func (e *Editor) OutgoingEdges(id string) []domain.FlowEdge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.OutgoingEdges(id)
}

// Validate reports connectivity and per-node warnings.
func (e *Editor) Validate() ValidationReport {
	e.mu.RLock()
	report := validator.Validate(e.store)
	flowID := e.store.FlowID()
	e.mu.RUnlock()

	e.metrics.ObserveValidation(flowID, len(report.Orphans), len(report.Warnings))
	return report
}

// Variables returns every placeholder used in the flow's messages, sorted.
func (e *Editor) Variables() []string {
	return domain.FlowPlaceholders(e.Flow())
}

// MatchFields compares the flow's placeholders with the fields of a contact list.
func (e *Editor) MatchFields(fields []string) domain.FieldMatch {
	return domain.MatchFields(e.Variables(), fields)
}

// SelectedPath walks the authoring path picked by sel.
func (e *Editor) SelectedPath(sel Selection) []PathStep {
	return authoring.SelectedPath(e, sel)
}

// NewPreview returns a preview engine reading this editor live, so edits made
// while a preview is open are visible on its next step.
func (e *Editor) NewPreview(opts ...PreviewOption) *Preview {
	base := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	return runtime.NewEngine(e, append(base, opts...)...)
}

var _ domain.GraphView = (*Editor)(nil)
