package callflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aretw0/callflow/internal/graph"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/observability"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/callflow/pkg/session"
)

// Service exposes the flow catalogue, editing and preview sessions over a
// FlowRepository. Mutations of one flow are serialized; different flows
// proceed in parallel.
type Service struct {
	repo     ports.FlowRepository
	sessions *session.Manager
	locks    *session.Locks

	locker  ports.DistributedLocker
	matcher ports.UtteranceMatcher
	hooks   domain.LifecycleHooks
	metrics *observability.Metrics
	logger  *slog.Logger
	idGen   func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSessions stores preview sessions in m instead of process memory.
func WithSessions(m *session.Manager) ServiceOption {
	return func(s *Service) {
		s.sessions = m
	}
}

// WithFlowLocker coordinates flow mutations across replicas.
func WithFlowLocker(locker ports.DistributedLocker) ServiceOption {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithPreviewMatcher sets the matcher used by ReplyPreview.
func WithPreviewMatcher(m ports.UtteranceMatcher) ServiceOption {
	return func(s *Service) {
		s.matcher = m
	}
}

// WithServiceHooks registers lifecycle hooks for every editor and preview.
func WithServiceHooks(hooks domain.LifecycleHooks) ServiceOption {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithServiceMetrics records mutations, validations and preview steps.
func WithServiceMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceIDGenerator overrides how flow, node, edge and session ids are minted.
func WithServiceIDGenerator(gen func() string) ServiceOption {
	return func(s *Service) {
		s.idGen = gen
	}
}

// NewService creates a service over repo.
func NewService(repo ports.FlowRepository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		logger: logging.NewNop(),
		idGen:  graph.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(memory.NewStore(), session.WithLogger(s.logger))
	}
	s.locks = session.NewLocks(s.locker, session.DefaultLockTTL, s.logger)
	return s
}

// Repository returns the underlying flow repository.
func (s *Service) Repository() ports.FlowRepository {
	return s.repo
}

// Metrics returns the configured metrics, or nil.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

func (s *Service) editorOptions() []Option {
	return []Option{
		WithLogger(s.logger),
		WithLifecycleHooks(s.hooks),
		WithMetrics(s.metrics),
		WithIDGenerator(s.idGen),
	}
}

// ListFlows returns the flow catalogue.
func (s *Service) ListFlows(ctx context.Context) ([]domain.FlowSummary, error) {
	return s.repo.ListFlows(ctx)
}

// CreateFlow stores a new flow holding only its greeting root.
func (s *Service) CreateFlow(ctx context.Context, name, description string) (flow domain.Flow, err error) {
	ctx, span := observability.StartFlowSpan(ctx, "create_flow", "")
	defer func() { observability.EndSpan(span, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Flow{}, &domain.ValidationError{Field: "name", Reason: "flow name is required"}
	}
	flow = domain.NewFlow(s.idGen(), name, strings.TrimSpace(description), s.idGen())
	if err := s.repo.CreateFlow(ctx, flow); err != nil {
		return domain.Flow{}, err
	}
	s.logger.Info("Flow created", "flow_id", flow.ID, "name", flow.Name)
	return flow, nil
}

// GetFlow loads a flow.
func (s *Service) GetFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	return s.repo.LoadFlow(ctx, flowID)
}

// DeleteFlow removes a flow with all its nodes and edges.
func (s *Service) DeleteFlow(ctx context.Context, flowID string) (err error) {
	ctx, span := observability.StartFlowSpan(ctx, "delete_flow", flowID)
	defer func() { observability.EndSpan(span, err) }()

	return s.locks.WithLock(ctx, flowKey(flowID), func(ctx context.Context) error {
		if err := s.repo.DeleteFlow(ctx, flowID); err != nil {
			return err
		}
		s.logger.Info("Flow deleted", "flow_id", flowID)
		return nil
	})
}

// Edit opens flowID for editing and runs fn while holding the flow lock.
// Every mutation fn performs is persisted as it happens.
func (s *Service) Edit(ctx context.Context, flowID string, fn func(ctx context.Context, ed *Editor) error) (err error) {
	ctx, span := observability.StartFlowSpan(ctx, "edit", flowID)
	defer func() { observability.EndSpan(span, err) }()

	return s.locks.WithLock(ctx, flowKey(flowID), func(ctx context.Context) error {
		ed, err := Open(ctx, s.repo, flowID, s.editorOptions()...)
		if err != nil {
			return err
		}
		return fn(ctx, ed)
	})
}

// view opens a read-only editor over the current version of flowID.
func (s *Service) view(ctx context.Context, flowID string) (*Editor, error) {
	flow, err := s.repo.LoadFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return NewEditor(flow, s.editorOptions()...)
}

// Validate reports the connectivity and warnings of flowID.
func (s *Service) Validate(ctx context.Context, flowID string) (ValidationReport, error) {
	ed, err := s.view(ctx, flowID)
	if err != nil {
		return ValidationReport{}, err
	}
	return ed.Validate(), nil
}

// Variables returns the sorted placeholder set of flowID.
func (s *Service) Variables(ctx context.Context, flowID string) ([]string, error) {
	ed, err := s.view(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return ed.Variables(), nil
}

// MatchFields compares flowID's placeholders with contact list fields.
func (s *Service) MatchFields(ctx context.Context, flowID string, fields []string) (domain.FieldMatch, error) {
	ed, err := s.view(ctx, flowID)
	if err != nil {
		return domain.FieldMatch{}, err
	}
	return ed.MatchFields(fields), nil
}

func (s *Service) preview(ctx context.Context, flowID string) (*Preview, error) {
	ed, err := s.view(ctx, flowID)
	if err != nil {
		return nil, err
	}
	var opts []PreviewOption
	if s.matcher != nil {
		opts = append(opts, WithMatcher(s.matcher))
	}
	return ed.NewPreview(opts...), nil
}

// StartPreview opens a preview session on flowID's root.
func (s *Service) StartPreview(ctx context.Context, flowID string, contact map[string]string) (view *PreviewView, err error) {
	sessionID := s.idGen()
	ctx, span := observability.StartPreviewSpan(ctx, "start", sessionID)
	defer func() {
		s.metrics.ObservePreview("start", err)
		observability.EndSpan(span, err)
	}()

	engine, err := s.preview(ctx, flowID)
	if err != nil {
		return nil, err
	}
	state, err := engine.Start(ctx, sessionID, flowID, contact)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return engine.Render(ctx, state)
}

// Preview renders the current step of a session. A session whose node was
// deleted is restarted from the root and saved.
func (s *Service) Preview(ctx context.Context, sessionID string) (*PreviewView, error) {
	return s.step(ctx, "view", sessionID, func(ctx context.Context, engine *Preview, state *domain.PreviewState) (*domain.PreviewState, error) {
		return state, nil
	})
}

// Session loads a preview session as stored, without refreshing or saving it.
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.PreviewState, error) {
	return s.sessions.Load(ctx, sessionID)
}

// AdvancePreview follows edgeID from the session's current node.
func (s *Service) AdvancePreview(ctx context.Context, sessionID, edgeID string) (*PreviewView, error) {
	return s.step(ctx, "advance", sessionID, func(ctx context.Context, engine *Preview, state *domain.PreviewState) (*domain.PreviewState, error) {
		return engine.AdvanceByID(ctx, state, edgeID)
	})
}

// ReplyPreview maps a free-text customer reply to an edge and follows it.
func (s *Service) ReplyPreview(ctx context.Context, sessionID, utterance string) (*PreviewView, error) {
	return s.step(ctx, "reply", sessionID, func(ctx context.Context, engine *Preview, state *domain.PreviewState) (*domain.PreviewState, error) {
		return engine.Navigate(ctx, state, utterance)
	})
}

// ResetPreview restarts a session from the root.
func (s *Service) ResetPreview(ctx context.Context, sessionID string) (*PreviewView, error) {
	return s.step(ctx, "reset", sessionID, func(ctx context.Context, engine *Preview, state *domain.PreviewState) (*domain.PreviewState, error) {
		return engine.Reset(ctx, state)
	})
}

// EndPreview discards a session.
func (s *Service) EndPreview(ctx context.Context, sessionID string) (err error) {
	defer func() { s.metrics.ObservePreview("end", err) }()
	if _, err := s.sessions.Load(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

type stepFunc func(ctx context.Context, engine *Preview, state *domain.PreviewState) (*domain.PreviewState, error)

func (s *Service) step(ctx context.Context, action, sessionID string, fn stepFunc) (view *PreviewView, err error) {
	ctx, span := observability.StartPreviewSpan(ctx, action, sessionID)
	defer func() {
		s.metrics.ObservePreview(action, err)
		observability.EndSpan(span, err)
	}()

	_, err = s.sessions.Update(ctx, sessionID, func(state *domain.PreviewState) (*domain.PreviewState, error) {
		engine, err := s.preview(ctx, state.FlowID)
		if err != nil {
			return nil, err
		}
		next, err := fn(ctx, engine, state)
		if err != nil {
			return nil, err
		}
		// Render refreshes stale cursors; persist what it rendered.
		view, err = engine.Render(ctx, next)
		if err != nil {
			return nil, err
		}
		return view.State, nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func flowKey(flowID string) string {
	return "flow:" + flowID
}
