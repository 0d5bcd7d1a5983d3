// Package http exposes a callflow.Service as a JSON REST API with
// server-sent change streams.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the REST API over a Service.
type Server struct {
	svc     *callflow.Service
	streams *StreamManager
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager, e.g. with a process publishing its own changes.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// NewServer creates a Server for svc.
func NewServer(svc *callflow.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}
	return s
}

// Streams returns the change broadcaster.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc *callflow.Service, opts ...Option) http.Handler {
	return NewServer(svc, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Handle("/metrics", s.svc.Metrics().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/flows", func(r chi.Router) {
			r.Get("/", s.listFlows)
			r.Post("/", s.createFlow)

			r.Route("/{flowID}", func(r chi.Router) {
				r.Get("/", s.getFlow)
				r.Patch("/", s.updateFlow)
				r.Delete("/", s.deleteFlow)

				r.Get("/validation", s.validateFlow)
				r.Get("/variables", s.variables)
				r.Post("/variables/match", s.matchFields)
				r.Get("/graph", s.graph)
				r.Get("/events", s.subscribeEvents)

				r.Patch("/nodes/{nodeID}", s.updateNode)
				r.Delete("/nodes/{nodeID}", s.deleteNode)
				r.Post("/nodes/{nodeID}/branches", s.addBranch)

				r.Post("/edges", s.addEdge)
				r.Delete("/edges/{edgeID}", s.deleteEdge)
			})
		})

		r.Route("/previews", func(r chi.Router) {
			r.Post("/", s.startPreview)
			r.Get("/{sessionID}", s.getPreview)
			r.Post("/{sessionID}/advance", s.advancePreview)
			r.Post("/{sessionID}/reply", s.replyPreview)
			r.Post("/{sessionID}/reset", s.resetPreview)
			r.Delete("/{sessionID}", s.endPreview)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "callflow-http",
		"version": strings.TrimSpace(callflow.Version),
	})
}

// -- Flows --

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.svc.ListFlows(r.Context())
	if err != nil {
		writeError(w, s.logger, "ListFlows", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, flows)
}

func (s *Server) createFlow(w http.ResponseWriter, r *http.Request) {
	var body createFlowRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "CreateFlow", err)
		return
	}
	flow, err := s.svc.CreateFlow(r.Context(), body.Name, body.Description)
	if err != nil {
		writeError(w, s.logger, "CreateFlow", err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, flow)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.svc.GetFlow(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, s.logger, "GetFlow", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, flow)
}

func (s *Server) updateFlow(w http.ResponseWriter, r *http.Request) {
	var meta domain.FlowMeta
	if err := decode(w, r, &meta); err != nil {
		writeError(w, s.logger, "UpdateFlow", err)
		return
	}
	if meta.Name != nil && strings.TrimSpace(*meta.Name) == "" {
		writeError(w, s.logger, "UpdateFlow", &domain.ValidationError{Field: "name", Reason: "must not be blank"})
		return
	}
	s.edit(w, r, "UpdateFlow", func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error) {
		return ed.UpdateMeta(ctx, meta)
	})
}

func (s *Server) deleteFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFlow(r.Context(), chi.URLParam(r, "flowID")); err != nil {
		writeError(w, s.logger, "DeleteFlow", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) validateFlow(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Validate(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, s.logger, "Validate", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, report)
}

func (s *Server) variables(w http.ResponseWriter, r *http.Request) {
	vars, err := s.svc.Variables(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, s.logger, "Variables", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, variablesResponse{Variables: vars})
}

func (s *Server) matchFields(w http.ResponseWriter, r *http.Request) {
	var body matchFieldsRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "MatchFields", err)
		return
	}
	match, err := s.svc.MatchFields(r.Context(), chi.URLParam(r, "flowID"), body.Fields)
	if err != nil {
		writeError(w, s.logger, "MatchFields", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, match)
}

// graph renders Mermaid text; ?session=<id> overlays that preview's path.
func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")
	flow, err := s.svc.GetFlow(r.Context(), flowID)
	if err != nil {
		writeError(w, s.logger, "Graph", err)
		return
	}

	var overlay *graph.GraphOverlay
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		state, err := s.svc.Session(r.Context(), sessionID)
		if err != nil {
			writeError(w, s.logger, "Graph", err)
			return
		}
		if state.FlowID != flowID {
			writeError(w, s.logger, "Graph", &domain.ValidationError{Field: "session", Reason: "session belongs to another flow"})
			return
		}
		overlay = &graph.GraphOverlay{VisitedNodes: state.History, CurrentNode: state.CurrentNodeID}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(flow, overlay))
}

// -- Nodes & edges --

func (s *Server) addBranch(w http.ResponseWriter, r *http.Request) {
	var body branchRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "AddBranch", err)
		return
	}

	var branch callflow.Branch
	s.editWith(w, r, "AddBranch", http.StatusCreated, func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error) {
		b, cs, err := ed.AddBranch(ctx, chi.URLParam(r, "nodeID"), body)
		branch = b
		return cs, err
	}, func(cs *domain.ChangeSet) any {
		return branchResponse{Branch: branch, Changes: cs}
	})
}

func (s *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeNodePatch(w, r)
	if err != nil {
		writeError(w, s.logger, "UpdateNode", err)
		return
	}
	s.edit(w, r, "UpdateNode", func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error) {
		return ed.UpdateNode(ctx, chi.URLParam(r, "nodeID"), patch)
	})
}

// deleteNode detaches by default; ?mode=cascade removes the orphaned subtree too.
func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	mode := callflow.Detach
	switch r.URL.Query().Get("mode") {
	case "", "detach":
	case "cascade":
		mode = callflow.Cascade
	default:
		writeError(w, s.logger, "DeleteNode", &domain.ValidationError{Field: "mode", Reason: "must be detach or cascade"})
		return
	}
	s.edit(w, r, "DeleteNode", func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error) {
		return ed.DeleteNode(ctx, chi.URLParam(r, "nodeID"), mode)
	})
}

func (s *Server) addEdge(w http.ResponseWriter, r *http.Request) {
	var body addEdgeRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "AddEdge", err)
		return
	}
	s.editWith(w, r, "AddEdge", http.StatusCreated, func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error) {
		return ed.Apply(ctx, domain.AddEdge{Edge: domain.FlowEdge{
			FromNodeID:     body.FromNodeID,
			ToNodeID:       body.ToNodeID,
			ConditionValue: body.ConditionValue,
			Label:          body.Label,
		}})
	}, nil)
}

func (s *Server) deleteEdge(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, "DeleteEdge", func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error) {
		return ed.DeleteBranch(ctx, chi.URLParam(r, "edgeID"))
	})
}

type editFunc func(ctx context.Context, ed *callflow.Editor) (domain.ChangeSet, error)

func (s *Server) edit(w http.ResponseWriter, r *http.Request, op string, fn editFunc) {
	s.editWith(w, r, op, http.StatusOK, fn, nil)
}

// editWith runs fn under the flow lock, broadcasts the resulting ChangeSet
// and writes either respond(cs) or the ChangeSet itself.
func (s *Server) editWith(w http.ResponseWriter, r *http.Request, op string, status int, fn editFunc, respond func(*domain.ChangeSet) any) {
	flowID := chi.URLParam(r, "flowID")
	var cs domain.ChangeSet
	err := s.svc.Edit(r.Context(), flowID, func(ctx context.Context, ed *callflow.Editor) error {
		var err error
		cs, err = fn(ctx, ed)
		return err
	})
	if err != nil {
		writeError(w, s.logger, op, err)
		return
	}

	if !cs.IsEmpty() {
		if payload, err := json.Marshal(cs); err == nil {
			s.streams.Broadcast(flowID, string(payload))
		}
	}

	var resp any = &cs
	if respond != nil {
		resp = respond(&cs)
	}
	writeJSON(w, s.logger, status, resp)
}

// -- Previews --

func (s *Server) startPreview(w http.ResponseWriter, r *http.Request) {
	var body startPreviewRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "StartPreview", err)
		return
	}
	view, err := s.svc.StartPreview(r.Context(), body.FlowID, body.Contact)
	if err != nil {
		writeError(w, s.logger, "StartPreview", err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, view)
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, "Preview")(s.svc.Preview(r.Context(), chi.URLParam(r, "sessionID")))
}

func (s *Server) advancePreview(w http.ResponseWriter, r *http.Request) {
	var body advanceRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "AdvancePreview", err)
		return
	}
	s.writeView(w, "AdvancePreview")(s.svc.AdvancePreview(r.Context(), chi.URLParam(r, "sessionID"), body.EdgeID))
}

func (s *Server) replyPreview(w http.ResponseWriter, r *http.Request) {
	var body replyRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, s.logger, "ReplyPreview", err)
		return
	}
	s.writeView(w, "ReplyPreview")(s.svc.ReplyPreview(r.Context(), chi.URLParam(r, "sessionID"), body.Utterance))
}

func (s *Server) resetPreview(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, "ResetPreview")(s.svc.ResetPreview(r.Context(), chi.URLParam(r, "sessionID")))
}

func (s *Server) endPreview(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndPreview(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, s.logger, "EndPreview", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeView(w http.ResponseWriter, op string) func(*callflow.PreviewView, error) {
	return func(view *callflow.PreviewView, err error) {
		if err != nil {
			writeError(w, s.logger, op, err)
			return
		}
		writeJSON(w, s.logger, http.StatusOK, view)
	}
}

// -- Events --

// subscribeEvents streams the ChangeSets of a flow as SSE.
// ?watch=nodes,edges,meta keeps only change sets touching those parts.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	flowID := chi.URLParam(r, "flowID")
	if _, err := s.svc.GetFlow(r.Context(), flowID); err != nil {
		writeError(w, s.logger, "SubscribeEvents", err)
		return
	}

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	ch, cancel := s.streams.Subscribe(flowID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Subscribing to flow changes", "flow_id", flowID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "flow_id", flowID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func watched(msg string, fields []string) bool {
	var cs domain.ChangeSet
	if err := json.Unmarshal([]byte(msg), &cs); err != nil {
		return true
	}
	for _, field := range fields {
		switch strings.TrimSpace(field) {
		case "nodes":
			if len(cs.AddedNodes)+len(cs.UpdatedNodes)+len(cs.RemovedNodes) > 0 {
				return true
			}
		case "edges":
			if len(cs.AddedEdges)+len(cs.RemovedEdges) > 0 {
				return true
			}
		case "meta":
			if cs.Meta != nil {
				return true
			}
		}
	}
	return false
}
