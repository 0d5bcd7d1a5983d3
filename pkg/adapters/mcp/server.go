// Package mcp exposes flow inspection and preview sessions as Model Context
// Protocol tools, so an agent can read and rehearse call scripts.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxUtteranceBytes bounds free-text replies sent by agents.
const maxUtteranceBytes = 1000

const flowsURI = "callflow://flows"

type ListFlowsResponse struct {
	Flows []domain.FlowSummary `json:"flows" jsonschema_description:"Every stored flow"`
}

type VariablesResponse struct {
	Variables []string           `json:"variables" jsonschema_description:"Sorted placeholder names used by the flow messages"`
	Match     *domain.FieldMatch `json:"match,omitempty" jsonschema_description:"Compatibility with the given contact fields"`
}

type GraphResponse struct {
	Mermaid string `json:"mermaid" jsonschema_description:"Mermaid flowchart of the flow"`
}

// PreviewResponse is the current step of a preview session.
type PreviewResponse struct {
	SessionID  string                   `json:"session_id"`
	NodeID     string                   `json:"node_id"`
	Message    string                   `json:"message" jsonschema_description:"What the AI says at this step"`
	Choices    []domain.FlowEdge        `json:"choices" jsonschema_description:"Customer responses available"`
	Terminal   bool                     `json:"terminal"`
	Banner     string                   `json:"banner,omitempty" jsonschema_description:"Why the call stopped, once terminal"`
	Reset      bool                     `json:"reset,omitempty" jsonschema_description:"True if the flow changed and the preview restarted"`
	Transcript []domain.TranscriptEntry `json:"transcript"`
}

type BranchResponse struct {
	Node domain.FlowNode `json:"node"`
	Edge domain.FlowEdge `json:"edge"`
}

type flowArgs struct {
	FlowID string `json:"flow_id"`
}

type variablesArgs struct {
	FlowID string   `json:"flow_id"`
	Fields []string `json:"fields,omitempty"`
}

type previewStartArgs struct {
	FlowID  string            `json:"flow_id"`
	Contact map[string]string `json:"contact,omitempty"`
}

type previewAdvanceArgs struct {
	SessionID string `json:"session_id"`
	EdgeID    string `json:"edge_id,omitempty"`
	Utterance string `json:"utterance,omitempty"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type addBranchArgs struct {
	FlowID         string `json:"flow_id"`
	ParentID       string `json:"parent_id"`
	ConditionValue string `json:"condition_value"`
	AIMessage      string `json:"ai_message"`
	NodeType       string `json:"node_type,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	CaptureField   string `json:"capture_field,omitempty"`
}

// Server wraps a callflow.Service and exposes it as an MCP Server.
type Server struct {
	svc       *callflow.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(svc *callflow.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("callflow-mcp", strings.TrimSpace(callflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the stored call flows with their node counts."),
		mcp.WithOutputSchema[ListFlowsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Report the nodes reachable from the root, the orphans and the missing-attribute warnings of a flow."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithOutputSchema[callflow.ValidationReport](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("flow_variables",
		mcp.WithDescription("List the placeholders a flow needs; with fields, check them against a contact list."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithArray("fields", mcp.Description("Contact list column names (optional)"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithOutputSchema[VariablesResponse](),
	), mcp.NewStructuredToolHandler(s.handleVariables))

	s.mcpServer.AddTool(mcp.NewTool("flow_graph",
		mcp.WithDescription("Render a flow as a Mermaid flowchart."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithOutputSchema[GraphResponse](),
	), mcp.NewStructuredToolHandler(s.handleGraph))

	s.mcpServer.AddTool(mcp.NewTool("add_branch",
		mcp.WithDescription("Add a customer response under a node, leading to a new AI reply."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Node the customer is answering")),
		mcp.WithString("condition_value", mcp.Required(), mcp.Description("What the customer says")),
		mcp.WithString("ai_message", mcp.Required(), mcp.Description("What the AI replies")),
		mcp.WithString("node_type", mcp.Description("question, statement, capture, transfer or end")),
		mcp.WithString("outcome", mcp.Description("Outcome recorded by end or transfer nodes")),
		mcp.WithString("capture_field", mcp.Description("Field recorded by capture nodes")),
		mcp.WithOutputSchema[BranchResponse](),
	), mcp.NewStructuredToolHandler(s.handleAddBranch))

	s.mcpServer.AddTool(mcp.NewTool("preview_start",
		mcp.WithDescription("Start a simulated call on a flow's root."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithObject("contact", mcp.Description("Contact data used to fill placeholders (optional)")),
		mcp.WithOutputSchema[PreviewResponse](),
	), mcp.NewStructuredToolHandler(s.handlePreviewStart))

	s.mcpServer.AddTool(mcp.NewTool("preview_advance",
		mcp.WithDescription("Answer the current step of a simulated call, by edge ID or free text."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Preview session ID")),
		mcp.WithString("edge_id", mcp.Description("Response edge to follow")),
		mcp.WithString("utterance", mcp.Description("Free-text customer reply, matched against the responses")),
		mcp.WithOutputSchema[PreviewResponse](),
	), mcp.NewStructuredToolHandler(s.handlePreviewAdvance))

	s.mcpServer.AddTool(mcp.NewTool("preview_reset",
		mcp.WithDescription("Restart a simulated call from the root."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Preview session ID")),
		mcp.WithOutputSchema[PreviewResponse](),
	), mcp.NewStructuredToolHandler(s.handlePreviewReset))
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (ListFlowsResponse, error) {
	flows, err := s.svc.ListFlows(ctx)
	if err != nil {
		return ListFlowsResponse{}, fmt.Errorf("list flows failed: %w", err)
	}
	return ListFlowsResponse{Flows: flows}, nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args flowArgs) (callflow.ValidationReport, error) {
	report, err := s.svc.Validate(ctx, args.FlowID)
	if err != nil {
		return callflow.ValidationReport{}, fmt.Errorf("validate failed: %w", err)
	}
	return report, nil
}

func (s *Server) handleVariables(ctx context.Context, request mcp.CallToolRequest, args variablesArgs) (VariablesResponse, error) {
	vars, err := s.svc.Variables(ctx, args.FlowID)
	if err != nil {
		return VariablesResponse{}, fmt.Errorf("variables failed: %w", err)
	}
	resp := VariablesResponse{Variables: vars}
	if len(args.Fields) > 0 {
		match := domain.MatchFields(vars, args.Fields)
		resp.Match = &match
	}
	return resp, nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest, args flowArgs) (GraphResponse, error) {
	flow, err := s.svc.GetFlow(ctx, args.FlowID)
	if err != nil {
		return GraphResponse{}, fmt.Errorf("graph failed: %w", err)
	}
	return GraphResponse{Mermaid: graph.GenerateMermaid(flow, nil)}, nil
}

func (s *Server) handleAddBranch(ctx context.Context, request mcp.CallToolRequest, args addBranchArgs) (BranchResponse, error) {
	spec := callflow.BranchSpec{
		ConditionValue: args.ConditionValue,
		AIMessage:      args.AIMessage,
		Outcome:        args.Outcome,
		CaptureField:   args.CaptureField,
	}
	if args.NodeType != "" {
		t, err := domain.ParseNodeType(args.NodeType)
		if err != nil {
			return BranchResponse{}, err
		}
		spec.Type = t
	}

	var branch callflow.Branch
	err := s.svc.Edit(ctx, args.FlowID, func(ctx context.Context, ed *callflow.Editor) error {
		var err error
		branch, _, err = ed.AddBranch(ctx, args.ParentID, spec)
		return err
	})
	if err != nil {
		return BranchResponse{}, fmt.Errorf("add branch failed: %w", err)
	}
	return BranchResponse{Node: branch.Node, Edge: branch.Edge}, nil
}

func (s *Server) handlePreviewStart(ctx context.Context, request mcp.CallToolRequest, args previewStartArgs) (PreviewResponse, error) {
	view, err := s.svc.StartPreview(ctx, args.FlowID, args.Contact)
	if err != nil {
		return PreviewResponse{}, fmt.Errorf("preview start failed: %w", err)
	}
	return toResponse(view), nil
}

func (s *Server) handlePreviewAdvance(ctx context.Context, request mcp.CallToolRequest, args previewAdvanceArgs) (PreviewResponse, error) {
	var (
		view *callflow.PreviewView
		err  error
	)
	switch {
	case args.EdgeID != "":
		view, err = s.svc.AdvancePreview(ctx, args.SessionID, args.EdgeID)
	case args.Utterance != "":
		if len(args.Utterance) > maxUtteranceBytes {
			s.logger.Warn("MCP preview_advance: utterance rejected", "size", len(args.Utterance))
			return PreviewResponse{}, &domain.ValidationError{Field: "utterance", Reason: "too long"}
		}
		view, err = s.svc.ReplyPreview(ctx, args.SessionID, args.Utterance)
	default:
		return PreviewResponse{}, &domain.ValidationError{Field: "edge_id", Reason: "edge_id or utterance is required"}
	}
	if err != nil {
		return PreviewResponse{}, fmt.Errorf("preview advance failed: %w", err)
	}
	return toResponse(view), nil
}

func (s *Server) handlePreviewReset(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (PreviewResponse, error) {
	view, err := s.svc.ResetPreview(ctx, args.SessionID)
	if err != nil {
		return PreviewResponse{}, fmt.Errorf("preview reset failed: %w", err)
	}
	return toResponse(view), nil
}

func toResponse(v *callflow.PreviewView) PreviewResponse {
	resp := PreviewResponse{
		SessionID:  v.State.SessionID,
		NodeID:     v.Node.ID,
		Message:    v.Message,
		Choices:    v.Choices,
		Terminal:   v.Terminal,
		Reset:      v.Reset,
		Transcript: v.State.Transcript,
	}
	if v.Banner != nil {
		resp.Banner = v.Banner.Text
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(flowsURI, "Stored call flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		flows, err := s.svc.ListFlows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		jsonBytes, _ := json.Marshal(flows)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      flowsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
