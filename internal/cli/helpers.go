// Package cli holds the wiring shared by the callflow commands: backend
// selection, flow resolution and the interactive preview loop.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/domain"
)

// NewLogger configures the application logger. Debug forces debug level;
// otherwise level applies. Logs go to Stderr so Stdout stays clean.
func NewLogger(debug bool, level slog.Level) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(level)
}

// DebugHooks logs every node entered or left and every applied mutation.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Enter Node", "node_id", e.NodeID, "type", e.NodeType, "session_id", e.SessionID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Leave Node", "node_id", e.NodeID, "session_id", e.SessionID)
		},
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			logger.Debug("Mutation", "flow_id", e.FlowID, "command", e.Command)
		},
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
