package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/presentation/tui"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/session"
)

// PreviewOptions configures RunPreview.
type PreviewOptions struct {
	In      io.Reader
	Out     io.Writer
	Contact map[string]string

	// Render turns markdown into terminal output; nil prints it raw.
	Render func(string) (string, error)

	// Sessions and SessionID persist the preview between runs.
	Sessions  *session.Manager
	SessionID string

	Logger *slog.Logger
	Hooks  domain.LifecycleHooks
}

// RunPreview simulates a call on flow in the terminal. The customer answers
// with a choice number or free text; "reset" restarts and "quit" stops.
// It returns the final state.
func RunPreview(ctx context.Context, flow domain.Flow, opts PreviewOptions) (*domain.PreviewState, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	ed, err := callflow.NewEditor(flow, callflow.WithLogger(opts.Logger), callflow.WithLifecycleHooks(opts.Hooks))
	if err != nil {
		return nil, err
	}
	engine := ed.NewPreview()
	out := opts.Out

	state, resumed, err := startOrResume(ctx, engine, flow.ID, opts)
	if err != nil {
		return nil, err
	}
	if resumed {
		printSystemMessage(out, "Resuming session '%s' at '%s'.", opts.SessionID, state.CurrentNodeID)
	}

	scanner := bufio.NewScanner(opts.In)
	for {
		view, err := engine.Render(ctx, state)
		if err != nil {
			return state, err
		}
		state = view.State
		if err := save(ctx, opts, state); err != nil {
			return state, err
		}

		show(out, opts.Render, view)
		if view.Terminal {
			fmt.Fprintln(out, tui.FormatBanner(out, *view.Banner))
			return state, nil
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return state, err
			}
			return state, nil
		}
		input := strings.TrimSpace(scanner.Text())

		var next *domain.PreviewState
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit":
			printSystemMessage(out, "Bye!")
			return state, nil
		case "reset":
			next, err = engine.Reset(ctx, state)
		default:
			if n, convErr := strconv.Atoi(input); convErr == nil && n >= 1 && n <= len(view.Choices) {
				next, err = engine.Advance(ctx, state, view.Choices[n-1])
			} else {
				next, err = engine.Navigate(ctx, state, input)
			}
		}

		if errors.Is(err, domain.ErrNoMatch) {
			printSystemMessage(out, "No response matches %q. Pick a number or type one of the responses.", input)
			continue
		}
		var invalid *domain.ValidationError
		if errors.As(err, &invalid) && invalid.Field == "utterance" {
			printSystemMessage(out, "Reply rejected: %s. Try again.", invalid.Reason)
			continue
		}
		if err != nil {
			return state, err
		}
		state = next
	}
}

func startOrResume(ctx context.Context, engine *callflow.Preview, flowID string, opts PreviewOptions) (*domain.PreviewState, bool, error) {
	if opts.Sessions != nil && opts.SessionID != "" {
		state, err := opts.Sessions.Load(ctx, opts.SessionID)
		switch {
		case err == nil && state.FlowID == flowID:
			return state, true, nil
		case err == nil:
			opts.Logger.Warn("session belongs to another flow, starting over", "session_id", opts.SessionID, "flow_id", state.FlowID)
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, false, fmt.Errorf("failed to load session: %w", err)
		}
	}
	state, err := engine.Start(ctx, opts.SessionID, flowID, opts.Contact)
	return state, false, err
}

func save(ctx context.Context, opts PreviewOptions, state *domain.PreviewState) error {
	if opts.Sessions == nil || opts.SessionID == "" {
		return nil
	}
	return opts.Sessions.Save(ctx, opts.SessionID, state)
}

// show prints the last AI line and the numbered choices.
func show(out io.Writer, render func(string) (string, error), view *callflow.PreviewView) {
	md := fmt.Sprintf("🤖 **AI**: %s\n\n%s", view.Message, tui.ViewMarkdown(view))
	if render != nil {
		if rendered, err := render(md); err == nil {
			md = rendered
		}
	}
	fmt.Fprint(out, md)
}
