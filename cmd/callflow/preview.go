package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/callflow/internal/cli"
	"github.com/aretw0/callflow/internal/presentation/tui"
	"github.com/aretw0/callflow/pkg/adapters/file"
	"github.com/aretw0/callflow/pkg/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var previewCmd = &cobra.Command{
	Use:   "preview <flow>",
	Short: "Simulate a call against a flow",
	Long: `Plays the AI side of the flow in the terminal. Answer with the number of a
response or type what the customer would say. Type 'reset' to start over and
'quit' to stop.

With --session the preview is saved after every step and resumed on the next run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, logger, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		flow, err := cli.ResolveFlow(cmd.Context(), args[0], b.Repo)
		if err != nil {
			return err
		}

		pairs, _ := cmd.Flags().GetStringArray("contact")
		contact, err := parseContact(pairs)
		if err != nil {
			return err
		}

		debug, _ := cmd.Flags().GetBool("debug")
		opts := cli.PreviewOptions{
			In:      cmd.InOrStdin(),
			Out:     cmd.OutOrStdout(),
			Contact: contact,
			Logger:  logger,
		}
		if debug {
			opts.Hooks = cli.DebugHooks(logger)
		}

		plain, _ := cmd.Flags().GetBool("plain")
		if !plain && isTerminal(cmd) {
			tui.PrintBanner(opts.Out)
			opts.Render = tui.NewRenderer()
		}

		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			dir, _ := cmd.Flags().GetString("sessions-dir")
			opts.Sessions = session.NewManager(b.WrapSessions(file.NewStore(dir)), session.WithLogger(logger))
			opts.SessionID = sessionID
		}

		_, err = cli.RunPreview(cmd.Context(), flow, opts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringArray("contact", nil, "Contact data as key=value, repeatable")
	previewCmd.Flags().String("session", "", "Save and resume the preview under this session id")
	previewCmd.Flags().String("sessions-dir", "", "Directory of saved preview sessions (default .callflow/sessions)")
	previewCmd.Flags().Bool("plain", false, "Print raw markdown instead of styled output")
}

// isTerminal reports whether the command writes to an interactive terminal.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseContact(pairs []string) (map[string]string, error) {
	contact := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid contact %q, want key=value", p)
		}
		contact[k] = v
	}
	return contact, nil
}
