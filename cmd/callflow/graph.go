package main

import (
	"fmt"

	"github.com/aretw0/callflow/internal/cli"
	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/aretw0/callflow/pkg/adapters/file"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart of the flow. Orphan nodes are highlighted.
With --session, the path walked by a saved preview session is overlaid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		flow, err := cli.ResolveFlow(cmd.Context(), args[0], b.Repo)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			dir, _ := cmd.Flags().GetString("sessions-dir")
			state, err := b.WrapSessions(file.NewStore(dir)).Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("load session %q: %w", sessionID, err)
			}
			overlay = &graph.GraphOverlay{VisitedNodes: state.History, CurrentNode: state.CurrentNodeID}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Overlay the path of a saved preview session")
	graphCmd.Flags().String("sessions-dir", "", "Directory of saved preview sessions (default .callflow/sessions)")
}
