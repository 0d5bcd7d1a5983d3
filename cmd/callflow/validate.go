package main

import (
	"fmt"

	"github.com/aretw0/callflow/internal/cli"
	"github.com/aretw0/callflow/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow>",
	Short: "Check a flow for orphan nodes and content warnings",
	Long: `Walks the flow from its root and reports the nodes that cannot be reached.
Capture nodes without a field and end or transfer nodes without an outcome tag
are reported as warnings. <flow> is a flow file or the id of a stored flow.`,
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

		report := validator.Validate(flow)
		out := cmd.OutOrStdout()
		for _, n := range report.Orphans {
			fmt.Fprintf(out, "orphan   %-12s %s\n", n.ID, n.Label)
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning  %-12s %s\n", w.NodeID, w.Message)
		}

		if report.HasIssues() {
			return fmt.Errorf("flow %q has %d orphan(s) and %d warning(s)", flow.ID, len(report.Orphans), len(report.Warnings))
		}
		fmt.Fprintln(out, "Flow is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
