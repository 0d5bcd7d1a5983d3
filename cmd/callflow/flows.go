package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/callflow/internal/cli"
	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage the flows of the configured store",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		flows, err := b.Repo.ListFlows(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tNODES")
		for _, f := range flows {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", f.ID, f.Name, f.IsActive, f.NodeCount)
		}
		return tw.Flush()
	},
}

var flowsImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import flow files into the configured store",
	Long:  `Reads a flow file or every .yaml, .yml and .json flow in a directory and stores them.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, logger, _, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		replace, _ := cmd.Flags().GetBool("replace")
		ids, err := cli.Import(cmd.Context(), b.Repo, args[0], replace)
		for _, id := range ids {
			logger.Info("Flow imported", "flow_id", id)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", id)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
	flowsCmd.AddCommand(flowsListCmd, flowsImportCmd)
	flowsImportCmd.Flags().Bool("replace", false, "Replace flows that already exist")
}
