package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/callflow/internal/cli"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/spf13/cobra"
)

var variablesCmd = &cobra.Command{
	Use:   "variables <flow>",
	Short: "List the placeholders a flow's messages use",
	Long: `Prints every {placeholder} found in the flow's messages. With --fields the
placeholders are compared against the fields a contact list provides.`,
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

		vars := domain.FlowPlaceholders(flow)
		out := cmd.OutOrStdout()

		fields, _ := cmd.Flags().GetStringSlice("fields")
		if len(fields) == 0 {
			for _, v := range vars {
				fmt.Fprintln(out, v)
			}
			return nil
		}

		m := domain.MatchFields(vars, fields)
		fmt.Fprintf(out, "matched: %s\n", strings.Join(m.Matched, ", "))
		fmt.Fprintf(out, "missing: %s\n", strings.Join(m.Missing, ", "))
		fmt.Fprintf(out, "extra:   %s\n", strings.Join(m.Extra, ", "))
		if len(m.Missing) > 0 {
			return fmt.Errorf("%d placeholder(s) have no matching field", len(m.Missing))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(variablesCmd)
	variablesCmd.Flags().StringSlice("fields", nil, "Fields available in the contact list, comma separated")
}
