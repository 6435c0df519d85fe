package main

import (
	"fmt"
	"strings"

	"github.com/liamcoop/premium/premium"
	"github.com/spf13/cobra"
)

func newArtifactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Inspect scoring artifacts",
	}
	cmd.AddCommand(newArtifactValidateCommand())
	return cmd
}

func newArtifactValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Check that an artifact loads against the applicant schema",
		Long: `Check that an artifact loads against the applicant schema.

Runs every load-time check the server runs: document shape, feature order,
segment conditions and model structure. Use it in CI before deploying a new
artifact.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := premium.DefaultSchema()
			artifact, err := premium.LoadArtifactFile(args[0], schema)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s %s\n", artifact.Name(), artifact.Version())
			fmt.Fprintf(out, "  features: %d\n", artifact.Dimension())
			for _, name := range artifact.Segments() {
				when, _ := artifact.Condition(name)
				fmt.Fprintf(out, "  segment %-12s when %s\n", name, strings.TrimSpace(when))
			}
			return nil
		},
	}
}
