package main

import (
	"log/slog"

	"github.com/liamcoop/premium/internal/logger"
	"github.com/liamcoop/premium/premium"
	"github.com/spf13/cobra"
)

var version = "dev"

// pipelineFlags are shared by every command that scores records
type pipelineFlags struct {
	artifact string
	strict   bool
}

func (f *pipelineFlags) load() (*premium.Pipeline, error) {
	opts := premium.DefaultOptions()
	opts.StrictSchema = f.strict
	return premium.Load(f.artifact, opts)
}

func newRootCommand() *cobra.Command {
	flags := &pipelineFlags{}

	cmd := &cobra.Command{
		Use:   "premium",
		Short: "Premium - score health insurance applicants offline",
		Long: `Premium scores applicant records with the same pipeline the API serves.

It validates records against the applicant schema, routes them to a model
segment and prints the finalized premium.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.artifact, "artifact", "", "Path to a scoring artifact (default: embedded)")
	cmd.PersistentFlags().BoolVar(&flags.strict, "strict", false, "Reject fields the schema does not declare")
	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			logger.SetLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newPredictCommand(flags))
	cmd.AddCommand(newArtifactCommand())
	cmd.AddCommand(newSchemaCommand(flags))

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
