package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSchemaCommand(flags *pipelineFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the applicant schema and feature order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := flags.load()
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")

			out := cmd.OutOrStdout()
			schema := pipeline.Schema()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"artifact":      pipeline.Artifact().Name(),
					"model_version": pipeline.Artifact().Version(),
					"feature_order": schema.FeatureNames(),
				})
			case "text":
				fmt.Fprint(out, schema.String())
				fmt.Fprintf(out, "\n%d features\n", schema.Dimension())
				return nil
			default:
				return fmt.Errorf("unknown format %q (use: text, json)", format)
			}
		},
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}
