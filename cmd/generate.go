package main

import (
	"github.com/spf13/cobra"

	"github.com/cartmetrics/abtest-cli/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic raw datasets",
	Long: `Generate the synthetic raw datasets (users, products, sessions,
experiment assignments, funnel events) and upload them as CSVs to the raw
bucket. Generation is deterministic for a given generate.seed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, cleanup, err := newPipelineEnv(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		return pipeline.Generate(ctx, env)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
