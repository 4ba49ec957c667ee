package main

import (
	"github.com/spf13/cobra"

	"github.com/cartmetrics/abtest-cli/internal/pipeline"
)

var martsCmd = &cobra.Command{
	Use:   "marts",
	Short: "Build the user exposure and outcome marts",
	Long: `Read the clean event partitions and staged sessions, resolve each
user's first exposure, aggregate the outcome window, and write the
user_exposure and user_outcomes parquet objects to the processed bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, cleanup, err := newPipelineEnv(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = pipeline.BuildMarts(ctx, env)
		return err
	},
}

func init() {
	rootCmd.AddCommand(martsCmd)
}
