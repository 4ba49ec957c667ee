package main

import (
	"github.com/spf13/cobra"

	"github.com/cartmetrics/abtest-cli/internal/pipeline"
	"github.com/cartmetrics/abtest-cli/internal/store"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the marts into the warehouse",
	Long: `Read the mart parquet objects from the processed bucket and upsert
them into the configured warehouse (postgres or sqlite), keyed by
(experiment_id, user_id). Reloading is idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, cleanup, err := newPipelineEnv(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		return pipeline.Load(ctx, env, st)
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
