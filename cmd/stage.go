package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartmetrics/abtest-cli/internal/stage"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Stage raw CSVs into clean parquet",
	Long: `Run the staging stages: users, products, sessions, assignments, and
clean_events. Independent stages run concurrently; a failed stage skips its
dependents but does not stop the rest.

Use --stages to run a subset, e.g. --stages clean_events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, cleanup, err := newStageEnv(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		names, err := cmd.Flags().GetStringSlice("stages")
		if err != nil {
			return err
		}

		engine := stage.NewEngine(env, stage.NewRegistry())
		return engine.Run(ctx, stage.RunOpts{Stages: names})
	},
}

func init() {
	stageCmd.Flags().StringSlice("stages", nil,
		"comma-separated stage names (default: all; valid: "+strings.Join(stage.NewRegistry().AllNames(), ", ")+")")
	rootCmd.AddCommand(stageCmd)
}
