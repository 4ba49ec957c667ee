package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartmetrics/abtest-cli/internal/pipeline"
	"github.com/cartmetrics/abtest-cli/internal/stage"
	"github.com/cartmetrics/abtest-cli/internal/stats"
	"github.com/cartmetrics/abtest-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline end to end",
	Long: `Generate the synthetic raw datasets, stage them into clean parquet,
build the marts, load the warehouse, and print the conversion summary.
Equivalent to generate, stage, marts, and load in sequence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, cleanup, err := newPipelineEnv(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := pipeline.Generate(ctx, env); err != nil {
			return err
		}

		stageEnv := &stage.Env{Store: env.Store, Cfg: env.Cfg, Runs: env.Runs}
		engine := stage.NewEngine(stageEnv, stage.NewRegistry())
		if err := engine.Run(ctx, stage.RunOpts{}); err != nil {
			return err
		}

		if _, err := pipeline.BuildMarts(ctx, env); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := pipeline.Load(ctx, env, st); err != nil {
			return err
		}

		experimentID := cfg.Experiment.DefaultExperimentID
		outcomes, err := st.ListOutcomes(ctx, experimentID)
		if err != nil {
			return err
		}

		fmt.Printf("pipeline complete: %d users in experiment %s\n", len(outcomes), experimentID)
		for _, s := range stats.ConversionSummary(outcomes) {
			fmt.Printf("%-10s users=%-6d conversions=%-5d rate=%.4f\n",
				s.Variant, s.Users, s.Conversions, s.ConversionRate)
		}
		fmt.Println("\nrun `abtest analyze` for the full readout")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
