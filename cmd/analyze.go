package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cartmetrics/abtest-cli/internal/report"
	"github.com/cartmetrics/abtest-cli/internal/stats"
	"github.com/cartmetrics/abtest-cli/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the experiment readout",
	Long: `Read the user outcomes from the warehouse and print the conversion
summary, the two-proportion z-test, the lift confidence interval, and the
logistic regression of purchase on treatment.

Use --xlsx to additionally export the readout as a workbook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		experimentID, err := cmd.Flags().GetString("experiment")
		if err != nil {
			return err
		}
		if experimentID == "" {
			experimentID = cfg.Experiment.DefaultExperimentID
		}
		alpha, err := cmd.Flags().GetFloat64("alpha")
		if err != nil {
			return err
		}
		xlsxPath, err := cmd.Flags().GetString("xlsx")
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		outcomes, err := st.ListOutcomes(ctx, experimentID)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			return eris.Errorf("analyze: no outcomes for experiment %q (run load first?)", experimentID)
		}

		readout := report.Readout{
			ExperimentID: experimentID,
			Summary:      stats.ConversionSummary(outcomes),
		}

		fmt.Printf("experiment: %s (%d users)\n\n", experimentID, len(outcomes))
		fmt.Println("=== Conversion Summary ===")
		for _, s := range readout.Summary {
			fmt.Printf("%-10s users=%-6d conversions=%-5d rate=%.4f revenue/user=%.2f\n",
				s.Variant, s.Users, s.Conversions, s.ConversionRate, s.RevenuePerUser)
		}

		if z, err := stats.TwoProportionZTest(outcomes); err != nil {
			zap.L().Warn("skipping z-test", zap.Error(err))
		} else {
			readout.ZTest = z
			fmt.Println("\n=== Two-Proportion Z-Test ===")
			fmt.Printf("control=%.4f treatment=%.4f lift=%.4f z=%.4f p=%.4f\n",
				z.ControlRate, z.TreatmentRate, z.Lift, z.ZScore, z.PValue)
		}

		if ci, err := stats.ConfidenceInterval(outcomes, alpha); err != nil {
			zap.L().Warn("skipping confidence interval", zap.Error(err))
		} else {
			readout.CI = ci
			fmt.Printf("\n=== %.0f%% Confidence Interval (Lift) ===\n", (1-alpha)*100)
			fmt.Printf("lift=%.4f ci=(%.4f, %.4f)\n", ci.Lift, ci.Lower, ci.Upper)
		}

		if logit, err := stats.LogisticRegression(outcomes); err != nil {
			zap.L().Warn("skipping logistic regression", zap.Error(err))
		} else {
			readout.Logit = logit
			fmt.Println("\n=== Logistic Regression: purchased ~ is_treatment + events_in_window ===")
			fmt.Printf("treatment coef=%.4f odds ratio=%.4f mean predicted=%.4f converged=%v\n",
				logit.TreatmentCoef, logit.TreatmentOddsRatio, logit.MeanPredicted, logit.Converged)
		}

		if xlsxPath != "" {
			if err := report.WriteXLSX(xlsxPath, readout); err != nil {
				return err
			}
			fmt.Printf("\nwrote %s\n", xlsxPath)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("experiment", "", "experiment id (default: experiment.default_experiment_id)")
	analyzeCmd.Flags().Float64("alpha", 0.05, "significance level for the confidence interval")
	analyzeCmd.Flags().String("xlsx", "", "write the readout workbook to this path")
	rootCmd.AddCommand(analyzeCmd)
}
