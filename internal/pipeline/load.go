package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/runlog"
	"github.com/cartmetrics/abtest-cli/internal/store"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// Load reads both mart parquet objects from the processed bucket and
// upserts them into the warehouse.
func Load(ctx context.Context, env *Env, st store.Store) error {
	log := zap.L().With(zap.String("phase", "load"))
	cfg := env.Cfg
	start := time.Now()

	runID := recordStart(ctx, env, "load")

	exposureData, err := env.Store.Get(ctx, cfg.Storage.ProcessedBucket,
		env.processedKey(cfg.Paths.Processed.UserExposure))
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}
	exposures, err := tabular.UnmarshalParquet[model.UserExposure](exposureData)
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}

	outcomeData, err := env.Store.Get(ctx, cfg.Storage.ProcessedBucket,
		env.processedKey(cfg.Paths.Processed.UserOutcomes))
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}
	outcomes, err := tabular.UnmarshalParquet[model.UserOutcome](outcomeData)
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}

	if err := st.Migrate(ctx); err != nil {
		return recordFail(ctx, env, runID, err)
	}

	exposureRows, err := st.UpsertExposures(ctx, exposures)
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}
	outcomeRows, err := st.UpsertOutcomes(ctx, outcomes)
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}

	recordComplete(ctx, env, runID, &runlog.Result{
		RowsWritten: outcomeRows,
		Metadata:    map[string]any{"exposure_rows": exposureRows},
	})
	log.Info("marts loaded",
		zap.Int64("exposure_rows", exposureRows),
		zap.Int64("outcome_rows", outcomeRows),
		elapsed(start),
	)
	return nil
}
