// Package pipeline wires the phases together: it moves data between the
// object store, the mart transform, and the warehouse, and records each
// phase in the run log.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cartmetrics/abtest-cli/internal/config"
	"github.com/cartmetrics/abtest-cli/internal/mart"
	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/runlog"
	"github.com/cartmetrics/abtest-cli/internal/stage"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// Env carries the shared dependencies of the pipeline phases. Runs may be
// nil when no warehouse is reachable.
type Env struct {
	Store stage.ObjectStore
	Cfg   *config.Config
	Runs  stage.Recorder
}

func (e *Env) processedKey(name string) string {
	return (&stage.Env{Cfg: e.Cfg}).ProcessedKey(name)
}

// BuildMarts reads the clean event partitions and the staged sessions,
// runs the mart transform, and writes both mart parquet objects.
func BuildMarts(ctx context.Context, env *Env) (*mart.Marts, error) {
	log := zap.L().With(zap.String("phase", "marts"))
	cfg := env.Cfg

	runID := recordStart(ctx, env, "marts")

	events, err := readCleanEvents(ctx, env)
	if err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}
	sessions, err := readSessions(ctx, env)
	if err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}
	log.Info("inputs loaded", zap.Int("events", len(events)), zap.Int("sessions", len(sessions)))

	marts, err := mart.Build(events, sessions, mart.Params{
		ExposureEvent:       cfg.Mart.EventNames.ExposureEvent,
		AddToCartEvent:      cfg.Mart.EventNames.AddToCart,
		BeginCheckoutEvent:  cfg.Mart.EventNames.BeginCheckout,
		PurchaseEvent:       cfg.Mart.EventNames.Purchase,
		OutcomeWindowDays:   cfg.Mart.OutcomeWindowDays,
		DefaultExperimentID: cfg.Experiment.DefaultExperimentID,
	})
	if err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}

	exposureOut, err := tabular.MarshalParquet(marts.Exposure)
	if err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}
	if err := env.Store.Put(ctx, cfg.Storage.ProcessedBucket,
		env.processedKey(cfg.Paths.Processed.UserExposure), exposureOut); err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}

	outcomesOut, err := tabular.MarshalParquet(marts.Outcomes)
	if err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}
	if err := env.Store.Put(ctx, cfg.Storage.ProcessedBucket,
		env.processedKey(cfg.Paths.Processed.UserOutcomes), outcomesOut); err != nil {
		return nil, recordFail(ctx, env, runID, err)
	}

	recordComplete(ctx, env, runID, &runlog.Result{
		RowsWritten: int64(len(marts.Outcomes)),
		Metadata:    map[string]any{"exposed_users": len(marts.Exposure)},
	})
	log.Info("marts written", zap.Int("exposed_users", len(marts.Exposure)))
	return marts, nil
}

// readCleanEvents loads every clean event partition under the configured
// prefix, in key order.
func readCleanEvents(ctx context.Context, env *Env) ([]model.Event, error) {
	cfg := env.Cfg
	prefix := env.processedKey(cfg.Paths.Processed.CleanEventsPrefix)

	keys, err := env.Store.List(ctx, cfg.Storage.ProcessedBucket, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, eris.Errorf("pipeline: no clean event partitions under %s", prefix)
	}
	sort.Strings(keys)

	var events []model.Event
	for _, key := range keys {
		data, err := env.Store.Get(ctx, cfg.Storage.ProcessedBucket, key)
		if err != nil {
			return nil, err
		}
		rows, err := tabular.UnmarshalParquet[model.Event](data)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: decode %s", key)
		}
		events = append(events, rows...)
	}
	return events, nil
}

func readSessions(ctx context.Context, env *Env) ([]model.Session, error) {
	data, err := env.Store.Get(ctx, env.Cfg.Storage.ProcessedBucket,
		env.processedKey(env.Cfg.Paths.Processed.Sessions))
	if err != nil {
		return nil, err
	}
	return tabular.UnmarshalParquet[model.Session](data)
}

// Run log helpers tolerate a nil recorder and recorder failures; a broken
// run log must not take the pipeline down.

func recordStart(ctx context.Context, env *Env, phase string) int64 {
	if env.Runs == nil {
		return 0
	}
	id, err := env.Runs.Start(ctx, phase)
	if err != nil {
		zap.L().Error("failed to record phase start", zap.String("phase", phase), zap.Error(err))
		return 0
	}
	return id
}

func recordComplete(ctx context.Context, env *Env, runID int64, result *runlog.Result) {
	if env.Runs == nil || runID == 0 {
		return
	}
	if err := env.Runs.Complete(ctx, runID, result); err != nil {
		zap.L().Error("failed to record phase completion", zap.Error(err))
	}
}

func recordFail(ctx context.Context, env *Env, runID int64, err error) error {
	if env.Runs != nil && runID != 0 {
		if logErr := env.Runs.Fail(ctx, runID, err.Error()); logErr != nil {
			zap.L().Error("failed to record phase failure", zap.Error(logErr))
		}
	}
	return err
}

// elapsed is a tiny helper for phase timing logs.
func elapsed(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
