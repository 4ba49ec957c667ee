package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/cartmetrics/abtest-cli/internal/blob"
	"github.com/cartmetrics/abtest-cli/internal/pipeline"
	"github.com/cartmetrics/abtest-cli/internal/runlog"
	"github.com/cartmetrics/abtest-cli/internal/stage"
	"github.com/cartmetrics/abtest-cli/internal/store"
)

// newPipelineEnv builds the shared phase environment: the object-store
// client plus, when the postgres warehouse is configured, a run log
// recorder. The returned cleanup closes the warehouse connection.
func newPipelineEnv(ctx context.Context) (*pipeline.Env, func(), error) {
	client, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	recorder, cleanup := newRecorder(ctx)
	return &pipeline.Env{Store: client, Cfg: cfg, Runs: recorder}, cleanup, nil
}

// newStageEnv builds the environment the staging engine runs in.
func newStageEnv(ctx context.Context) (*stage.Env, func(), error) {
	client, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	recorder, cleanup := newRecorder(ctx)
	return &stage.Env{Store: client, Cfg: cfg, Runs: recorder}, cleanup, nil
}

// newRecorder returns a run log recorder backed by the postgres warehouse,
// or nil when the warehouse is not configured. Recording is best-effort:
// an unreachable warehouse only disables it.
func newRecorder(ctx context.Context) (stage.Recorder, func()) {
	noop := func() {}
	if cfg.Store.Driver != "postgres" || cfg.Store.DatabaseURL == "" {
		return nil, noop
	}

	pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	if err != nil {
		zap.L().Warn("run log disabled, warehouse unreachable", zap.Error(err))
		return nil, noop
	}

	log := runlog.New(pg.Pool())
	if err := log.Migrate(ctx); err != nil {
		zap.L().Warn("run log disabled, migration failed", zap.Error(err))
		pg.Close()
		return nil, noop
	}
	return log, func() { pg.Close() }
}
