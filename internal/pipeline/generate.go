package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cartmetrics/abtest-cli/internal/blob"
	"github.com/cartmetrics/abtest-cli/internal/gen"
	"github.com/cartmetrics/abtest-cli/internal/runlog"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// Generate fabricates the synthetic raw datasets and uploads them as CSVs
// to the raw bucket.
func Generate(ctx context.Context, env *Env) error {
	log := zap.L().With(zap.String("phase", "generate"))
	cfg := env.Cfg
	start := time.Now()

	runID := recordStart(ctx, env, "generate")

	params, err := gen.NewParams(cfg.Generate)
	if err != nil {
		return recordFail(ctx, env, runID, err)
	}

	users := gen.Users(params)
	products := gen.Products(params)
	sessions := gen.Sessions(params, users)
	assignments := gen.Assignments(params, users, cfg.Experiment.DefaultExperimentID)
	events := gen.Events(params, sessions, products, assignments)

	putCSV := func(name string, data []byte, marshalErr error) error {
		if marshalErr != nil {
			return marshalErr
		}
		key := blob.JoinKey(cfg.Storage.RawPrefix, name)
		return env.Store.Put(ctx, cfg.Storage.RawBucket, key, data)
	}

	data, err := tabular.MarshalCSV(users)
	if err = putCSV(cfg.Paths.Raw.Users, data, err); err != nil {
		return recordFail(ctx, env, runID, err)
	}
	data, err = tabular.MarshalCSV(products)
	if err = putCSV(cfg.Paths.Raw.Products, data, err); err != nil {
		return recordFail(ctx, env, runID, err)
	}
	data, err = tabular.MarshalCSV(sessions)
	if err = putCSV(cfg.Paths.Raw.Sessions, data, err); err != nil {
		return recordFail(ctx, env, runID, err)
	}
	data, err = tabular.MarshalCSV(assignments)
	if err = putCSV(cfg.Paths.Raw.Assignments, data, err); err != nil {
		return recordFail(ctx, env, runID, err)
	}
	data, err = tabular.MarshalCSV(events)
	if err = putCSV(cfg.Paths.Raw.Events, data, err); err != nil {
		return recordFail(ctx, env, runID, err)
	}

	recordComplete(ctx, env, runID, &runlog.Result{
		RowsWritten: int64(len(events)),
		Metadata: map[string]any{
			"users":    len(users),
			"products": len(products),
			"sessions": len(sessions),
			"events":   len(events),
		},
	})
	log.Info("raw data generated",
		zap.Int("users", len(users)),
		zap.Int("sessions", len(sessions)),
		zap.Int("events", len(events)),
		elapsed(start),
	)
	return nil
}
