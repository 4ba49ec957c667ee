// Package store persists the outcome marts in a relational warehouse so
// downstream analysis can query them with plain SQL. Postgres is the
// production driver; SQLite serves local development and tests.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/config"
	"github.com/cartmetrics/abtest-cli/internal/model"
)

// Store defines the persistence interface for the mart loader.
type Store interface {
	// UpsertExposures writes user_exposure rows keyed by (experiment_id, user_id).
	UpsertExposures(ctx context.Context, rows []model.UserExposure) (int64, error)

	// UpsertOutcomes writes user_outcomes rows keyed by (experiment_id, user_id).
	UpsertOutcomes(ctx context.Context, rows []model.UserOutcome) (int64, error)

	// ListOutcomes returns all outcome rows for an experiment, ordered by user_id.
	ListOutcomes(ctx context.Context, experimentID string) ([]model.UserOutcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "abtest.db"
		}
		return NewSQLite(dsn)
	default:
		return nil, eris.New(fmt.Sprintf("store: unknown driver %q", cfg.Driver))
	}
}

var exposureColumns = []string{"experiment_id", "user_id", "variant", "exposure_ts", "exposure_session_id"}

var outcomeColumns = []string{
	"experiment_id", "user_id", "variant", "exposure_ts",
	"add_to_cart", "begin_checkout", "purchased", "revenue",
	"events_in_window", "events_in_exposure_session", "bounce",
	"avg_session_duration_seconds", "retained_7d",
}

func exposureRow(e model.UserExposure) []any {
	return []any{e.ExperimentID, e.UserID, e.Variant, e.ExposureTS, e.ExposureSessionID}
}

func outcomeRow(o model.UserOutcome) []any {
	return []any{
		o.ExperimentID, o.UserID, o.Variant, o.ExposureTS,
		o.AddToCart, o.BeginCheckout, o.Purchased, o.Revenue,
		o.EventsInWindow, o.EventsInExposureSession, o.Bounce,
		o.AvgSessionDurationSeconds, o.Retained7d,
	}
}
