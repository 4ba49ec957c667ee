package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/db"
	"github.com/cartmetrics/abtest-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the run log).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS marts;

CREATE TABLE IF NOT EXISTS marts.user_exposure (
	experiment_id       TEXT NOT NULL,
	user_id             BIGINT NOT NULL,
	variant             TEXT NOT NULL,
	exposure_ts         TIMESTAMPTZ NOT NULL,
	exposure_session_id BIGINT NOT NULL,
	PRIMARY KEY (experiment_id, user_id)
);

CREATE TABLE IF NOT EXISTS marts.user_outcomes (
	experiment_id                TEXT NOT NULL,
	user_id                      BIGINT NOT NULL,
	variant                      TEXT NOT NULL,
	exposure_ts                  TIMESTAMPTZ NOT NULL,
	add_to_cart                  SMALLINT NOT NULL DEFAULT 0,
	begin_checkout               SMALLINT NOT NULL DEFAULT 0,
	purchased                    SMALLINT NOT NULL DEFAULT 0,
	revenue                      DOUBLE PRECISION NOT NULL DEFAULT 0,
	events_in_window             BIGINT NOT NULL DEFAULT 0,
	events_in_exposure_session   BIGINT NOT NULL DEFAULT 0,
	bounce                       SMALLINT NOT NULL DEFAULT 0,
	avg_session_duration_seconds DOUBLE PRECISION,
	retained_7d                  SMALLINT NOT NULL DEFAULT 0,
	PRIMARY KEY (experiment_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_user_outcomes_variant ON marts.user_outcomes(experiment_id, variant);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertExposures(ctx context.Context, rows []model.UserExposure) (int64, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = exposureRow(r)
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "marts.user_exposure",
		Columns:      exposureColumns,
		ConflictKeys: []string{"experiment_id", "user_id"},
	}, data)
}

func (s *PostgresStore) UpsertOutcomes(ctx context.Context, rows []model.UserOutcome) (int64, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = outcomeRow(r)
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "marts.user_outcomes",
		Columns:      outcomeColumns,
		ConflictKeys: []string{"experiment_id", "user_id"},
	}, data)
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, experimentID string) ([]model.UserOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT experiment_id, user_id, variant, exposure_ts,
		        add_to_cart, begin_checkout, purchased, revenue,
		        events_in_window, events_in_exposure_session, bounce,
		        avg_session_duration_seconds, retained_7d
		 FROM marts.user_outcomes WHERE experiment_id = $1 ORDER BY user_id`,
		experimentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list outcomes for %s", experimentID)
	}
	defer rows.Close()

	var out []model.UserOutcome
	for rows.Next() {
		var o model.UserOutcome
		if err := rows.Scan(
			&o.ExperimentID, &o.UserID, &o.Variant, &o.ExposureTS,
			&o.AddToCart, &o.BeginCheckout, &o.Purchased, &o.Revenue,
			&o.EventsInWindow, &o.EventsInExposureSession, &o.Bounce,
			&o.AvgSessionDurationSeconds, &o.Retained7d,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
