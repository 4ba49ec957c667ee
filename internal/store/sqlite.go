package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS user_exposure (
	experiment_id       TEXT NOT NULL,
	user_id             INTEGER NOT NULL,
	variant             TEXT NOT NULL,
	exposure_ts         TEXT NOT NULL,
	exposure_session_id INTEGER NOT NULL,
	PRIMARY KEY (experiment_id, user_id)
);

CREATE TABLE IF NOT EXISTS user_outcomes (
	experiment_id                TEXT NOT NULL,
	user_id                      INTEGER NOT NULL,
	variant                      TEXT NOT NULL,
	exposure_ts                  TEXT NOT NULL,
	add_to_cart                  INTEGER NOT NULL DEFAULT 0,
	begin_checkout               INTEGER NOT NULL DEFAULT 0,
	purchased                    INTEGER NOT NULL DEFAULT 0,
	revenue                      REAL NOT NULL DEFAULT 0,
	events_in_window             INTEGER NOT NULL DEFAULT 0,
	events_in_exposure_session   INTEGER NOT NULL DEFAULT 0,
	bounce                       INTEGER NOT NULL DEFAULT 0,
	avg_session_duration_seconds REAL,
	retained_7d                  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (experiment_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_user_outcomes_variant ON user_outcomes(experiment_id, variant);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertExposures(ctx context.Context, rows []model.UserExposure) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO user_exposure (`+strings.Join(exposureColumns, ", ")+`)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (experiment_id, user_id) DO UPDATE SET
		   variant = excluded.variant,
		   exposure_ts = excluded.exposure_ts,
		   exposure_session_id = excluded.exposure_session_id`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare exposure upsert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ExperimentID, r.UserID, r.Variant, r.ExposureTS.UTC().Format(time.RFC3339), r.ExposureSessionID,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert exposure user %d", r.UserID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) UpsertOutcomes(ctx context.Context, rows []model.UserOutcome) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO user_outcomes (`+strings.Join(outcomeColumns, ", ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (experiment_id, user_id) DO UPDATE SET
		   variant = excluded.variant,
		   exposure_ts = excluded.exposure_ts,
		   add_to_cart = excluded.add_to_cart,
		   begin_checkout = excluded.begin_checkout,
		   purchased = excluded.purchased,
		   revenue = excluded.revenue,
		   events_in_window = excluded.events_in_window,
		   events_in_exposure_session = excluded.events_in_exposure_session,
		   bounce = excluded.bounce,
		   avg_session_duration_seconds = excluded.avg_session_duration_seconds,
		   retained_7d = excluded.retained_7d`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare outcome upsert")
	}
	defer stmt.Close()

	for _, o := range rows {
		if _, err := stmt.ExecContext(ctx,
			o.ExperimentID, o.UserID, o.Variant, o.ExposureTS.UTC().Format(time.RFC3339),
			o.AddToCart, o.BeginCheckout, o.Purchased, o.Revenue,
			o.EventsInWindow, o.EventsInExposureSession, o.Bounce,
			o.AvgSessionDurationSeconds, o.Retained7d,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert outcome user %d", o.UserID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, experimentID string) ([]model.UserOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT experiment_id, user_id, variant, exposure_ts,
		        add_to_cart, begin_checkout, purchased, revenue,
		        events_in_window, events_in_exposure_session, bounce,
		        avg_session_duration_seconds, retained_7d
		 FROM user_outcomes WHERE experiment_id = ? ORDER BY user_id`,
		experimentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list outcomes for %s", experimentID)
	}
	defer rows.Close()

	var out []model.UserOutcome
	for rows.Next() {
		var o model.UserOutcome
		var exposureTS string
		var avg sql.NullFloat64
		if err := rows.Scan(
			&o.ExperimentID, &o.UserID, &o.Variant, &exposureTS,
			&o.AddToCart, &o.BeginCheckout, &o.Purchased, &o.Revenue,
			&o.EventsInWindow, &o.EventsInExposureSession, &o.Bounce,
			&avg, &o.Retained7d,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		if ts, err := time.Parse(time.RFC3339, exposureTS); err == nil {
			o.ExposureTS = ts
		}
		if avg.Valid {
			v := avg.Float64
			o.AvgSessionDurationSeconds = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
