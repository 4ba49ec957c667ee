// Package runlog records pipeline phase executions in the etl.run_log
// table so `abtest status` can report what ran, when, and how it ended.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/db"
)

// Entry represents a row in etl.run_log.
type Entry struct {
	ID          int64          `json:"id"`
	Phase       string         `json:"phase"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsWritten int64          `json:"rows_written"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result holds the outcome of a completed phase, passed to Complete().
type Result struct {
	RowsWritten int64          `json:"rows_written"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Log provides read/write access to the etl.run_log table.
type Log struct {
	pool db.Pool
}

// New creates a Log backed by the given connection pool.
func New(pool db.Pool) *Log {
	return &Log{pool: pool}
}

// Migrate creates the etl schema and run_log table if they do not exist.
func (l *Log) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, migration)
	if err != nil {
		return eris.Wrap(err, "runlog: migrate")
	}
	return nil
}

const migration = `
CREATE SCHEMA IF NOT EXISTS etl;

CREATE TABLE IF NOT EXISTS etl.run_log (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	phase        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	rows_written BIGINT NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     JSONB
);

CREATE INDEX IF NOT EXISTS idx_run_log_phase_started ON etl.run_log(phase, started_at DESC);
`

// LastSuccess returns the started_at time of the most recent successful run
// of a phase. Returns nil if the phase has never completed successfully.
func (l *Log) LastSuccess(ctx context.Context, phase string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM etl.run_log
		 WHERE phase = $1 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		phase,
	).Scan(&t)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runlog: last success for %s", phase)
	}
	return &t, nil
}

// Start records the beginning of a phase run and returns its ID.
func (l *Log) Start(ctx context.Context, phase string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO etl.run_log (phase, status, started_at)
		 VALUES ($1, 'running', now()) RETURNING id`,
		phase,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start %s", phase)
	}
	return id, nil
}

// Complete marks a phase run as successfully completed.
func (l *Log) Complete(ctx context.Context, runID int64, result *Result) error {
	var metaJSON []byte
	if result != nil && result.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal metadata")
		}
	}

	rowsWritten := int64(0)
	if result != nil {
		rowsWritten = result.RowsWritten
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE etl.run_log
		 SET status = 'complete', completed_at = now(), rows_written = $1, metadata = $2
		 WHERE id = $3`,
		rowsWritten, metaJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %d", runID)
	}
	return nil
}

// Fail marks a phase run as failed with an error message.
func (l *Log) Fail(ctx context.Context, runID int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE etl.run_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %d", runID)
	}
	return nil
}

// ListAll returns all run log entries ordered by most recent first.
func (l *Log) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, phase, status, started_at, completed_at, rows_written, error, metadata
		 FROM etl.run_log ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list all")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var completedAt *time.Time
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Phase, &e.Status, &e.StartedAt, &completedAt, &e.RowsWritten, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
