package stage

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/config"
	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// Sessions stages the raw sessions CSV. When both timestamps parse, the
// session duration is derived from them; otherwise any explicit
// session_duration_seconds column is used, and failing that the duration
// stays unknown.
type Sessions struct{}

func (Sessions) Name() string        { return "sessions" }
func (Sessions) Requires() []string  { return nil }

func (Sessions) Run(ctx context.Context, env *Env) (*Result, error) {
	data, err := env.Store.Get(ctx, env.Cfg.Storage.RawBucket, env.RawKey(env.Cfg.Paths.Raw.Sessions))
	if err != nil {
		return nil, err
	}
	table, err := tabular.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "stage: parse sessions csv")
	}

	var rows []model.Session
	for _, rec := range table.Rows {
		sessionID, ok := tabular.Int64(table.Get(rec, "session_id"))
		if !ok {
			continue
		}
		userID, ok := tabular.Int64(table.Get(rec, "user_id"))
		if !ok {
			continue
		}

		s := model.Session{SessionID: sessionID, UserID: userID}
		start, startOK := tabular.Time(table.Get(rec, "session_start_ts"))
		end, endOK := tabular.Time(table.Get(rec, "session_end_ts"))
		if startOK {
			s.SessionStartTS = start
		}
		if endOK {
			s.SessionEndTS = end
		}
		if startOK && endOK && !end.Before(start) {
			dur := end.Sub(start).Seconds()
			s.DurationSeconds = &dur
		} else if p := tabular.FloatPtr(table.Get(rec, "session_duration_seconds")); p != nil {
			s.DurationSeconds = p
		}
		rows = append(rows, s)
	}

	out, err := tabular.MarshalParquet(rows)
	if err != nil {
		return nil, err
	}
	key := env.ProcessedKey(env.Cfg.Paths.Processed.Sessions)
	if err := env.Store.Put(ctx, env.Cfg.Storage.ProcessedBucket, key, out); err != nil {
		return nil, err
	}
	return &Result{RowsWritten: int64(len(rows))}, nil
}

// Assignments stages the raw experiment assignments CSV. Every user keeps
// exactly one assignment; duplicate rows resolve to the first seen.
type Assignments struct{}

func (Assignments) Name() string        { return "assignments" }
func (Assignments) Requires() []string  { return nil }

func (Assignments) Run(ctx context.Context, env *Env) (*Result, error) {
	data, err := env.Store.Get(ctx, env.Cfg.Storage.RawBucket, env.RawKey(env.Cfg.Paths.Raw.Assignments))
	if err != nil {
		return nil, err
	}

	rows, err := parseAssignments(data, env.Cfg)
	if err != nil {
		return nil, err
	}

	out, err := tabular.MarshalParquet(rows)
	if err != nil {
		return nil, err
	}
	key := env.ProcessedKey(env.Cfg.Paths.Processed.Assignments)
	if err := env.Store.Put(ctx, env.Cfg.Storage.ProcessedBucket, key, out); err != nil {
		return nil, err
	}
	return &Result{RowsWritten: int64(len(rows))}, nil
}

// parseAssignments applies the schema mapping, coerces types, and dedupes
// by user_id keeping the first row. Shared with the clean_events stage.
func parseAssignments(data []byte, cfg *config.Config) ([]model.ExperimentAssignment, error) {
	table, err := tabular.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "stage: parse assignments csv")
	}

	cols := cfg.Schema.Assignments
	if !table.HasColumn(cols.UserID) || !table.HasColumn(cols.Variant) {
		return nil, eris.Errorf("stage: assignments csv missing required columns %q, %q", cols.UserID, cols.Variant)
	}

	seen := make(map[int64]bool)
	var rows []model.ExperimentAssignment
	for _, rec := range table.Rows {
		userID, ok := tabular.Int64(table.Get(rec, cols.UserID))
		if !ok || seen[userID] {
			continue
		}
		seen[userID] = true

		experimentID := table.Get(rec, cols.ExperimentID)
		if experimentID == "" {
			experimentID = cfg.Experiment.DefaultExperimentID
		}

		a := model.ExperimentAssignment{
			UserID:       userID,
			Variant:      table.Get(rec, cols.Variant),
			ExperimentID: experimentID,
		}
		if ts, ok := tabular.Time(table.Get(rec, "assignment_ts")); ok {
			a.AssignmentTS = ts
		}
		rows = append(rows, a)
	}
	return rows, nil
}
