package stage

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/blob"
	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// CleanEvents normalizes the raw event log into the canonical clean event
// schema: schema-mapped columns, coerced types, normalized event names, the
// experiment assignment joined on, and net revenue derived. Output is
// parquet partitioned by event date.
type CleanEvents struct{}

func (CleanEvents) Name() string       { return "clean_events" }
func (CleanEvents) Requires() []string { return []string{"assignments"} }

func (CleanEvents) Run(ctx context.Context, env *Env) (*Result, error) {
	cfg := env.Cfg

	// Staged assignments provide the variant join. Falling back to the raw
	// CSV keeps the stage runnable standalone.
	assignments, err := loadAssignments(ctx, env)
	if err != nil {
		return nil, err
	}
	variantByUser := make(map[int64]string, len(assignments))
	experimentByUser := make(map[int64]string, len(assignments))
	for _, a := range assignments {
		variantByUser[a.UserID] = a.Variant
		experimentByUser[a.UserID] = a.ExperimentID
	}

	data, err := env.Store.Get(ctx, cfg.Storage.RawBucket, env.RawKey(cfg.Paths.Raw.Events))
	if err != nil {
		return nil, err
	}
	table, err := tabular.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "stage: parse events csv")
	}

	cols := cfg.Schema.Events
	for _, required := range []string{cols.EventTS, cols.UserID, cols.SessionID, cols.EventName} {
		if !table.HasColumn(required) {
			return nil, eris.Errorf("stage: events csv missing required column %q", required)
		}
	}

	byDt := make(map[string][]model.Event)
	var total int64
	for _, rec := range table.Rows {
		ts, ok := tabular.Time(table.Get(rec, cols.EventTS))
		if !ok {
			continue
		}
		userID, ok := tabular.Int64(table.Get(rec, cols.UserID))
		if !ok {
			continue
		}
		sessionID, ok := tabular.Int64(table.Get(rec, cols.SessionID))
		if !ok {
			continue
		}

		name := normalizeEventName(table.Get(rec, cols.EventName), cfg.ETL.EventAliases)

		price := tabular.Float64Or(table.Get(rec, "price_paid"), 0)
		qty := tabular.IntOr(table.Get(rec, "quantity"), 1)
		discount := tabular.Float64Or(table.Get(rec, "discount_amount"), 0)

		netRevenue := price*float64(qty) - discount
		if name != cfg.Mart.EventNames.Purchase {
			netRevenue = 0
		}

		dt := ts.Format("2006-01-02")
		byDt[dt] = append(byDt[dt], model.Event{
			EventTS:      ts,
			UserID:       userID,
			SessionID:    sessionID,
			EventName:    name,
			Variant:      variantByUser[userID],
			ExperimentID: experimentByUser[userID],
			NetRevenue:   netRevenue,
			Dt:           dt,
		})
		total++
	}

	dts := make([]string, 0, len(byDt))
	for dt := range byDt {
		dts = append(dts, dt)
	}
	sort.Strings(dts)

	for _, dt := range dts {
		out, err := tabular.MarshalParquet(byDt[dt])
		if err != nil {
			return nil, err
		}
		partID := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
		key := blob.JoinKey(cfg.Storage.ProcessedPrefix,
			cfg.Paths.Processed.CleanEventsPrefix, "dt="+dt, "part-"+partID+".parquet")
		if err := env.Store.Put(ctx, cfg.Storage.ProcessedBucket, key, out); err != nil {
			return nil, err
		}
	}

	return &Result{
		RowsWritten: total,
		Metadata:    map[string]any{"partitions": len(byDt)},
	}, nil
}

// loadAssignments prefers the staged parquet and falls back to parsing the
// raw CSV with the same rules the assignments stage applies.
func loadAssignments(ctx context.Context, env *Env) ([]model.ExperimentAssignment, error) {
	cfg := env.Cfg

	stagedKey := env.ProcessedKey(cfg.Paths.Processed.Assignments)
	if data, err := env.Store.Get(ctx, cfg.Storage.ProcessedBucket, stagedKey); err == nil {
		return tabular.UnmarshalParquet[model.ExperimentAssignment](data)
	}

	data, err := env.Store.Get(ctx, cfg.Storage.RawBucket, env.RawKey(cfg.Paths.Raw.Assignments))
	if err != nil {
		return nil, eris.Wrap(err, "stage: load assignments")
	}
	return parseAssignments(data, cfg)
}

// normalizeEventName trims, lowercases, replaces spaces with underscores,
// and applies the configured alias map.
func normalizeEventName(name string, aliases map[string]string) string {
	x := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if canonical, ok := aliases[x]; ok {
		return canonical
	}
	return x
}
