package stage

import (
	"bytes"
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// Users stages the raw users CSV into typed parquet. Rows without a usable
// user_id or signup_ts are dropped.
type Users struct{}

func (Users) Name() string        { return "users" }
func (Users) Requires() []string  { return nil }

func (Users) Run(ctx context.Context, env *Env) (*Result, error) {
	data, err := env.Store.Get(ctx, env.Cfg.Storage.RawBucket, env.RawKey(env.Cfg.Paths.Raw.Users))
	if err != nil {
		return nil, err
	}
	table, err := tabular.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "stage: parse users csv")
	}

	var rows []model.User
	for _, rec := range table.Rows {
		id, ok := tabular.Int64(table.Get(rec, "user_id"))
		if !ok {
			continue
		}
		signup, ok := tabular.Time(table.Get(rec, "signup_ts"))
		if !ok {
			continue
		}
		rows = append(rows, model.User{
			UserID:     id,
			SignupTS:   signup,
			Country:    table.Get(rec, "country"),
			DeviceType: table.Get(rec, "device_type"),
			IsNewUser:  parseBool(table.Get(rec, "is_new_user")),
		})
	}

	out, err := tabular.MarshalParquet(rows)
	if err != nil {
		return nil, err
	}
	key := env.ProcessedKey(env.Cfg.Paths.Processed.Users)
	if err := env.Store.Put(ctx, env.Cfg.Storage.ProcessedBucket, key, out); err != nil {
		return nil, err
	}
	return &Result{RowsWritten: int64(len(rows))}, nil
}

// Products stages the raw products CSV into typed parquet.
type Products struct{}

func (Products) Name() string        { return "products" }
func (Products) Requires() []string  { return nil }

func (Products) Run(ctx context.Context, env *Env) (*Result, error) {
	data, err := env.Store.Get(ctx, env.Cfg.Storage.RawBucket, env.RawKey(env.Cfg.Paths.Raw.Products))
	if err != nil {
		return nil, err
	}
	table, err := tabular.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "stage: parse products csv")
	}

	var rows []model.Product
	for _, rec := range table.Rows {
		id := table.Get(rec, "product_id")
		if id == "" {
			continue
		}
		rows = append(rows, model.Product{
			ProductID: id,
			Category:  table.Get(rec, "category"),
			BasePrice: tabular.Float64Or(table.Get(rec, "base_price"), 0),
		})
	}

	out, err := tabular.MarshalParquet(rows)
	if err != nil {
		return nil, err
	}
	key := env.ProcessedKey(env.Cfg.Paths.Processed.Products)
	if err := env.Store.Put(ctx, env.Cfg.Storage.ProcessedBucket, key, out); err != nil {
		return nil, err
	}
	return &Result{RowsWritten: int64(len(rows))}, nil
}

// parseBool accepts the spellings the raw generators and spreadsheets emit.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "t":
		return true
	}
	return false
}
