package stage

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartmetrics/abtest-cli/internal/config"
	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, eris.Errorf("no such object %s/%s", bucket, key)
	}
	return data, nil
}

func (m *memStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	full := bucket + "/" + strings.Trim(prefix, "/") + "/"
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	return keys, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			RawBucket:       "raw-bucket",
			ProcessedBucket: "processed-bucket",
			RawPrefix:       "raw",
			ProcessedPrefix: "processed",
		},
		Paths: config.PathsConfig{
			Raw: config.RawPaths{
				Users:       "users.csv",
				Products:    "products.csv",
				Sessions:    "sessions.csv",
				Events:      "events.csv",
				Assignments: "experiment_assignments.csv",
			},
			Processed: config.ProcessedPaths{
				Users:             "staged/users.parquet",
				Products:          "staged/products.parquet",
				Sessions:          "staged/sessions.parquet",
				Assignments:       "staged/experiment_assignments.parquet",
				CleanEventsPrefix: "clean_events",
				UserExposure:      "marts/user_exposure.parquet",
				UserOutcomes:      "marts/user_outcomes.parquet",
			},
		},
		Schema: config.SchemaConfig{
			Events: config.EventColumns{
				EventTS: "event_ts", UserID: "user_id", SessionID: "session_id", EventName: "event_type",
			},
			Assignments: config.AssignmentColumns{
				UserID: "user_id", Variant: "variant", ExperimentID: "experiment_id",
			},
		},
		ETL: config.ETLConfig{
			EventAliases: map[string]string{"view_product": "pdp_view", "buy_now": "purchase"},
		},
		Mart: config.MartConfig{
			OutcomeWindowDays: 7,
			EventNames: config.EventNames{
				ExposureEvent: "pdp_view", AddToCart: "add_to_cart",
				BeginCheckout: "begin_checkout", Purchase: "purchase",
			},
		},
		Experiment: config.ExperimentConfig{DefaultExperimentID: "pdp_redesign_experiment"},
	}
}

func testEnv(store *memStore) *Env {
	return &Env{Store: store, Cfg: testConfig()}
}

func putRaw(t *testing.T, store *memStore, name, body string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), "raw-bucket", "raw/"+name, []byte(body)))
}

func TestUsersStage(t *testing.T) {
	store := newMemStore()
	putRaw(t, store, "users.csv",
		"user_id,signup_ts,country,device_type,is_new_user\n"+
			"1,2024-01-05T00:00:00Z,US,mobile,True\n"+
			"junk,2024-01-05T00:00:00Z,US,mobile,False\n"+
			"2,not-a-date,DE,desktop,False\n"+
			"3,2024-02-10T00:00:00Z,CA,desktop,false\n")

	res, err := (Users{}).Run(context.Background(), testEnv(store))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsWritten)

	data, err := store.Get(context.Background(), "processed-bucket", "processed/staged/users.parquet")
	require.NoError(t, err)
	rows, err := tabular.UnmarshalParquet[model.User](data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].IsNewUser)
	assert.Equal(t, int64(3), rows[1].UserID)
	assert.False(t, rows[1].IsNewUser)
}

func TestSessionsStageDerivesDuration(t *testing.T) {
	store := newMemStore()
	putRaw(t, store, "sessions.csv",
		"session_id,user_id,session_start_ts,session_end_ts\n"+
			"1,10,2024-01-05T10:00:00Z,2024-01-05T10:05:00Z\n"+
			"2,10,2024-01-06T10:00:00Z,bad\n"+
			"bad,10,2024-01-06T10:00:00Z,2024-01-06T10:05:00Z\n")

	res, err := (Sessions{}).Run(context.Background(), testEnv(store))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsWritten)

	data, err := store.Get(context.Background(), "processed-bucket", "processed/staged/sessions.parquet")
	require.NoError(t, err)
	rows, err := tabular.UnmarshalParquet[model.Session](data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].DurationSeconds)
	assert.Equal(t, 300.0, *rows[0].DurationSeconds)
	assert.Nil(t, rows[1].DurationSeconds)
}

func TestAssignmentsStageDedupes(t *testing.T) {
	store := newMemStore()
	putRaw(t, store, "experiment_assignments.csv",
		"user_id,variant,experiment_id\n"+
			"1,control,exp_a\n"+
			"1,treatment,exp_a\n"+
			"2,treatment,\n")

	res, err := (Assignments{}).Run(context.Background(), testEnv(store))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsWritten)

	data, err := store.Get(context.Background(), "processed-bucket", "processed/staged/experiment_assignments.parquet")
	require.NoError(t, err)
	rows, err := tabular.UnmarshalParquet[model.ExperimentAssignment](data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// First assignment wins for duplicated users.
	assert.Equal(t, "control", rows[0].Variant)
	// Missing experiment_id falls back to the configured default.
	assert.Equal(t, "pdp_redesign_experiment", rows[1].ExperimentID)
}

func TestAssignmentsStageMissingColumns(t *testing.T) {
	store := newMemStore()
	putRaw(t, store, "experiment_assignments.csv", "user_id,bucket\n1,a\n")

	_, err := (Assignments{}).Run(context.Background(), testEnv(store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestCleanEventsStage(t *testing.T) {
	store := newMemStore()
	putRaw(t, store, "experiment_assignments.csv",
		"user_id,variant,experiment_id\n1,treatment,exp_a\n")
	putRaw(t, store, "events.csv",
		"event_id,event_ts,user_id,session_id,product_id,event_type,price_paid,quantity,discount_amount\n"+
			"1,2024-01-05T10:00:00Z,1,100,,session_start,,,\n"+
			"2,2024-01-05T10:01:00Z,1,100,42, View Product ,,,\n"+
			"3,2024-01-05T10:02:00Z,1,100,42,purchase,59.99,2,10.00\n"+
			"4,2024-01-06T09:00:00Z,1,101,,view_home,,,\n"+
			"5,bad-ts,1,101,,view_home,,,\n"+
			"6,2024-01-06T09:00:00Z,,101,,view_home,,,\n")

	env := testEnv(store)
	res, err := (CleanEvents{}).Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.RowsWritten)
	assert.Equal(t, 2, res.Metadata["partitions"])

	keys, err := store.List(context.Background(), "processed-bucket", "processed/clean_events")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	var all []model.Event
	for _, key := range keys {
		data, err := store.Get(context.Background(), "processed-bucket", key)
		require.NoError(t, err)
		rows, err := tabular.UnmarshalParquet[model.Event](data)
		require.NoError(t, err)
		all = append(all, rows...)
	}
	require.Len(t, all, 4)

	byName := map[string]model.Event{}
	for _, ev := range all {
		byName[ev.EventName] = ev
		assert.Equal(t, "treatment", ev.Variant)
		assert.Equal(t, "exp_a", ev.ExperimentID)
	}
	// " View Product " is normalized then aliased to the exposure event.
	_, ok := byName["pdp_view"]
	assert.True(t, ok)
	// net_revenue = price*qty - discount for purchases, 0 elsewhere.
	assert.InDelta(t, 109.98, byName["purchase"].NetRevenue, 0.001)
	assert.Equal(t, 0.0, byName["pdp_view"].NetRevenue)
	assert.Equal(t, "2024-01-05", byName["purchase"].Dt)
}

func TestCleanEventsMissingRequiredColumn(t *testing.T) {
	store := newMemStore()
	putRaw(t, store, "experiment_assignments.csv", "user_id,variant\n1,control\n")
	putRaw(t, store, "events.csv", "event_id,user_id\n1,1\n")

	_, err := (CleanEvents{}).Run(context.Background(), testEnv(store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestRegistrySelect(t *testing.T) {
	reg := NewRegistry()

	assert.Equal(t, []string{"users", "products", "sessions", "assignments", "clean_events"}, reg.AllNames())

	stages, err := reg.Select([]string{"users", "clean_events"})
	require.NoError(t, err)
	require.Len(t, stages, 2)

	_, err = reg.Select([]string{"nope"})
	assert.Error(t, err)
}
