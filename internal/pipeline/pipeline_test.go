package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartmetrics/abtest-cli/internal/config"
	"github.com/cartmetrics/abtest-cli/internal/mart"
	"github.com/cartmetrics/abtest-cli/internal/model"
	"github.com/cartmetrics/abtest-cli/internal/store"
	"github.com/cartmetrics/abtest-cli/internal/tabular"
)

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
				Users: "users.csv", Products: "products.csv", Sessions: "sessions.csv",
				Events: "events.csv", Assignments: "experiment_assignments.csv",
			},
			Processed: config.ProcessedPaths{
				Users: "staged/users.parquet", Products: "staged/products.parquet",
				Sessions: "staged/sessions.parquet", Assignments: "staged/experiment_assignments.parquet",
				CleanEventsPrefix: "clean_events",
				UserExposure:      "marts/user_exposure.parquet",
				UserOutcomes:      "marts/user_outcomes.parquet",
			},
		},
		Mart: config.MartConfig{
			OutcomeWindowDays: 7,
			EventNames: config.EventNames{
				ExposureEvent: "pdp_view", AddToCart: "add_to_cart",
				BeginCheckout: "begin_checkout", Purchase: "purchase",
			},
		},
		Experiment: config.ExperimentConfig{DefaultExperimentID: "pdp_redesign_experiment"},
		Generate: config.GenerateConfig{
			Seed: 7, Users: 50, Products: 20, StartDate: "2024-01-01", EndDate: "2024-02-29",
		},
	}
}

func seedStagedInputs(t *testing.T, ms *memStore) {
	t.Helper()
	ctx := context.Background()
	ts := func(day, hour int) time.Time {
		return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	}

	events := []model.Event{
		{EventTS: ts(5, 10), UserID: 1, SessionID: 100, EventName: "pdp_view", Variant: "control", ExperimentID: "exp", Dt: "2024-01-05"},
		{EventTS: ts(5, 11), UserID: 1, SessionID: 100, EventName: "purchase", Variant: "control", ExperimentID: "exp", NetRevenue: 30, Dt: "2024-01-05"},
		{EventTS: ts(6, 10), UserID: 2, SessionID: 200, EventName: "pdp_view", Variant: "treatment", ExperimentID: "exp", Dt: "2024-01-06"},
	}
	byDt := map[string][]model.Event{}
	for _, ev := range events {
		byDt[ev.Dt] = append(byDt[ev.Dt], ev)
	}
	for dt, rows := range byDt {
		data, err := tabular.MarshalParquet(rows)
		require.NoError(t, err)
		key := "processed/clean_events/dt=" + dt + "/part-test.parquet"
		require.NoError(t, ms.Put(ctx, "processed-bucket", key, data))
	}

	dur := 120.0
	sessions := []model.Session{
		{SessionID: 100, UserID: 1, SessionStartTS: ts(5, 10), DurationSeconds: &dur},
		{SessionID: 200, UserID: 2, SessionStartTS: ts(6, 10)},
	}
	data, err := tabular.MarshalParquet(sessions)
	require.NoError(t, err)
	require.NoError(t, ms.Put(ctx, "processed-bucket", "processed/staged/sessions.parquet", data))
}

func TestBuildMarts(t *testing.T) {
	ms := newMemStore()
	seedStagedInputs(t, ms)
	env := &Env{Store: ms, Cfg: testConfig()}

	marts, err := BuildMarts(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, marts.Exposure, 2)
	require.Len(t, marts.Outcomes, 2)

	// Both mart objects landed in the processed bucket.
	data, err := ms.Get(context.Background(), "processed-bucket", "processed/marts/user_outcomes.parquet")
	require.NoError(t, err)
	outcomes, err := tabular.UnmarshalParquet[model.UserOutcome](data)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, int64(1), outcomes[0].UserID)
	assert.Equal(t, 1, outcomes[0].Purchased)
	assert.Equal(t, 30.0, outcomes[0].Revenue)
	assert.Equal(t, 1, outcomes[1].Bounce)
}

func TestBuildMartsNoCleanEvents(t *testing.T) {
	env := &Env{Store: newMemStore(), Cfg: testConfig()}

	_, err := BuildMarts(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no clean event partitions")
}

func TestBuildMartsNoExposures(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	rows := []model.Event{{EventTS: time.Now(), UserID: 1, SessionID: 1, EventName: "view_home", Dt: "2024-01-05"}}
	data, err := tabular.MarshalParquet(rows)
	require.NoError(t, err)
	require.NoError(t, ms.Put(ctx, "processed-bucket", "processed/clean_events/dt=2024-01-05/part-x.parquet", data))
	sessionData, err := tabular.MarshalParquet([]model.Session{})
	require.NoError(t, err)
	require.NoError(t, ms.Put(ctx, "processed-bucket", "processed/staged/sessions.parquet", sessionData))

	_, err = BuildMarts(ctx, &Env{Store: ms, Cfg: testConfig()})
	require.Error(t, err)
	assert.True(t, eris.Is(err, mart.ErrNoExposures))
}

func TestGenerateWritesRawObjects(t *testing.T) {
	ms := newMemStore()
	env := &Env{Store: ms, Cfg: testConfig()}

	require.NoError(t, Generate(context.Background(), env))

	for _, name := range []string{"users.csv", "products.csv", "sessions.csv", "events.csv", "experiment_assignments.csv"} {
		data, err := ms.Get(context.Background(), "raw-bucket", "raw/"+name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}

func TestLoadIntoSQLite(t *testing.T) {
	ms := newMemStore()
	seedStagedInputs(t, ms)
	env := &Env{Store: ms, Cfg: testConfig()}
	ctx := context.Background()

	_, err := BuildMarts(ctx, env)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "load.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, Load(ctx, env, st))

	outcomes, err := st.ListOutcomes(ctx, "exp")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, 1, outcomes[0].Purchased)

	// Loading again upserts instead of duplicating.
	require.NoError(t, Load(ctx, env, st))
	outcomes, err = st.ListOutcomes(ctx, "exp")
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
}
