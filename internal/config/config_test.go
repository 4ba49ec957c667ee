package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ecom-raw", cfg.Storage.RawBucket)
	assert.Equal(t, "ecom-processed", cfg.Storage.ProcessedBucket)
	assert.Equal(t, "raw", cfg.Storage.RawPrefix)
	assert.Equal(t, 5, cfg.Storage.MaxRetries)
	assert.Equal(t, "events.csv", cfg.Paths.Raw.Events)
	assert.Equal(t, "clean_events", cfg.Paths.Processed.CleanEventsPrefix)
	assert.Equal(t, "marts/user_outcomes.parquet", cfg.Paths.Processed.UserOutcomes)
	assert.Equal(t, 7, cfg.Mart.OutcomeWindowDays)
	assert.Equal(t, "pdp_view", cfg.Mart.EventNames.ExposureEvent)
	assert.Equal(t, "add_to_cart", cfg.Mart.EventNames.AddToCart)
	assert.Equal(t, "begin_checkout", cfg.Mart.EventNames.BeginCheckout)
	assert.Equal(t, "purchase", cfg.Mart.EventNames.Purchase)
	assert.Equal(t, "pdp_redesign_experiment", cfg.Experiment.DefaultExperimentID)
	assert.Equal(t, "event_type", cfg.Schema.Events.EventName)
	assert.Equal(t, int64(42), cfg.Generate.Seed)
	assert.Equal(t, 1000, cfg.Generate.Users)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
mart:
  outcome_window_days: 14
  event_names:
    exposure_event: homepage_view
etl:
  event_aliases:
    buy_now: purchase
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 14, cfg.Mart.OutcomeWindowDays)
	assert.Equal(t, "homepage_view", cfg.Mart.EventNames.ExposureEvent)
	// Unset nested values still fall back to defaults.
	assert.Equal(t, "purchase", cfg.Mart.EventNames.Purchase)
	assert.Equal(t, "purchase", cfg.ETL.EventAliases["buy_now"])
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
