// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	ETL        ETLConfig        `yaml:"etl" mapstructure:"etl"`
	Mart       MartConfig       `yaml:"mart" mapstructure:"mart"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
	Generate   GenerateConfig   `yaml:"generate" mapstructure:"generate"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StorageConfig configures the S3-compatible object store holding raw and
// processed data. Endpoint and static credentials support LocalStack/MinIO.
type StorageConfig struct {
	EndpointURL     string `yaml:"endpoint_url" mapstructure:"endpoint_url"`
	Region          string `yaml:"region" mapstructure:"region"`
	AccessKey       string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey       string `yaml:"secret_key" mapstructure:"secret_key"`
	RawBucket       string `yaml:"raw_bucket" mapstructure:"raw_bucket"`
	ProcessedBucket string `yaml:"processed_bucket" mapstructure:"processed_bucket"`
	RawPrefix       string `yaml:"raw_prefix" mapstructure:"raw_prefix"`
	ProcessedPrefix string `yaml:"processed_prefix" mapstructure:"processed_prefix"`
	MaxRetries      int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// PathsConfig holds object keys relative to the raw/processed prefixes.
type PathsConfig struct {
	Raw       RawPaths       `yaml:"raw" mapstructure:"raw"`
	Processed ProcessedPaths `yaml:"processed" mapstructure:"processed"`
}

// RawPaths holds raw CSV object keys.
type RawPaths struct {
	Users       string `yaml:"users" mapstructure:"users"`
	Products    string `yaml:"products" mapstructure:"products"`
	Sessions    string `yaml:"sessions" mapstructure:"sessions"`
	Events      string `yaml:"events" mapstructure:"events"`
	Assignments string `yaml:"experiment_assignments" mapstructure:"experiment_assignments"`
}

// ProcessedPaths holds staged parquet keys and mart output keys.
type ProcessedPaths struct {
	Users             string `yaml:"users" mapstructure:"users"`
	Products          string `yaml:"products" mapstructure:"products"`
	Sessions          string `yaml:"sessions" mapstructure:"sessions"`
	Assignments       string `yaml:"experiment_assignments" mapstructure:"experiment_assignments"`
	CleanEventsPrefix string `yaml:"clean_events_prefix" mapstructure:"clean_events_prefix"`
	UserExposure      string `yaml:"user_exposure" mapstructure:"user_exposure"`
	UserOutcomes      string `yaml:"user_outcomes" mapstructure:"user_outcomes"`
}

// SchemaConfig maps raw CSV column headers to canonical names, so the
// pipeline survives upstream header renames via config alone.
type SchemaConfig struct {
	Events      EventColumns      `yaml:"events" mapstructure:"events"`
	Assignments AssignmentColumns `yaml:"experiment_assignments" mapstructure:"experiment_assignments"`
}

// EventColumns names the raw event CSV columns.
type EventColumns struct {
	EventTS   string `yaml:"event_ts" mapstructure:"event_ts"`
	UserID    string `yaml:"user_id" mapstructure:"user_id"`
	SessionID string `yaml:"session_id" mapstructure:"session_id"`
	EventName string `yaml:"event_name" mapstructure:"event_name"`
}

// AssignmentColumns names the raw experiment assignment CSV columns.
type AssignmentColumns struct {
	UserID       string `yaml:"user_id" mapstructure:"user_id"`
	Variant      string `yaml:"variant" mapstructure:"variant"`
	ExperimentID string `yaml:"experiment_id" mapstructure:"experiment_id"`
}

// ETLConfig configures the cleaning stage.
type ETLConfig struct {
	// EventAliases maps raw event names (already lowercased and
	// underscore-normalized) to canonical names, e.g. "buy_now" -> "purchase".
	EventAliases map[string]string `yaml:"event_aliases" mapstructure:"event_aliases"`
}

// MartConfig configures the outcome mart builder.
type MartConfig struct {
	OutcomeWindowDays int        `yaml:"outcome_window_days" mapstructure:"outcome_window_days"`
	EventNames        EventNames `yaml:"event_names" mapstructure:"event_names"`
}

// EventNames maps funnel steps to the event name strings found in the data.
type EventNames struct {
	ExposureEvent string `yaml:"exposure_event" mapstructure:"exposure_event"`
	AddToCart     string `yaml:"add_to_cart" mapstructure:"add_to_cart"`
	BeginCheckout string `yaml:"begin_checkout" mapstructure:"begin_checkout"`
	Purchase      string `yaml:"purchase" mapstructure:"purchase"`
}

// ExperimentConfig holds experiment-level settings.
type ExperimentConfig struct {
	DefaultExperimentID string `yaml:"default_experiment_id" mapstructure:"default_experiment_id"`
}

// GenerateConfig configures synthetic data generation.
type GenerateConfig struct {
	Seed      int64  `yaml:"seed" mapstructure:"seed"`
	Users     int    `yaml:"users" mapstructure:"users"`
	Products  int    `yaml:"products" mapstructure:"products"`
	StartDate string `yaml:"start_date" mapstructure:"start_date"`
	EndDate   string `yaml:"end_date" mapstructure:"end_date"`
}

// StoreConfig configures the relational mart store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ABTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("storage.endpoint_url", "http://127.0.0.1:4566")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.access_key", "test")
	v.SetDefault("storage.secret_key", "test")
	v.SetDefault("storage.raw_bucket", "ecom-raw")
	v.SetDefault("storage.processed_bucket", "ecom-processed")
	v.SetDefault("storage.raw_prefix", "raw")
	v.SetDefault("storage.processed_prefix", "processed")
	v.SetDefault("storage.max_retries", 5)

	v.SetDefault("paths.raw.users", "users.csv")
	v.SetDefault("paths.raw.products", "products.csv")
	v.SetDefault("paths.raw.sessions", "sessions.csv")
	v.SetDefault("paths.raw.events", "events.csv")
	v.SetDefault("paths.raw.experiment_assignments", "experiment_assignments.csv")

	v.SetDefault("paths.processed.users", "staged/users.parquet")
	v.SetDefault("paths.processed.products", "staged/products.parquet")
	v.SetDefault("paths.processed.sessions", "staged/sessions.parquet")
	v.SetDefault("paths.processed.experiment_assignments", "staged/experiment_assignments.parquet")
	v.SetDefault("paths.processed.clean_events_prefix", "clean_events")
	v.SetDefault("paths.processed.user_exposure", "marts/user_exposure.parquet")
	v.SetDefault("paths.processed.user_outcomes", "marts/user_outcomes.parquet")

	v.SetDefault("schema.events.event_ts", "event_ts")
	v.SetDefault("schema.events.user_id", "user_id")
	v.SetDefault("schema.events.session_id", "session_id")
	v.SetDefault("schema.events.event_name", "event_type")
	v.SetDefault("schema.experiment_assignments.user_id", "user_id")
	v.SetDefault("schema.experiment_assignments.variant", "variant")
	v.SetDefault("schema.experiment_assignments.experiment_id", "experiment_id")

	v.SetDefault("etl.event_aliases", map[string]string{
		"view_product": "pdp_view",
		"buy_now":      "purchase",
	})

	v.SetDefault("mart.outcome_window_days", 7)
	v.SetDefault("mart.event_names.exposure_event", "pdp_view")
	v.SetDefault("mart.event_names.add_to_cart", "add_to_cart")
	v.SetDefault("mart.event_names.begin_checkout", "begin_checkout")
	v.SetDefault("mart.event_names.purchase", "purchase")

	v.SetDefault("experiment.default_experiment_id", "pdp_redesign_experiment")

	v.SetDefault("generate.seed", 42)
	v.SetDefault("generate.users", 1000)
	v.SetDefault("generate.products", 200)
	v.SetDefault("generate.start_date", "2024-01-01")
	v.SetDefault("generate.end_date", "2024-03-31")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
