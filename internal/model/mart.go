package model

import "time"

// UserExposure is one row of the mart_user_exposure table: the identity and
// assignment facts for a user who saw at least one exposure event.
type UserExposure struct {
	ExperimentID      string    `parquet:"experiment_id" json:"experiment_id"`
	UserID            int64     `parquet:"user_id" json:"user_id"`
	Variant           string    `parquet:"variant" json:"variant"`
	ExposureTS        time.Time `parquet:"exposure_ts,timestamp" json:"exposure_ts"`
	ExposureSessionID int64     `parquet:"exposure_session_id" json:"exposure_session_id"`
}

// UserOutcome is one row of the mart_user_outcomes table. Flag fields are
// 0/1 ints. AvgSessionDurationSeconds is the only metric allowed to be
// absent; every other metric defaults to zero.
type UserOutcome struct {
	ExperimentID              string    `parquet:"experiment_id" json:"experiment_id"`
	UserID                    int64     `parquet:"user_id" json:"user_id"`
	Variant                   string    `parquet:"variant" json:"variant"`
	ExposureTS                time.Time `parquet:"exposure_ts,timestamp" json:"exposure_ts"`
	AddToCart                 int       `parquet:"add_to_cart" json:"add_to_cart"`
	BeginCheckout             int       `parquet:"begin_checkout" json:"begin_checkout"`
	Purchased                 int       `parquet:"purchased" json:"purchased"`
	Revenue                   float64   `parquet:"revenue" json:"revenue"`
	EventsInWindow            int64     `parquet:"events_in_window" json:"events_in_window"`
	EventsInExposureSession   int64     `parquet:"events_in_exposure_session" json:"events_in_exposure_session"`
	Bounce                    int       `parquet:"bounce" json:"bounce"`
	AvgSessionDurationSeconds *float64  `parquet:"avg_session_duration_seconds,optional" json:"avg_session_duration_seconds,omitempty"`
	Retained7d                int       `parquet:"retained_7d" json:"retained_7d"`
}
