package model

import "time"

// Session is one browsing session. DurationSeconds is nil when the raw data
// did not carry a usable duration for the session.
type Session struct {
	SessionID       int64     `csv:"session_id" parquet:"session_id"`
	UserID          int64     `csv:"user_id" parquet:"user_id"`
	SessionStartTS  time.Time `csv:"session_start_ts" parquet:"session_start_ts,timestamp"`
	SessionEndTS    time.Time `csv:"session_end_ts" parquet:"session_end_ts,timestamp"`
	DurationSeconds *float64  `csv:"session_duration_seconds" parquet:"session_duration_seconds,optional"`
}

// ExperimentAssignment maps a user to an experiment arm. UserID is unique
// after staging; duplicate raw rows are resolved keeping the first record.
type ExperimentAssignment struct {
	UserID       int64     `csv:"user_id" parquet:"user_id"`
	Variant      string    `csv:"variant" parquet:"variant"`
	ExperimentID string    `csv:"experiment_id" parquet:"experiment_id"`
	AssignmentTS time.Time `csv:"assignment_ts" parquet:"assignment_ts,timestamp"`
}
