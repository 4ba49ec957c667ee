// Package model defines the tabular row types flowing through the pipeline:
// raw generated rows, staged/clean rows, and the mart output rows.
package model

import "time"

// RawEvent is one row of the raw events CSV as emitted by the generator.
// Optional numeric columns are left empty in the CSV when absent.
type RawEvent struct {
	EventID        string    `csv:"event_id"`
	EventTS        time.Time `csv:"event_ts"`
	UserID         int64     `csv:"user_id"`
	SessionID      int64     `csv:"session_id"`
	ProductID      string    `csv:"product_id,omitempty"`
	EventType      string    `csv:"event_type"`
	PricePaid      string    `csv:"price_paid,omitempty"`
	Quantity       string    `csv:"quantity,omitempty"`
	DiscountAmount string    `csv:"discount_amount,omitempty"`
}

// Event is one row of the cleaned, canonical event log. This is the input
// schema of the mart builder.
type Event struct {
	EventTS      time.Time `parquet:"event_ts,timestamp"`
	UserID       int64     `parquet:"user_id"`
	SessionID    int64     `parquet:"session_id"`
	EventName    string    `parquet:"event_name"`
	Variant      string    `parquet:"variant,optional"`
	ExperimentID string    `parquet:"experiment_id,optional"`
	NetRevenue   float64   `parquet:"net_revenue"`
	Dt           string    `parquet:"dt"`
}
