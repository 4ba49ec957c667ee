package model

import "time"

// User is one synthetic shopper.
type User struct {
	UserID     int64     `csv:"user_id" parquet:"user_id"`
	SignupTS   time.Time `csv:"signup_ts" parquet:"signup_ts,timestamp"`
	Country    string    `csv:"country" parquet:"country"`
	DeviceType string    `csv:"device_type" parquet:"device_type"`
	IsNewUser  bool      `csv:"is_new_user" parquet:"is_new_user"`
}

// Product is one synthetic catalog item.
type Product struct {
	ProductID string  `csv:"product_id" parquet:"product_id"`
	Category  string  `csv:"category" parquet:"category"`
	BasePrice float64 `csv:"base_price" parquet:"base_price"`
}
