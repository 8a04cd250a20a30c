package model

import "time"

// OrderStatus represents the fulfillment state of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates an order awaiting processing.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates an order with fulfillment in flight.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted indicates a fully processed order.
	OrderStatusCompleted OrderStatus = "completed"
)

// Order is the business entity tasks act upon. Its status field is advanced
// by tasks with an unconditional overwrite; concurrent tasks on the same
// order may race and the last write wins.
type Order struct {
	ID        int64       `json:"id"         db:"id"`
	UserID    string      `json:"user_id"    db:"user_id"`
	Status    OrderStatus `json:"status"     db:"status"`
	Total     float64     `json:"total"      db:"total"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
