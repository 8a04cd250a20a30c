package model

import (
	"encoding/json"
	"errors"
	"time"
)

// TaskEnvelope is the wire format for task messages on the broker stream.
// Args is the task-specific argument object; Attempt counts deliveries and
// is bumped each time a failed message is requeued.
type TaskEnvelope struct {
	ID          string          `json:"id"`
	Task        JobType         `json:"task"`
	Args        json.RawMessage `json:"args"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	TraceID     string          `json:"trace_id,omitempty"`
}

// Validate checks the envelope is routable.
func (e *TaskEnvelope) Validate() error {
	if e.ID == "" {
		return errors.New("envelope id is required")
	}
	if !e.Task.Valid() {
		return errors.New("invalid task name")
	}
	if len(e.Args) == 0 {
		return errors.New("args is required")
	}
	if e.Attempt < 0 {
		return errors.New("attempt must be >= 0")
	}
	return nil
}

// Exhausted reports whether the current delivery is the envelope's final
// attempt: one more failure dead-letters the message instead of requeueing.
func (e *TaskEnvelope) Exhausted() bool {
	return e.Attempt+1 >= e.MaxAttempts
}

// OrderReceiptArgs are the queue message arguments for order_receipt tasks.
type OrderReceiptArgs struct {
	OrderID int64  `json:"order_id"`
	UserID  string `json:"user_id"`
}

// InvoiceGenerateArgs are the queue message arguments for invoice_generate tasks.
type InvoiceGenerateArgs struct {
	OrderID int64 `json:"order_id"`
}
