// Package model defines the core data types and structures used throughout the orderworker job system.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobType represents the type of task a job row records.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeOrderReceipt represents an order receipt generation task.
	JobTypeOrderReceipt JobType = "order_receipt"
	// JobTypeInvoiceGenerate represents an invoice generation task.
	JobTypeInvoiceGenerate JobType = "invoice_generate"

	// JobStatusProcessing indicates a job attempt is in flight.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates a job attempt finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job attempt failed.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and envelope parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeOrderReceipt || t == JobTypeInvoiceGenerate
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusProcessing || s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true if the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the durable record of one task execution attempt. A row is created
// at the start of an attempt with status=processing and makes exactly one
// terminal transition to completed or failed. Retries create new rows.
type Job struct {
	ID           int64           `json:"id"                      db:"id"`
	OrderID      int64           `json:"order_id"                db:"order_id"`
	Type         JobType         `json:"job_type"                db:"job_type"`
	Status       JobStatus       `json:"status"                  db:"status"`
	Payload      json.RawMessage `json:"payload"                 db:"payload"`
	Result       json.RawMessage `json:"result,omitempty"        db:"result"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"  db:"completed_at"`
	CreatedAt    time.Time       `json:"created_at"              db:"created_at"`
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// TaskResult is the value a task invocation returns to its caller and the
// shape recorded in the result store.
type TaskResult struct {
	Status  JobStatus `json:"status"`
	OrderID int64     `json:"order_id"`
	JobID   int64     `json:"job_id"`
}

// OrderReceiptPayload is the input snapshot stored on order_receipt job rows.
type OrderReceiptPayload struct {
	UserID  string `json:"user_id"`
	OrderID int64  `json:"order_id"`
}

// OrderReceiptResult is the result payload written on order_receipt success.
type OrderReceiptResult struct {
	EmailSent bool  `json:"email_sent"`
	Timestamp int64 `json:"timestamp"`
}

// InvoiceGeneratePayload is the input snapshot stored on invoice_generate job rows.
type InvoiceGeneratePayload struct {
	OrderID int64 `json:"order_id"`
}

// InvoiceGenerateResult is the result payload written on invoice_generate success.
type InvoiceGenerateResult struct {
	InvoiceGenerated bool   `json:"invoice_generated"`
	InvoiceID        string `json:"invoice_id"`
	Timestamp        int64  `json:"timestamp"`
}

// InvoiceID builds the invoice identifier for an order.
func InvoiceID(orderID int64) string {
	return fmt.Sprintf("INV-%d", orderID)
}
