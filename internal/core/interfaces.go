// Package core defines the contracts between the task layer and the
// storage and transport layers.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/commercekit/orderworker/internal/domain/model"
)

// JobRepository records task execution attempts.
type JobRepository interface {
	// Create inserts a processing job row and returns the id of the most
	// recently inserted row for the same (order_id, job_type).
	Create(ctx context.Context, orderID int64, jobType model.JobType, payload json.RawMessage) (int64, error)
	// Complete marks the job completed and stores the result payload.
	Complete(ctx context.Context, id int64, result json.RawMessage) error
	// Fail marks the job failed. A nil id is a no-op.
	Fail(ctx context.Context, id *int64, message string) error
	Get(ctx context.Context, id int64) (*model.Job, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Job, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// OrderRepository reads and advances orders.
type OrderRepository interface {
	Get(ctx context.Context, id int64) (*model.Order, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
}

// Delivery is one message taken off the stream, with the handle needed to
// acknowledge it.
type Delivery struct {
	MessageID string
	Envelope  *model.TaskEnvelope
}

// Broker moves task envelopes between producers and workers.
type Broker interface {
	// Enqueue appends the envelope to the pending stream.
	Enqueue(ctx context.Context, env *model.TaskEnvelope) error
	// Receive blocks up to the configured block timeout for the next
	// delivery. A nil delivery with a nil error means the wait timed out.
	Receive(ctx context.Context) (*Delivery, error)
	// Ack removes the message from the pending entries list. Called only
	// after a terminal decision for the delivery.
	Ack(ctx context.Context, messageID string) error
	// Requeue re-enqueues the envelope with the attempt counter bumped and
	// acks the original delivery.
	Requeue(ctx context.Context, d *Delivery) error
	// DeadLetter appends the envelope to the dead-letter stream and acks
	// the original delivery.
	DeadLetter(ctx context.Context, d *Delivery, reason string) error
	// PendingDepth reports the current length of the pending stream.
	PendingDepth(ctx context.Context) (int64, error)
}

// ResultStore keeps task invocation results for out-of-band inspection.
type ResultStore interface {
	// Store writes the result under the envelope id with the configured TTL.
	Store(ctx context.Context, envelopeID string, result *model.TaskResult) error
	Get(ctx context.Context, envelopeID string) (*model.TaskResult, error)
}

// DeadLetterEntry is a dead-lettered envelope with broker metadata, as
// returned by dead-letter inspection.
type DeadLetterEntry struct {
	MessageID  string
	Envelope   *model.TaskEnvelope
	Reason     string
	RecordedAt time.Time
}
