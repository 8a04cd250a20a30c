// Package notify defines the dead-letter notification contract.
package notify

import (
	"context"
	"time"
)

// DeadLetterPayload captures the canonical data emitted when a task message
// exhausts its retry budget and is routed to the dead-letter stream.
type DeadLetterPayload struct {
	EnvelopeID string
	Task       string
	OrderID    int64
	Attempt    int
	Reason     string
	TraceID    string
	OccurredAt time.Time
}

// Sink describes a destination capable of consuming dead-letter alerts.
type Sink interface {
	SendDeadLetter(ctx context.Context, payload DeadLetterPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload DeadLetterPayload) error

// SendDeadLetter implements the Sink interface.
func (f SinkFunc) SendDeadLetter(ctx context.Context, payload DeadLetterPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
