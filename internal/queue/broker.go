// Package queue implements the task broker and result store on Redis
// streams.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commercekit/orderworker/config"
	"github.com/commercekit/orderworker/internal/core"
	"github.com/commercekit/orderworker/internal/domain/model"
)

const envelopeField = "envelope"

// Broker moves task envelopes over a Redis stream with a consumer group.
// Messages stay in the pending entries list until acknowledged, so a worker
// crash mid-task leaves the message claimable.
type Broker struct {
	client       *redis.Client
	stream       string
	deadStream   string
	group        string
	consumer     string
	blockTimeout time.Duration
	logger       *slog.Logger
}

var _ core.Broker = (*Broker)(nil)

// NewBroker creates the stream and consumer group if they do not exist yet
// and returns a broker bound to them.
func NewBroker(ctx context.Context, client *redis.Client, cfg config.BrokerConfig, logger *slog.Logger) (*Broker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// BUSYGROUP means another process created the group first; fine.
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s on %s: %w", cfg.ConsumerGroup, cfg.Stream, err)
	}

	return &Broker{
		client:       client,
		stream:       cfg.Stream,
		deadStream:   cfg.DeadLetterStream,
		group:        cfg.ConsumerGroup,
		consumer:     cfg.ConsumerName,
		blockTimeout: cfg.BlockTimeout,
		logger:       logger.With("component", "broker"),
	}, nil
}

// Stream returns the name of the pending stream, for reporting.
func (b *Broker) Stream() string {
	return b.stream
}

// Enqueue appends the envelope to the pending stream.
func (b *Broker) Enqueue(ctx context.Context, env *model.TaskEnvelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if addErr := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{envelopeField: string(raw)},
	}).Err(); addErr != nil {
		return fmt.Errorf("enqueue envelope %s: %w", env.ID, addErr)
	}

	b.logger.DebugContext(ctx, "envelope enqueued",
		"envelope_id", env.ID, "task", env.Task, "attempt", env.Attempt)
	return nil
}

// Receive blocks up to the configured block timeout for the next delivery.
// A nil delivery with a nil error means the wait timed out. Messages whose
// payload cannot be decoded are dead-lettered in place and the wait resumes
// on the caller's next call.
func (b *Broker) Receive(ctx context.Context) (*core.Delivery, error) {
	entries, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  []string{b.stream, ">"},
		Count:    1,
		Block:    b.blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read from stream %s: %w", b.stream, err)
	}

	for _, stream := range entries {
		for _, msg := range stream.Messages {
			env, decodeErr := decodeEnvelope(msg)
			if decodeErr != nil {
				b.logger.WarnContext(ctx, "undecodable message dead-lettered",
					"message_id", msg.ID, "error", decodeErr)
				if dlErr := b.deadLetterRaw(ctx, msg, decodeErr.Error()); dlErr != nil {
					return nil, dlErr
				}
				continue
			}
			return &core.Delivery{MessageID: msg.ID, Envelope: env}, nil
		}
	}
	return nil, nil
}

// Ack removes the message from the pending entries list.
func (b *Broker) Ack(ctx context.Context, messageID string) error {
	if err := b.client.XAck(ctx, b.stream, b.group, messageID).Err(); err != nil {
		return fmt.Errorf("ack message %s: %w", messageID, err)
	}
	return nil
}

// Requeue re-enqueues the envelope with the attempt counter bumped, then
// acks the original delivery.
func (b *Broker) Requeue(ctx context.Context, d *Delivery) error {
	next := *d.Envelope
	next.Attempt++

	if err := b.Enqueue(ctx, &next); err != nil {
		return fmt.Errorf("requeue envelope %s: %w", d.Envelope.ID, err)
	}
	return b.Ack(ctx, d.MessageID)
}

// DeadLetter appends the envelope to the dead-letter stream with the failure
// reason, then acks the original delivery.
func (b *Broker) DeadLetter(ctx context.Context, d *Delivery, reason string) error {
	raw, err := json.Marshal(d.Envelope)
	if err != nil {
		return fmt.Errorf("marshal dead-letter envelope: %w", err)
	}

	if addErr := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.deadStream,
		Values: map[string]interface{}{
			envelopeField: string(raw),
			"reason":      reason,
		},
	}).Err(); addErr != nil {
		return fmt.Errorf("dead-letter envelope %s: %w", d.Envelope.ID, addErr)
	}

	b.logger.WarnContext(ctx, "envelope dead-lettered",
		"envelope_id", d.Envelope.ID, "task", d.Envelope.Task,
		"attempt", d.Envelope.Attempt, "reason", reason)
	return b.Ack(ctx, d.MessageID)
}

// PendingDepth reports the current length of the pending stream.
func (b *Broker) PendingDepth(ctx context.Context) (int64, error) {
	depth, err := b.client.XLen(ctx, b.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("read stream length: %w", err)
	}
	return depth, nil
}

// DeadLetters returns up to limit entries from the dead-letter stream,
// oldest first.
func (b *Broker) DeadLetters(ctx context.Context, limit int64) ([]*core.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	msgs, err := b.client.XRangeN(ctx, b.deadStream, "-", "+", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead-letter stream: %w", err)
	}

	entries := make([]*core.DeadLetterEntry, 0, len(msgs))
	for _, msg := range msgs {
		env, decodeErr := decodeEnvelope(msg)
		if decodeErr != nil {
			b.logger.WarnContext(ctx, "skipping undecodable dead-letter entry",
				"message_id", msg.ID, "error", decodeErr)
			continue
		}
		reason, _ := msg.Values["reason"].(string)
		entries = append(entries, &core.DeadLetterEntry{
			MessageID:  msg.ID,
			Envelope:   env,
			Reason:     reason,
			RecordedAt: messageTime(msg.ID),
		})
	}
	return entries, nil
}

// RedriveDeadLetter moves one dead-letter entry back onto the pending stream
// with a reset attempt counter.
func (b *Broker) RedriveDeadLetter(ctx context.Context, messageID string) error {
	msgs, err := b.client.XRange(ctx, b.deadStream, messageID, messageID).Result()
	if err != nil {
		return fmt.Errorf("read dead-letter entry %s: %w", messageID, err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("dead-letter entry %s not found", messageID)
	}

	env, decodeErr := decodeEnvelope(msgs[0])
	if decodeErr != nil {
		return fmt.Errorf("decode dead-letter entry %s: %w", messageID, decodeErr)
	}
	env.Attempt = 0

	if enqErr := b.Enqueue(ctx, env); enqErr != nil {
		return enqErr
	}
	if delErr := b.client.XDel(ctx, b.deadStream, messageID).Err(); delErr != nil {
		return fmt.Errorf("delete dead-letter entry %s: %w", messageID, delErr)
	}
	return nil
}

func (b *Broker) deadLetterRaw(ctx context.Context, msg redis.XMessage, reason string) error {
	values := map[string]interface{}{"reason": reason}
	if raw, ok := msg.Values[envelopeField]; ok {
		values[envelopeField] = raw
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.deadStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("dead-letter raw message %s: %w", msg.ID, err)
	}
	return b.Ack(ctx, msg.ID)
}

func decodeEnvelope(msg redis.XMessage) (*model.TaskEnvelope, error) {
	raw, ok := msg.Values[envelopeField].(string)
	if !ok {
		return nil, errors.New("message has no envelope field")
	}
	var env model.TaskEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// messageTime extracts the timestamp half of a stream entry id.
func messageTime(messageID string) time.Time {
	ms, _, found := strings.Cut(messageID, "-")
	if !found {
		return time.Time{}
	}
	var unixMs int64
	if _, err := fmt.Sscanf(ms, "%d", &unixMs); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(unixMs)
}

// Delivery aliases the core type so broker methods read naturally.
type Delivery = core.Delivery
