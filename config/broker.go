package config

import (
	"strings"
	"time"
)

// BrokerConfig contains configuration for the task broker and result store.
//
// The broker is treated as an opaque durable queue: task envelopes are
// appended to a Redis stream and consumed through a consumer group. The
// result store records task return values keyed by task id.
type BrokerConfig struct {
	// URL is the broker connection string.
	URL string `env:"BROKER_URL" envDefault:"redis://localhost:6379/0"`

	// ResultStoreURL is the result-store connection string. Defaults to the
	// broker URL when empty.
	ResultStoreURL string `env:"RESULT_STORE_URL"`

	// ResultTTL is how long task results are retained in the result store.
	ResultTTL time.Duration `env:"RESULT_TTL" envDefault:"24h"`

	// Stream is the Redis stream task messages are appended to.
	Stream string `env:"BROKER_STREAM" envDefault:"tasks"`

	// DeadLetterStream receives messages that exhausted their retry budget.
	DeadLetterStream string `env:"BROKER_DEAD_LETTER_STREAM" envDefault:"tasks:dead"`

	// ConsumerGroup is the consumer group workers read through.
	ConsumerGroup string `env:"BROKER_CONSUMER_GROUP" envDefault:"orderworker"`

	// ConsumerName identifies this worker process within the consumer group.
	// Defaults to the hostname when empty (resolved in bootstrap).
	ConsumerName string `env:"BROKER_CONSUMER_NAME"`

	// BlockTimeout is how long a consumer-group read blocks waiting for
	// messages before looping (also the shutdown latency upper bound).
	BlockTimeout time.Duration `env:"BROKER_BLOCK_TIMEOUT" envDefault:"5s"`
}

// Sanitize applies guardrails to broker configuration values.
func (c *BrokerConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	c.ResultStoreURL = strings.TrimSpace(c.ResultStoreURL)
	if c.ResultStoreURL == "" {
		c.ResultStoreURL = c.URL
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 24 * time.Hour
	}
	if strings.TrimSpace(c.Stream) == "" {
		c.Stream = "tasks"
	}
	if strings.TrimSpace(c.DeadLetterStream) == "" {
		c.DeadLetterStream = c.Stream + ":dead"
	}
	if strings.TrimSpace(c.ConsumerGroup) == "" {
		c.ConsumerGroup = "orderworker"
	}
	if c.BlockTimeout < time.Second {
		c.BlockTimeout = time.Second
	}
}
