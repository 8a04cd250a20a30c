package config

import "time"

// WorkerConfig contains worker pool and task execution configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines. Each worker runs one
	// task invocation to completion before accepting the next message.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// MaxRetries is how many times a failed task message is redelivered
	// before it is routed to the dead-letter stream. It applies to envelopes
	// that do not carry their own max_attempts.
	MaxRetries int `env:"WORKER_MAX_RETRIES" envDefault:"3"`

	// RetryDelay is the base delay before a failed message is redelivered.
	RetryDelay time.Duration `env:"WORKER_RETRY_DELAY" envDefault:"30s"`

	// HardTimeout forcibly aborts a task attempt and counts it as a failure.
	HardTimeout time.Duration `env:"TASK_HARD_TIMEOUT" envDefault:"1800s"`

	// SoftTimeout logs a warning but lets the task attempt graceful completion.
	SoftTimeout time.Duration `env:"TASK_SOFT_TIMEOUT" envDefault:"1500s"`

	// SlowConsumer extends the simulated work duration to exercise
	// backpressure and timeout paths.
	SlowConsumer bool `env:"SLOW_CONSUMER" envDefault:"false"`
}

// Sanitize applies guardrails to worker configuration values.
func (c *WorkerConfig) Sanitize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.HardTimeout <= 0 {
		c.HardTimeout = 30 * time.Minute
	}
	if c.SoftTimeout <= 0 || c.SoftTimeout >= c.HardTimeout {
		c.SoftTimeout = c.HardTimeout * 5 / 6
	}
}
