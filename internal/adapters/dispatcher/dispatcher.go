// Package dispatcher runs the worker pool that consumes task envelopes from
// the broker and drives them through the task runner.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/commercekit/orderworker/internal/core"
	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/domain/model"
	"github.com/commercekit/orderworker/internal/observability/metrics"
	"github.com/commercekit/orderworker/internal/observability/notify"
	"github.com/commercekit/orderworker/internal/tasks"
	"github.com/commercekit/orderworker/internal/telemetry"
)

// Executor runs one task envelope to a terminal outcome.
type Executor interface {
	Run(ctx context.Context, env *model.TaskEnvelope) (*model.TaskResult, error)
}

// Options configures the dispatcher.
type Options struct {
	Broker   core.Broker
	Executor Executor
	Results  core.ResultStore
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Notifier notify.Sink

	// Concurrency is the number of worker goroutines; defaults to 1.
	Concurrency int
	// MaxRetries is how many times a failed message is redelivered when the
	// envelope does not carry its own max_attempts. Defaults to 3.
	MaxRetries int
	// RetryDelay is how long a worker holds a failed message before
	// requeueing it.
	RetryDelay time.Duration
	// HardTimeout forcibly aborts a task attempt; the attempt counts as a
	// failure. Defaults to 30m.
	HardTimeout time.Duration
	// SoftTimeout logs a warning while the attempt keeps running.
	// Defaults to 25m.
	SoftTimeout time.Duration
}

// Dispatcher pulls envelopes off the broker and executes them. Every
// delivery is acknowledged exactly once, after its terminal decision:
// success, requeue, or dead-letter.
type Dispatcher struct {
	broker      core.Broker
	executor    Executor
	results     core.ResultStore
	logger      *slog.Logger
	metrics     *metrics.Recorder
	notifier    notify.Sink
	workers     int
	maxRetries  int
	retryDelay  time.Duration
	hardTimeout time.Duration
	softTimeout time.Duration
}

// New constructs a Dispatcher, applying defaults for unset options.
func New(opts Options) (*Dispatcher, error) {
	if opts.Broker == nil {
		return nil, errors.New("broker is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	hard := opts.HardTimeout
	if hard <= 0 {
		hard = 30 * time.Minute
	}
	soft := opts.SoftTimeout
	if soft <= 0 || soft >= hard {
		soft = hard * 5 / 6
	}

	return &Dispatcher{
		broker:      opts.Broker,
		executor:    opts.Executor,
		results:     opts.Results,
		logger:      logger.With("component", "dispatcher"),
		metrics:     opts.Metrics,
		notifier:    opts.Notifier,
		workers:     workers,
		maxRetries:  maxRetries,
		retryDelay:  opts.RetryDelay,
		hardTimeout: hard,
		softTimeout: soft,
	}, nil
}

// Run starts the worker goroutines and blocks until the context is
// cancelled or a worker hits a fatal broker error.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "starting dispatcher",
		"workers", d.workers, "hard_timeout", d.hardTimeout, "soft_timeout", d.softTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.workerLoop(ctx); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		delivery, err := d.broker.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if delivery == nil {
			// block timeout, loop for the next read
			continue
		}
		d.process(ctx, delivery)
	}
	return nil
}

// process runs one delivery to its terminal decision. The ack is bundled
// into that decision: success acks directly, requeue and dead-letter ack via
// the broker after the replacement message is durable.
func (d *Dispatcher) process(ctx context.Context, delivery *core.Delivery) {
	env := delivery.Envelope
	start := time.Now()

	if env.TraceID != "" {
		ctx = telemetry.WithTraceID(ctx, env.TraceID)
	}
	if env.MaxAttempts <= 0 {
		// External producers may omit max_attempts; the worker default still
		// grants the message its retry budget.
		env.MaxAttempts = d.maxRetries + 1
	}

	d.emit(metrics.TaskEvent{Task: string(env.Task), Transition: metrics.TransitionDequeued, Attempt: env.Attempt})
	d.logger.InfoContext(ctx, "task dequeued",
		"envelope_id", env.ID, "task", env.Task, "attempt", env.Attempt)

	taskCtx, cancel := context.WithTimeout(ctx, d.hardTimeout)
	defer cancel()

	softWarn := time.AfterFunc(d.softTimeout, func() {
		d.logger.WarnContext(ctx, "task exceeded soft time limit",
			"envelope_id", env.ID, "task", env.Task, "soft_timeout", d.softTimeout)
	})
	defer softWarn.Stop()

	d.emit(metrics.TaskEvent{Task: string(env.Task), Transition: metrics.TransitionStarted, Attempt: env.Attempt})
	result, err := d.executor.Run(taskCtx, env)
	elapsed := time.Since(start)

	if err == nil {
		d.storeResult(ctx, env.ID, result)
		d.emit(metrics.TaskEvent{
			Task: string(env.Task), Transition: metrics.TransitionCompleted,
			Attempt: env.Attempt, Duration: elapsed,
		})
		if ackErr := d.broker.Ack(ctx, delivery.MessageID); ackErr != nil {
			d.logger.ErrorContext(ctx, "ack after success failed",
				"envelope_id", env.ID, "error", ackErr)
		}
		return
	}

	d.handleFailure(ctx, delivery, err, elapsed)
}

func (d *Dispatcher) handleFailure(ctx context.Context, delivery *core.Delivery, taskErr error, elapsed time.Duration) {
	env := delivery.Envelope

	transition := metrics.TransitionFailed
	if apperrors.Is(taskErr, apperrors.ErrCodeTimeout) {
		transition = metrics.TransitionTimedOut
	}
	d.emit(metrics.TaskEvent{
		Task: string(env.Task), Transition: transition,
		Attempt: env.Attempt, Duration: elapsed, Err: taskErr,
	})

	d.storeResult(ctx, env.ID, failedResult(taskErr, env))

	if env.Exhausted() {
		d.deadLetter(ctx, delivery, taskErr)
		return
	}

	d.logger.WarnContext(ctx, "task failed, requeueing",
		"envelope_id", env.ID, "task", env.Task,
		"attempt", env.Attempt, "max_attempts", env.MaxAttempts,
		"retry_delay", d.retryDelay, "error", taskErr)

	// Holding the failed message through the delay gives natural
	// backpressure: this worker does not take new messages meanwhile.
	if !d.wait(ctx, d.retryDelay) {
		// Shutdown during the delay: leave the message pending so the
		// consumer group redelivers it without losing the attempt count.
		return
	}

	if err := d.broker.Requeue(ctx, delivery); err != nil {
		d.logger.ErrorContext(ctx, "requeue failed, message stays pending",
			"envelope_id", env.ID, "error", err)
		return
	}
	d.emit(metrics.TaskEvent{Task: string(env.Task), Transition: metrics.TransitionRetried, Attempt: env.Attempt + 1})
}

func (d *Dispatcher) deadLetter(ctx context.Context, delivery *core.Delivery, taskErr error) {
	env := delivery.Envelope

	if err := d.broker.DeadLetter(ctx, delivery, taskErr.Error()); err != nil {
		d.logger.ErrorContext(ctx, "dead-letter failed, message stays pending",
			"envelope_id", env.ID, "error", err)
		return
	}
	d.emit(metrics.TaskEvent{
		Task: string(env.Task), Transition: metrics.TransitionDeadLetter,
		Attempt: env.Attempt, Err: taskErr,
	})

	if d.notifier == nil {
		return
	}
	payload := notify.DeadLetterPayload{
		EnvelopeID: env.ID,
		Task:       string(env.Task),
		OrderID:    orderIDFromEnvelope(env),
		Attempt:    env.Attempt,
		Reason:     taskErr.Error(),
		TraceID:    env.TraceID,
		OccurredAt: time.Now(),
	}
	if err := d.notifier.SendDeadLetter(ctx, payload); err != nil {
		d.logger.ErrorContext(ctx, "dead-letter notification failed",
			"envelope_id", env.ID, "error", err)
	}
}

func (d *Dispatcher) storeResult(ctx context.Context, envelopeID string, result *model.TaskResult) {
	if d.results == nil || result == nil {
		return
	}
	if err := d.results.Store(ctx, envelopeID, result); err != nil {
		d.logger.ErrorContext(ctx, "store task result failed",
			"envelope_id", envelopeID, "error", err)
	}
}

func (d *Dispatcher) emit(ev metrics.TaskEvent) {
	d.metrics.TaskLifecycle(ev)
}

// wait sleeps for delay, returning false if the context ended first.
func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// failedResult builds the result-store record for a failed attempt.
func failedResult(taskErr error, env *model.TaskEnvelope) *model.TaskResult {
	result := &model.TaskResult{Status: model.JobStatusFailed}

	var tErr *tasks.TaskError
	if errors.As(taskErr, &tErr) && tErr.JobID != nil {
		result.JobID = *tErr.JobID
	}
	result.OrderID = orderIDFromEnvelope(env)
	return result
}

// orderIDFromEnvelope extracts the order id from the envelope args for
// reporting.
func orderIDFromEnvelope(env *model.TaskEnvelope) int64 {
	var args struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.Unmarshal(env.Args, &args); err != nil {
		return 0
	}
	return args.OrderID
}
