// Package tasks implements the task bodies executed by the worker pool.
//
// Every task follows the same skeleton: record a processing job row, do the
// work, advance the order, then mark the job row completed. On failure the
// job row is marked failed and the original error propagates to the
// dispatcher for the retry decision.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/commercekit/orderworker/internal/core"
	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/domain/model"
	"github.com/commercekit/orderworker/internal/telemetry"
)

const (
	defaultWorkDelay = 500 * time.Millisecond
	slowWorkDelay    = 5 * time.Second

	// failure recording gets its own deadline; the task context may
	// already be expired when we reach it.
	recordTimeout = 5 * time.Second
)

// Config holds the runner's collaborators and simulation knobs.
type Config struct {
	Jobs   core.JobRepository
	Orders core.OrderRepository
	Tracer *telemetry.Tracer
	Logger *slog.Logger

	// SlowConsumer switches the simulated work duration from WorkDelay to
	// SlowDelay to exercise backpressure and timeout paths.
	SlowConsumer bool
	// WorkDelay overrides the simulated work duration. Zero means 500ms.
	WorkDelay time.Duration
	// SlowDelay overrides the slow-consumer work duration. Zero means 5s.
	SlowDelay time.Duration

	// Now overrides the clock used for result timestamps.
	Now func() time.Time
}

// Runner executes task envelopes against the database.
type Runner struct {
	jobs      core.JobRepository
	orders    core.OrderRepository
	tracer    *telemetry.Tracer
	logger    *slog.Logger
	workDelay time.Duration
	now       func() time.Time
}

// NewRunner creates a Runner from cfg, filling in defaults.
func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delay := cfg.WorkDelay
	if delay <= 0 {
		delay = defaultWorkDelay
	}
	if cfg.SlowConsumer {
		delay = cfg.SlowDelay
		if delay <= 0 {
			delay = slowWorkDelay
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		jobs:      cfg.Jobs,
		orders:    cfg.Orders,
		tracer:    cfg.Tracer,
		logger:    logger,
		workDelay: delay,
		now:       now,
	}
}

// taskSpec parameterizes the shared execution skeleton per task type.
type taskSpec struct {
	jobType     model.JobType
	orderID     int64
	payload     any
	orderStatus model.OrderStatus
	buildResult func(orderID int64, now time.Time) any
}

// Run routes the envelope to its task body and executes it. The returned
// error is a *TaskError for execution failures.
func (r *Runner) Run(ctx context.Context, env *model.TaskEnvelope) (*model.TaskResult, error) {
	if env.TraceID != "" {
		ctx = telemetry.WithTraceID(ctx, env.TraceID)
	}

	spec, err := r.specFor(env)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, spec)
}

func (r *Runner) specFor(env *model.TaskEnvelope) (*taskSpec, error) {
	switch env.Task {
	case model.JobTypeOrderReceipt:
		var args model.OrderReceiptArgs
		if err := json.Unmarshal(env.Args, &args); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid order_receipt args: %v", err))
		}
		return &taskSpec{
			jobType:     model.JobTypeOrderReceipt,
			orderID:     args.OrderID,
			payload:     model.OrderReceiptPayload{UserID: args.UserID, OrderID: args.OrderID},
			orderStatus: model.OrderStatusProcessing,
			buildResult: func(orderID int64, now time.Time) any {
				return model.OrderReceiptResult{EmailSent: true, Timestamp: now.Unix()}
			},
		}, nil
	case model.JobTypeInvoiceGenerate:
		var args model.InvoiceGenerateArgs
		if err := json.Unmarshal(env.Args, &args); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid invoice_generate args: %v", err))
		}
		return &taskSpec{
			jobType:     model.JobTypeInvoiceGenerate,
			orderID:     args.OrderID,
			payload:     model.InvoiceGeneratePayload{OrderID: args.OrderID},
			orderStatus: model.OrderStatusCompleted,
			buildResult: func(orderID int64, now time.Time) any {
				return model.InvoiceGenerateResult{
					InvoiceGenerated: true,
					InvoiceID:        model.InvoiceID(orderID),
					Timestamp:        now.Unix(),
				}
			},
		}, nil
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown task %q", env.Task))
	}
}

// execute runs the shared task skeleton. The job row is created first so a
// processing record exists for the whole attempt; failures after that point
// mark the row failed before the error propagates.
func (r *Runner) execute(ctx context.Context, spec *taskSpec) (_ *model.TaskResult, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "task.run",
		slog.String("task", string(spec.jobType)),
		slog.Int64("order_id", spec.orderID),
	)
	defer func() { span.End(ctx, err) }()

	r.logger.InfoContext(ctx, "task started",
		"task", spec.jobType, "order_id", spec.orderID)

	payload, marshalErr := json.Marshal(spec.payload)
	if marshalErr != nil {
		return nil, apperrors.Internalf("marshal task payload: %v", marshalErr)
	}

	jobID, createErr := r.jobs.Create(ctx, spec.orderID, spec.jobType, payload)
	if createErr != nil {
		// No job row exists yet; there is nothing to mark failed.
		r.logger.ErrorContext(ctx, "task failed before job row was created",
			"task", spec.jobType, "order_id", spec.orderID, "error", createErr)
		return nil, &TaskError{Err: createErr}
	}

	if workErr := r.work(ctx); workErr != nil {
		return nil, r.fail(ctx, spec, jobID, workErr)
	}

	if updateErr := r.orders.UpdateStatus(ctx, spec.orderID, spec.orderStatus); updateErr != nil {
		return nil, r.fail(ctx, spec, jobID, updateErr)
	}

	result, marshalErr := json.Marshal(spec.buildResult(spec.orderID, r.now()))
	if marshalErr != nil {
		return nil, r.fail(ctx, spec, jobID, apperrors.Internalf("marshal task result: %v", marshalErr))
	}

	if completeErr := r.jobs.Complete(ctx, jobID, result); completeErr != nil {
		return nil, r.fail(ctx, spec, jobID, completeErr)
	}

	r.logger.InfoContext(ctx, "task completed",
		"task", spec.jobType, "order_id", spec.orderID, "job_id", jobID)

	return &model.TaskResult{
		Status:  model.JobStatusCompleted,
		OrderID: spec.orderID,
		JobID:   jobID,
	}, nil
}

// work simulates the actual receipt/invoice work, honoring cancellation.
func (r *Runner) work(ctx context.Context) error {
	timer := time.NewTimer(r.workDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.Timeout("task deadline exceeded", ctx.Err())
		}
		return apperrors.Canceled("task canceled", ctx.Err())
	}
}

// fail marks the job row failed and wraps both errors. The recording write
// runs on a detached context so an expired task deadline cannot suppress it.
func (r *Runner) fail(ctx context.Context, spec *taskSpec, jobID int64, cause error) error {
	r.logger.ErrorContext(ctx, "task failed",
		"task", spec.jobType, "order_id", spec.orderID, "job_id", jobID, "error", cause)

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	recordErr := r.jobs.Fail(recordCtx, &jobID, cause.Error())
	if recordErr != nil {
		r.logger.ErrorContext(ctx, "recording task failure failed",
			"task", spec.jobType, "job_id", jobID, "error", recordErr)
	}
	return &TaskError{Err: cause, RecordErr: recordErr, JobID: &jobID}
}
