package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/commercekit/orderworker/internal/bootstrap"
	"github.com/commercekit/orderworker/internal/data"
	"github.com/commercekit/orderworker/internal/domain/model"
	"github.com/commercekit/orderworker/internal/queue"
	"github.com/commercekit/orderworker/internal/telemetry"
)

const defaultQueueTimeout = 2 * time.Minute

type enqueueOptions struct {
	Task        string
	OrderID     int64
	UserID      string
	MaxAttempts int
	Count       int
}

type deadLetterListOptions struct {
	Limit int64
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}

	return withBroker(cmdCtx, func(ctx context.Context, broker *queue.Broker) error {
		for range opts.Count {
			env, buildErr := buildEnvelope(opts)
			if buildErr != nil {
				return buildErr
			}
			if enqErr := broker.Enqueue(ctx, env); enqErr != nil {
				return fmt.Errorf("enqueue envelope: %w", enqErr)
			}
			if writeErr := writef(os.Stdout, "enqueued %s task=%s order=%d trace=%s\n",
				env.ID, env.Task, opts.OrderID, env.TraceID); writeErr != nil {
				return writeErr
			}
		}
		return nil
	})
}

func buildEnvelope(opts enqueueOptions) (*model.TaskEnvelope, error) {
	var task model.JobType
	if err := task.UnmarshalText([]byte(opts.Task)); err != nil {
		return nil, err
	}

	var args any
	switch task {
	case model.JobTypeOrderReceipt:
		args = model.OrderReceiptArgs{OrderID: opts.OrderID, UserID: opts.UserID}
	case model.JobTypeInvoiceGenerate:
		args = model.InvoiceGenerateArgs{OrderID: opts.OrderID}
	default:
		return nil, fmt.Errorf("unsupported task %q", task)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal task args: %w", err)
	}

	return &model.TaskEnvelope{
		ID:          uuid.NewString(),
		Task:        task,
		Args:        raw,
		Attempt:     0,
		MaxAttempts: opts.MaxAttempts,
		EnqueuedAt:  time.Now().UTC(),
		TraceID:     telemetry.NewTraceID(),
	}, nil
}

func runJobStats(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("job-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Number of recent jobs to display")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultQueueTimeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})

		stats, err := repo.Stats(ctx)
		if err != nil {
			return fmt.Errorf("read job stats: %w", err)
		}
		if writeErr := writef(os.Stdout, "processing=%d completed=%d failed=%d\n\n",
			stats.Processing, stats.Completed, stats.Failed); writeErr != nil {
			return writeErr
		}

		jobs, err := repo.ListRecent(ctx, *limit)
		if err != nil {
			return fmt.Errorf("list recent jobs: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if _, writeErr := fmt.Fprintln(w, "ID\tORDER\tTYPE\tSTATUS\tERROR\tCREATED"); writeErr != nil {
			return fmt.Errorf("write header: %w", writeErr)
		}
		for _, job := range jobs {
			errMsg := ""
			if job.ErrorMessage != nil {
				errMsg = *job.ErrorMessage
			}
			if _, writeErr := fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
				job.ID, job.OrderID, job.Type, job.Status, errMsg,
				job.CreatedAt.Format(time.RFC3339)); writeErr != nil {
				return fmt.Errorf("write job row: %w", writeErr)
			}
		}
		if flushErr := w.Flush(); flushErr != nil {
			return fmt.Errorf("flush output: %w", flushErr)
		}
		return nil
	})
}

func runListDeadLetters(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-dead-letters", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts := deadLetterListOptions{}
	fs.Int64Var(&opts.Limit, "limit", 50, "Maximum number of entries to display")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withBroker(cmdCtx, func(ctx context.Context, broker *queue.Broker) error {
		entries, err := broker.DeadLetters(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return writef(os.Stdout, "dead-letter stream is empty\n")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if _, writeErr := fmt.Fprintln(w, "MESSAGE\tENVELOPE\tTASK\tATTEMPT\tREASON\tRECORDED"); writeErr != nil {
			return fmt.Errorf("write header: %w", writeErr)
		}
		for _, entry := range entries {
			if _, writeErr := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				entry.MessageID, entry.Envelope.ID, entry.Envelope.Task,
				entry.Envelope.Attempt, entry.Reason,
				entry.RecordedAt.Format(time.RFC3339)); writeErr != nil {
				return fmt.Errorf("write entry row: %w", writeErr)
			}
		}
		if flushErr := w.Flush(); flushErr != nil {
			return fmt.Errorf("flush output: %w", flushErr)
		}
		return nil
	})
}

func runRedrive(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("redrive", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	messageID := fs.String("id", "", "Dead-letter stream message id to redrive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *messageID == "" {
		return errors.New("--id is required")
	}

	return withBroker(cmdCtx, func(ctx context.Context, broker *queue.Broker) error {
		if err := broker.RedriveDeadLetter(ctx, *messageID); err != nil {
			return err
		}
		return writef(os.Stdout, "redrove %s onto the pending stream\n", *messageID)
	})
}

func runTaskResult(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("task-result", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	envelopeID := fs.String("id", "", "Task envelope id to look up")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *envelopeID == "" {
		return errors.New("--id is required")
	}

	ctx, cancel := queueContext(cmdCtx)
	defer cancel()

	client, err := bootstrap.ConnectRedis(cmdCtx.Config.Broker.ResultStoreURL, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeRedis(cmdCtx, client)

	store := queue.NewResultStore(client, cmdCtx.Config.Broker.ResultTTL)
	result, err := store.Get(ctx, *envelopeID)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return writef(os.Stdout, "%s\n", raw)
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := enqueueOptions{}
	fs.StringVar(&opts.Task, "task", string(model.JobTypeOrderReceipt), "Task to enqueue (order_receipt or invoice_generate)")
	fs.Int64Var(&opts.OrderID, "order-id", 0, "Order the task acts on")
	fs.StringVar(&opts.UserID, "user-id", "", "User the order belongs to (order_receipt only)")
	fs.IntVar(&opts.MaxAttempts, "max-attempts", 3, "Delivery budget before the envelope is dead-lettered")
	fs.IntVar(&opts.Count, "count", 1, "Number of envelopes to enqueue")

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}

	if opts.OrderID <= 0 {
		return enqueueOptions{}, errors.New("--order-id is required")
	}
	if opts.MaxAttempts < 1 {
		return enqueueOptions{}, errors.New("--max-attempts must be at least 1")
	}
	if opts.Count < 1 {
		return enqueueOptions{}, errors.New("--count must be at least 1")
	}

	return opts, nil
}

func withBroker(cmdCtx *commandContext, f func(context.Context, *queue.Broker) error) error {
	ctx, cancel := queueContext(cmdCtx)
	defer cancel()

	client, err := bootstrap.ConnectRedis(cmdCtx.Config.Broker.URL, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeRedis(cmdCtx, client)

	broker, err := queue.NewBroker(ctx, client, cmdCtx.Config.Broker, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("create broker: %w", err)
	}

	return f(ctx, broker)
}

func queueContext(cmdCtx *commandContext) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultQueueTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

type redisCloser interface {
	Close() error
}

func closeRedis(cmdCtx *commandContext, client redisCloser) {
	if err := client.Close(); err != nil {
		cmdCtx.Logger.Warn("redis close failed", "error", err)
	}
}
