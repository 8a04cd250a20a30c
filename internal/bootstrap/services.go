package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/commercekit/orderworker/config"
	"github.com/commercekit/orderworker/internal/adapters/dispatcher"
	"github.com/commercekit/orderworker/internal/data"
	"github.com/commercekit/orderworker/internal/observability/metrics"
	"github.com/commercekit/orderworker/internal/observability/notify"
	"github.com/commercekit/orderworker/internal/observability/notify/slack"
	"github.com/commercekit/orderworker/internal/observability/statsd"
	"github.com/commercekit/orderworker/internal/queue"
	"github.com/commercekit/orderworker/internal/tasks"
	"github.com/commercekit/orderworker/internal/telemetry"
)

// queueDepthInterval is how often the pending stream depth gauge is sampled.
const queueDepthInterval = 30 * time.Second

// ServiceContainer holds the wired worker runtime.
type ServiceContainer struct {
	Jobs          *data.JobRepo
	Orders        *data.OrderRepo
	Broker        *queue.Broker
	Results       *queue.ResultStore
	Runner        *tasks.Runner
	Dispatcher    *dispatcher.Dispatcher
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    *statsd.Client
	Recorder       *metrics.Recorder
	Tracer         *telemetry.Tracer
	Notifier       notify.Sink
	MetricsConfig  config.ObservabilityMetricsConfig
	NotifierConfig config.ObservabilityNotificationsConfig
}

// Close releases the metrics sink connection.
func (o *ObservabilityContainer) Close() {
	if o.MetricsSink != nil {
		o.MetricsSink.Close()
	}
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	// RedisClient backs the broker stream.
	RedisClient *redis.Client
	// ResultsClient backs the result store; may be the same client as
	// RedisClient.
	ResultsClient *redis.Client
	Logger        *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	var notifier notify.Sink
	if cfg.Notifications.IsEnabled() {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Notifications.SlackWebhookURL,
			Channel:    cfg.Notifications.SlackChannel,
			Username:   cfg.Notifications.SlackUsername,
		})
		if err != nil {
			obsLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			notifier = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:    metricsSink,
		Recorder:       metrics.NewRecorder(metricsSink),
		Tracer:         telemetry.NewTracer(obsLogger, metricsSink),
		Notifier:       notifier,
		MetricsConfig:  cfg.Metrics,
		NotifierConfig: cfg.Notifications,
	}
}

// NewServices wires repositories, the broker, the task runner, and the
// dispatcher into a runnable container.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("config is required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database handle is required")
	}
	if deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := deps.Config
	observability := buildObservability(logger, cfg.Observability)

	repoCfg := data.RepoConfig{Logger: logger}
	jobRepo := data.NewJobRepo(deps.DB, repoCfg)
	orderRepo := data.NewOrderRepo(deps.DB, repoCfg)

	broker, err := queue.NewBroker(ctx, deps.RedisClient, cfg.Broker, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create broker: %w", err)
	}

	resultsClient := deps.ResultsClient
	if resultsClient == nil {
		resultsClient = deps.RedisClient
	}
	results := queue.NewResultStore(resultsClient, cfg.Broker.ResultTTL)

	runner := tasks.NewRunner(tasks.Config{
		Jobs:         jobRepo,
		Orders:       orderRepo,
		Tracer:       observability.Tracer,
		Logger:       logger,
		SlowConsumer: cfg.Worker.SlowConsumer,
	})

	disp, err := dispatcher.New(dispatcher.Options{
		Broker:      broker,
		Executor:    runner,
		Results:     results,
		Logger:      logger,
		Metrics:     observability.Recorder,
		Notifier:    observability.Notifier,
		Concurrency: cfg.Worker.Concurrency,
		MaxRetries:  cfg.Worker.MaxRetries,
		RetryDelay:  cfg.Worker.RetryDelay,
		HardTimeout: cfg.Worker.HardTimeout,
		SoftTimeout: cfg.Worker.SoftTimeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create dispatcher: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobRepo,
		Orders:        orderRepo,
		Broker:        broker,
		Results:       results,
		Runner:        runner,
		Dispatcher:    disp,
		Observability: observability,
	}, nil
}

// WorkerRuntimeConfig contains dependencies for running the worker pool.
type WorkerRuntimeConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunWorkerWithShutdown runs the dispatcher and its companion goroutines
// until a shutdown signal arrives or the dispatcher fails.
func RunWorkerWithShutdown(cfg *WorkerRuntimeConfig) error {
	if cfg == nil {
		return errors.New("worker runtime config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer cfg.Services.Observability.Close()

	concurrency := 1
	if cfg.Config != nil {
		concurrency = cfg.Config.Worker.Concurrency
	}
	cfg.Services.Observability.Recorder.WorkersActive(int64(concurrency))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return cfg.Services.Dispatcher.Run(groupCtx)
	})

	group.Go(func() error {
		return sampleQueueDepth(groupCtx, cfg.Services, logger)
	})

	err := group.Wait()
	cfg.Services.Observability.Recorder.WorkersActive(0)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("worker stopped")
	return nil
}

// sampleQueueDepth periodically publishes the pending stream length as a
// gauge.
func sampleQueueDepth(ctx context.Context, services ServiceContainer, logger *slog.Logger) error {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	stream := services.Broker.Stream()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			depth, err := services.Broker.PendingDepth(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WarnContext(ctx, "sample queue depth failed", "error", err)
				continue
			}
			services.Observability.Recorder.QueueDepth(stream, depth)
		}
	}
}
