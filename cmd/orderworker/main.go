package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/commercekit/orderworker/config"
	"github.com/commercekit/orderworker/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, resultsClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()
	if resultsClient != redisClient {
		defer func() {
			if cerr := resultsClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close results redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:        &cfg,
		DB:            db,
		RedisClient:   redisClient,
		ResultsClient: resultsClient,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunWorkerWithShutdown(&bootstrap.WorkerRuntimeConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting orderworker service",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"stream", cfg.Broker.Stream,
		"consumer_group", cfg.Broker.ConsumerGroup,
		"concurrency", cfg.Worker.Concurrency,
		"slow_consumer", cfg.Worker.SlowConsumer)
}

// initInfrastructure connects shared dependencies used by the worker runtime.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, *redis.Client, *redis.Client, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cfg.Postgres,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(cfg.Broker.URL, logger)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
			return nil, nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
		}
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	resultsClient := redisClient
	if cfg.Broker.ResultStoreURL != cfg.Broker.URL {
		resultsClient, err = bootstrap.ConnectRedis(cfg.Broker.ResultStoreURL, logger)
		if err != nil {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis after results connect failure", "error", cerr)
			}
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database after results connect failure", "error", cerr)
			}
			return nil, nil, nil, fmt.Errorf("connect results redis: %w", err)
		}
	}

	return db, redisClient, resultsClient, nil
}
