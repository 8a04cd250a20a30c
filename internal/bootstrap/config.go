package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/commercekit/orderworker/config"
	"github.com/commercekit/orderworker/internal/telemetry"
)

// InitLogger initializes the structured logger. The telemetry handler adds
// the trace id carried on the context to every record.
func InitLogger() *slog.Logger {
	handler := telemetry.NewLogHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()

	if cfg.Broker.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "orderworker"
		}
		cfg.Broker.ConsumerName = host
	}

	return cfg, nil
}
