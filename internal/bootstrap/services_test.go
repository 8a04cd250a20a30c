package bootstrap

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/orderworker/config"
)

func TestBuildObservabilityDisabled(t *testing.T) {
	cfg := config.ObservabilityConfig{}
	cfg.Sanitize()

	obs := buildObservability(slog.Default(), cfg)

	assert.Nil(t, obs.MetricsSink)
	assert.Nil(t, obs.Notifier)
	// Recorder and tracer are always usable, even with no sink behind them.
	require.NotNil(t, obs.Recorder)
	require.NotNil(t, obs.Tracer)
	obs.Recorder.WorkersActive(1)
	obs.Close()
}

func TestBuildObservabilityNotifierRequiresWebhook(t *testing.T) {
	cfg := config.ObservabilityConfig{
		Notifications: config.ObservabilityNotificationsConfig{
			SlackWebhookURL: "https://hooks.slack.example/services/T0/B0/x",
		},
	}
	cfg.Sanitize()

	obs := buildObservability(slog.Default(), cfg)
	assert.NotNil(t, obs.Notifier)
}

func TestNewServicesValidatesDeps(t *testing.T) {
	ctx := context.Background()

	_, err := NewServices(ctx, nil)
	require.Error(t, err)

	_, err = NewServices(ctx, &ServiceDeps{})
	require.Error(t, err)

	cfg := &config.AppConfig{}
	cfg.Sanitize()
	_, err = NewServices(ctx, &ServiceDeps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestRunWorkerWithShutdownRequiresConfig(t *testing.T) {
	require.Error(t, RunWorkerWithShutdown(nil))
}
