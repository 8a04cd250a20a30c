package config

import "strings"

const defaultObservabilityName = "orderworker"

// ObservabilityConfig groups configuration that controls metrics emission
// and dead-letter notifications.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityNotificationsConfig controls where dead-letter alerts go.
// Notifications are disabled when no webhook URL is configured.
type ObservabilityNotificationsConfig struct {
	SlackWebhookURL string `env:"OBSERVABILITY_SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"OBSERVABILITY_SLACK_CHANNEL"`
	SlackUsername   string `env:"OBSERVABILITY_SLACK_USERNAME"   envDefault:"orderworker"`
}

// Sanitize normalises notification settings.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	c.SlackWebhookURL = strings.TrimSpace(c.SlackWebhookURL)
	c.SlackChannel = strings.TrimSpace(c.SlackChannel)
	if c.SlackUsername = strings.TrimSpace(c.SlackUsername); c.SlackUsername == "" {
		c.SlackUsername = defaultObservabilityName
	}
}

// IsEnabled returns true when dead-letter notifications are active.
func (c *ObservabilityNotificationsConfig) IsEnabled() bool {
	return c.SlackWebhookURL != ""
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks such as StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"orderworker"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.Prefix = strings.TrimSpace(c.Prefix); c.Prefix == "" {
		c.Prefix = defaultObservabilityName
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}
