package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfigDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.PoolMin != 1 {
		t.Errorf("PoolMin = %d, want 1", cfg.Postgres.PoolMin)
	}
	if cfg.Postgres.PoolMax != 20 {
		t.Errorf("PoolMax = %d, want 20", cfg.Postgres.PoolMax)
	}
	if cfg.Worker.HardTimeout != 1800*time.Second {
		t.Errorf("HardTimeout = %v, want 30m", cfg.Worker.HardTimeout)
	}
	if cfg.Worker.SoftTimeout != 1500*time.Second {
		t.Errorf("SoftTimeout = %v, want 25m", cfg.Worker.SoftTimeout)
	}
	if cfg.Worker.SlowConsumer {
		t.Error("SlowConsumer should default to false")
	}
	if cfg.Broker.URL == "" {
		t.Error("Broker.URL should have a default")
	}
	if cfg.Broker.ResultStoreURL != cfg.Broker.URL {
		t.Errorf("ResultStoreURL = %q, want broker URL %q", cfg.Broker.ResultStoreURL, cfg.Broker.URL)
	}
	if cfg.Broker.DeadLetterStream != "tasks:dead" {
		t.Errorf("DeadLetterStream = %q, want tasks:dead", cfg.Broker.DeadLetterStream)
	}
}

func TestDBConfigSanitize(t *testing.T) {
	tests := []struct {
		name             string
		cfg              DBConfig
		wantMin, wantMax int
	}{
		{"zero values fall back to defaults", DBConfig{}, 1, 20},
		{"max below min is raised to min", DBConfig{PoolMin: 8, PoolMax: 2}, 8, 8},
		{"valid bounds are kept", DBConfig{PoolMin: 2, PoolMax: 10}, 2, 10},
		{"negative min is clamped", DBConfig{PoolMin: -3, PoolMax: 5}, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Sanitize()
			if tt.cfg.PoolMin != tt.wantMin {
				t.Errorf("PoolMin = %d, want %d", tt.cfg.PoolMin, tt.wantMin)
			}
			if tt.cfg.PoolMax != tt.wantMax {
				t.Errorf("PoolMax = %d, want %d", tt.cfg.PoolMax, tt.wantMax)
			}
		})
	}
}

func TestWorkerConfigSanitize(t *testing.T) {
	t.Run("soft timeout must stay below hard timeout", func(t *testing.T) {
		cfg := WorkerConfig{HardTimeout: time.Hour, SoftTimeout: 2 * time.Hour}
		cfg.Sanitize()
		if cfg.SoftTimeout >= cfg.HardTimeout {
			t.Errorf("SoftTimeout %v not below HardTimeout %v", cfg.SoftTimeout, cfg.HardTimeout)
		}
	})

	t.Run("concurrency floor", func(t *testing.T) {
		cfg := WorkerConfig{Concurrency: 0, HardTimeout: time.Hour, SoftTimeout: time.Minute}
		cfg.Sanitize()
		if cfg.Concurrency != 1 {
			t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
		}
	})

	t.Run("negative retries clamped to zero", func(t *testing.T) {
		cfg := WorkerConfig{Concurrency: 2, MaxRetries: -1, HardTimeout: time.Hour, SoftTimeout: time.Minute}
		cfg.Sanitize()
		if cfg.MaxRetries != 0 {
			t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
		}
	})
}

func TestBrokerConfigSanitize(t *testing.T) {
	cfg := BrokerConfig{URL: " redis://broker:6379/0 ", Stream: "work"}
	cfg.Sanitize()

	if cfg.URL != "redis://broker:6379/0" {
		t.Errorf("URL not trimmed: %q", cfg.URL)
	}
	if cfg.ResultStoreURL != cfg.URL {
		t.Errorf("ResultStoreURL = %q, want fallback to broker URL", cfg.ResultStoreURL)
	}
	if cfg.DeadLetterStream != "work:dead" {
		t.Errorf("DeadLetterStream = %q, want work:dead", cfg.DeadLetterStream)
	}
	if cfg.BlockTimeout < time.Second {
		t.Errorf("BlockTimeout = %v, want >= 1s", cfg.BlockTimeout)
	}
}
