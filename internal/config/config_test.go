package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MEALPLAN_PORT", "")
	t.Setenv("MEALPLAN_BATCH_LIMIT", "")
	t.Setenv("MEALPLAN_RUNNER_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.BatchLimit != 200 {
		t.Errorf("batch limit = %d, want 200", cfg.BatchLimit)
	}
	if !cfg.RunnerEnabled {
		t.Error("expected runner enabled by default")
	}
	if cfg.TickSpec != "0 * * * *" {
		t.Errorf("tick spec = %q", cfg.TickSpec)
	}
	if cfg.CleanupSpec != "0 3 * * *" {
		t.Errorf("cleanup spec = %q", cfg.CleanupSpec)
	}
	if cfg.LeaseTTL != 55*time.Minute {
		t.Errorf("lease ttl = %v, want 55m", cfg.LeaseTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MEALPLAN_BATCH_LIMIT", "50")
	t.Setenv("MEALPLAN_RUNNER_ENABLED", "false")
	t.Setenv("MEALPLAN_LOG_LEVEL", "DEBUG")
	t.Setenv("MEALPLAN_LEASE_TTL", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchLimit != 50 {
		t.Errorf("batch limit = %d, want 50", cfg.BatchLimit)
	}
	if cfg.RunnerEnabled {
		t.Error("expected runner disabled")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.LeaseTTL != 10*time.Minute {
		t.Errorf("lease ttl = %v, want 10m", cfg.LeaseTTL)
	}
}

func TestLoadRejectsBatchLimitOutOfRange(t *testing.T) {
	for _, v := range []string{"0", "501", "-3"} {
		t.Setenv("MEALPLAN_BATCH_LIMIT", v)
		if _, err := Load(); err == nil {
			t.Errorf("batch limit %s: expected error", v)
		}
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MEALPLAN_RUNNER_ENABLED", "maybe")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "MEALPLAN_RUNNER_ENABLED") {
		t.Errorf("err = %v, want mention of MEALPLAN_RUNNER_ENABLED", err)
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("MEALPLAN_LOG_LEVEL", "verbose")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
