package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
source:
  api_url: "https://example.com/processedThlData"
  region: "HUS"
  skip_last_days: 3
  fill_gaps: true
  timeout: 10s

estimation:
  window: 5
  credible_mass: 0.9

storage:
  db_path: "./data/test.db"
  max_runs: 10

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "debug"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Source.Region != "HUS" {
		t.Errorf("Unexpected region: %s", cfg.Source.Region)
	}
	if cfg.Source.Timeout != 10*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Source.Timeout)
	}
	if !cfg.Source.FillGaps {
		t.Error("Expected fill_gaps to be true")
	}
	if cfg.Estimation.Window != 5 {
		t.Errorf("Unexpected window: %d", cfg.Estimation.Window)
	}
	if cfg.Estimation.CredibleMass != 0.9 {
		t.Errorf("Unexpected credible mass: %f", cfg.Estimation.CredibleMass)
	}

	// Unset keys fall back to defaults
	if cfg.Estimation.Gamma != 0.25 {
		t.Errorf("Expected default gamma 0.25, got %f", cfg.Estimation.Gamma)
	}
	if cfg.Estimation.RMax != 12 || cfg.Estimation.RStep != 0.01 {
		t.Errorf("Unexpected grid: max=%f step=%f", cfg.Estimation.RMax, cfg.Estimation.RStep)
	}
	if !cfg.Output.Enabled || cfg.Output.Dir != "./output" {
		t.Errorf("Unexpected output config: %+v", cfg.Output)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	est := cfg.EstimatorConfig()
	if est.SmoothingWindow != 7 || est.SmoothingStdDev != 2 {
		t.Errorf("Unexpected smoothing defaults: %+v", est)
	}
	if est.Window != 7 || est.MinPeriods != 1 || est.CredibleMass != 0.95 {
		t.Errorf("Unexpected estimation defaults: %+v", est)
	}
	if cfg.Monitor.RevisionThreshold != 0.1 {
		t.Errorf("Expected revision_threshold 0.1, got %f", cfg.Monitor.RevisionThreshold)
	}
	if cfg.Source.SkipLastDays != 5 {
		t.Errorf("Expected skip_last_days 5, got %d", cfg.Source.SkipLastDays)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RT_ESTIMATE_SOURCE_REGION", "Pirkanmaa")
	t.Setenv("RT_ESTIMATE_TELEGRAM_BOT_TOKEN", "env_token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source.Region != "Pirkanmaa" {
		t.Errorf("Expected region from env, got %s", cfg.Source.Region)
	}
	if cfg.Telegram.BotToken != "env_token" {
		t.Errorf("Expected bot token from env, got %q", cfg.Telegram.BotToken)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" },
			wantErr: "telegram.bot_token",
		},
		{
			name:    "credible mass of one",
			mutate:  func(c *Config) { c.Estimation.CredibleMass = 1.0 },
			wantErr: "estimation",
		},
		{
			name:    "min periods above window",
			mutate:  func(c *Config) { c.Estimation.MinPeriods = 8 },
			wantErr: "estimation",
		},
		{
			name:    "negative skip days",
			mutate:  func(c *Config) { c.Source.SkipLastDays = -1 },
			wantErr: "source.skip_last_days",
		},
		{
			name:    "empty region",
			mutate:  func(c *Config) { c.Source.Region = "" },
			wantErr: "source.region",
		},
		{
			name:    "output enabled without dir",
			mutate:  func(c *Config) { c.Output.Dir = "" },
			wantErr: "output.dir",
		},
		{
			name:    "zero revision threshold",
			mutate:  func(c *Config) { c.Monitor.RevisionThreshold = 0 },
			wantErr: "monitor.revision_threshold",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
