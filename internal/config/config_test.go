package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
ingest:
  workers: 6
  item_batch_size: 4
  item_limit: 25
  user_agent: huddlewire-test
  preview_limit: 20
http:
  timeout_seconds: 45
  max_retries: 4
headless:
  enabled: true
  nav_timeout_seconds: 30
images:
  max_concurrent_probes: 2
  probe_timeout_seconds: 3
snapshots:
  provider: local
  base_dir: /tmp/snapshots
db:
  provider: postgres
  dsn: postgres://localhost/articles
pubsub:
  provider: memory
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Ingest.Workers != 6 || cfg.Ingest.ItemBatchSize != 4 {
		t.Fatalf("expected ingest overrides to apply: %+v", cfg.Ingest)
	}
	if cfg.DB.Provider != "postgres" || cfg.DB.DSN == "" {
		t.Fatalf("expected postgres db config: %+v", cfg.DB)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.ProbeTimeout(); got != 3*time.Second {
		t.Fatalf("expected probe timeout 3s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.ItemBatchSize != 6 {
		t.Fatalf("expected default item batch size 6, got %d", cfg.Ingest.ItemBatchSize)
	}
	if cfg.Images.MaxConcurrentProbes != 4 {
		t.Fatalf("expected default probe concurrency 4, got %d", cfg.Images.MaxConcurrentProbes)
	}
	if cfg.Ingest.PreviewLimit != 50 {
		t.Fatalf("expected default preview limit 50, got %d", cfg.Ingest.PreviewLimit)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "too many workers",
			mutate: func(c *Config) { c.Ingest.Workers = 12 },
			want:   "ingest.workers",
		},
		{
			name:   "postgres without dsn",
			mutate: func(c *Config) { c.DB.Provider = "postgres"; c.DB.DSN = "" },
			want:   "db.dsn",
		},
		{
			name:   "auth without key",
			mutate: func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKey = "" },
			want:   "auth.api_key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tc.mutate(&cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
