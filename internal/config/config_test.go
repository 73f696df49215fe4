package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp isolates Load from any .env file in the package directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadFromLegacyEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WEBSITE_URL", "https://example.com/cages")
	t.Setenv("GITHUB_OUTPUT", "/tmp/gh-output")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Target.URL != "https://example.com/cages" {
		t.Fatalf("expected target from WEBSITE_URL, got %q", cfg.Target.URL)
	}
	if cfg.Output.Path != "/tmp/gh-output" {
		t.Fatalf("expected output from GITHUB_OUTPUT, got %q", cfg.Output.Path)
	}
	if cfg.State.Path != filepath.Join("data", "previous_keywords.json") {
		t.Fatalf("unexpected default state path %q", cfg.State.Path)
	}
	if cfg.Logging.File != filepath.Join("data", "debug.log") {
		t.Fatalf("unexpected default log file %q", cfg.Logging.File)
	}
	if cfg.Fetcher.Mode != "headless" || !cfg.Fetcher.Screenshot {
		t.Fatalf("unexpected fetcher defaults: %+v", cfg.Fetcher)
	}
	if cfg.NavigationTimeout() != 60*time.Second || cfg.RenderDelay() != 10*time.Second {
		t.Fatalf("unexpected timeouts nav=%v render=%v", cfg.NavigationTimeout(), cfg.RenderDelay())
	}
	if cfg.Data.SampleBytes != 10000 {
		t.Fatalf("expected 10000 sample bytes, got %d", cfg.Data.SampleBytes)
	}
}

func TestPrefixedEnvWins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WEBSITE_URL", "https://legacy.example.com")
	t.Setenv("CAGEWATCH_TARGET_URL", "https://new.example.com")
	t.Setenv("CAGEWATCH_FETCHER_MODE", "static")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Target.URL != "https://new.example.com" {
		t.Fatalf("expected prefixed variable to win, got %q", cfg.Target.URL)
	}
	if cfg.Fetcher.Mode != "static" {
		t.Fatalf("expected static mode, got %q", cfg.Fetcher.Mode)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("WEBSITE_URL", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CAGEWATCH_TARGET_URL=https://dotenv.example.com\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("CAGEWATCH_TARGET_URL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Target.URL != "https://dotenv.example.com" {
		t.Fatalf("expected .env target, got %q", cfg.Target.URL)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("WEBSITE_URL", "")
	t.Setenv("GITHUB_OUTPUT", "")
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
target:
  url: https://booking.example.com/cages
output:
  path: out.txt
data:
  dir: artifacts
  sample_bytes: 512
fetcher:
  mode: headless
  nav_timeout_seconds: 30
  render_delay_seconds: 2
  screenshot: false
state:
  backend: postgres
  dsn: postgres://localhost/cagewatch
  table: cage_state
logging:
  development: false
storage:
  gcs_bucket: bucket
pubsub:
  project_id: proj
  topic_name: cages
metrics:
  textfile: artifacts/cagewatch.prom
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Target.URL != "https://booking.example.com/cages" {
		t.Fatalf("unexpected target %q", cfg.Target.URL)
	}
	if cfg.Output.Path != "out.txt" {
		t.Fatalf("unexpected output path %q", cfg.Output.Path)
	}
	if cfg.Data.Dir != "artifacts" || cfg.Data.SampleBytes != 512 {
		t.Fatalf("unexpected data config %+v", cfg.Data)
	}
	if cfg.State.Backend != BackendPostgres || cfg.State.Table != "cage_state" {
		t.Fatalf("unexpected state config %+v", cfg.State)
	}
	if cfg.State.Path != filepath.Join("artifacts", "previous_keywords.json") {
		t.Fatalf("state path should follow data dir, got %q", cfg.State.Path)
	}
	if cfg.Fetcher.Screenshot || cfg.RenderDelay() != 2*time.Second {
		t.Fatalf("unexpected fetcher overrides %+v", cfg.Fetcher)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
	if cfg.Storage.GCSBucket != "bucket" || cfg.PubSub.TopicName != "cages" {
		t.Fatalf("unexpected sidecar config %+v %+v", cfg.Storage, cfg.PubSub)
	}
}

func TestLoadMissingTargetIsFatal(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WEBSITE_URL", "")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "target.url") {
		t.Fatalf("expected target.url error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Target: TargetConfig{URL: "https://example.com"},
		Data:   DataConfig{Dir: "data"},
		Fetcher: FetcherConfig{
			Mode:              "headless",
			NavTimeoutSec:     60,
			ExtractTimeoutSec: 30,
			ViewportWidth:     1280,
			ViewportHeight:    800,
		},
		State: StateConfig{Backend: BackendFile, Path: "data/state.json"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
	for _, mode := range []string{"static", "auto"} {
		c := base
		c.Fetcher.Mode = mode
		if err := c.Validate(); err != nil {
			t.Fatalf("mode %s should be valid: %v", mode, err)
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "relative url", mutate: func(c *Config) { c.Target.URL = "/cages" }, want: "target.url"},
		{name: "non http scheme", mutate: func(c *Config) { c.Target.URL = "ftp://example.com" }, want: "target.url"},
		{name: "missing host", mutate: func(c *Config) { c.Target.URL = "https://" }, want: "target.url"},
		{name: "unparsable url", mutate: func(c *Config) { c.Target.URL = "http://%zz" }, want: "target.url"},
		{name: "empty data dir", mutate: func(c *Config) { c.Data.Dir = " " }, want: "data.dir"},
		{name: "unknown mode", mutate: func(c *Config) { c.Fetcher.Mode = "curl" }, want: "fetcher.mode"},
		{name: "zero nav timeout", mutate: func(c *Config) { c.Fetcher.NavTimeoutSec = 0 }, want: "fetcher.nav_timeout_seconds"},
		{name: "negative delay", mutate: func(c *Config) { c.Fetcher.RenderDelaySec = -1 }, want: "fetcher.render_delay_seconds"},
		{name: "zero viewport", mutate: func(c *Config) { c.Fetcher.ViewportWidth = 0 }, want: "fetcher.viewport_width"},
		{name: "unknown backend", mutate: func(c *Config) { c.State.Backend = "redis" }, want: "state.backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.State.Backend = BackendPostgres }, want: "state.dsn"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "cages" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
