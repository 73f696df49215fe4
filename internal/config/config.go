// Package config loads and validates cagewatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. CAGEWATCH_FETCHER_MODE.
const EnvPrefix = "CAGEWATCH"

// Config captures all knobs for a single check run.
type Config struct {
	Target  TargetConfig  `mapstructure:"target"`
	Output  OutputConfig  `mapstructure:"output"`
	Data    DataConfig    `mapstructure:"data"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	State   StateConfig   `mapstructure:"state"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// TargetConfig names the page being watched.
type TargetConfig struct {
	URL string `mapstructure:"url"`
}

// OutputConfig points at the key=value file consumed by the automation step.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// DataConfig controls where debug artifacts land.
type DataConfig struct {
	Dir         string `mapstructure:"dir"`
	SampleBytes int    `mapstructure:"sample_bytes"`
}

// FetcherConfig configures how the page is loaded.
type FetcherConfig struct {
	Mode              string `mapstructure:"mode"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSec     int    `mapstructure:"nav_timeout_seconds"`
	RenderDelaySec    int    `mapstructure:"render_delay_seconds"`
	ExtractTimeoutSec int    `mapstructure:"extract_timeout_seconds"`
	ViewportWidth     int64  `mapstructure:"viewport_width"`
	ViewportHeight    int64  `mapstructure:"viewport_height"`
	Screenshot        bool   `mapstructure:"screenshot"`
	ChromePath        string `mapstructure:"chrome_path"`
}

// StateConfig selects the keyword state backend.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
	Key     string `mapstructure:"key"`
}

// LoggingConfig toggles zap development features and the debug log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// StorageConfig optionally mirrors debug artifacts to Cloud Storage.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig optionally fans the notification out to a Pub/Sub topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Backend names.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Load builds a Config from .env, an optional config file and the environment.
func Load(path string) (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv reads .env when present. Real environment variables win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the variable names the scheduled workflow already sets.
func bindLegacyEnv(v *viper.Viper) error {
	if err := v.BindEnv("target.url", EnvPrefix+"_TARGET_URL", "WEBSITE_URL"); err != nil {
		return fmt.Errorf("bind target.url: %w", err)
	}
	if err := v.BindEnv("output.path", EnvPrefix+"_OUTPUT_PATH", "GITHUB_OUTPUT"); err != nil {
		return fmt.Errorf("bind output.path: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.sample_bytes", 10000)
	v.SetDefault("fetcher.mode", "headless")
	v.SetDefault("fetcher.user_agent", "")
	v.SetDefault("fetcher.nav_timeout_seconds", 60)
	v.SetDefault("fetcher.render_delay_seconds", 10)
	v.SetDefault("fetcher.extract_timeout_seconds", 30)
	v.SetDefault("fetcher.viewport_width", 1280)
	v.SetDefault("fetcher.viewport_height", 800)
	v.SetDefault("fetcher.screenshot", true)
	v.SetDefault("fetcher.chrome_path", "")
	v.SetDefault("state.backend", BackendFile)
	v.SetDefault("state.path", "")
	v.SetDefault("state.dsn", "")
	v.SetDefault("state.table", "keyword_state")
	v.SetDefault("state.key", "default")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "cagewatch")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.textfile", "")
}

// applyDerived fills paths that default to locations inside the data dir.
func (c *Config) applyDerived() {
	c.Target.URL = strings.TrimSpace(c.Target.URL)
	if c.State.Path == "" {
		c.State.Path = filepath.Join(c.Data.Dir, "previous_keywords.json")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.Data.Dir, "debug.log")
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validateTargetURL(c.Target.URL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Data.Dir) == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.Data.SampleBytes < 0 {
		return fmt.Errorf("data.sample_bytes must be >= 0")
	}
	switch c.Fetcher.Mode {
	case "headless", "static", "auto":
	default:
		return fmt.Errorf("fetcher.mode must be headless, static or auto, got %q", c.Fetcher.Mode)
	}
	if c.Fetcher.NavTimeoutSec <= 0 {
		return fmt.Errorf("fetcher.nav_timeout_seconds must be > 0")
	}
	if c.Fetcher.RenderDelaySec < 0 {
		return fmt.Errorf("fetcher.render_delay_seconds must be >= 0")
	}
	if c.Fetcher.ExtractTimeoutSec <= 0 {
		return fmt.Errorf("fetcher.extract_timeout_seconds must be > 0")
	}
	if c.Fetcher.ViewportWidth <= 0 || c.Fetcher.ViewportHeight <= 0 {
		return fmt.Errorf("fetcher.viewport_width and fetcher.viewport_height must be > 0")
	}
	switch c.State.Backend {
	case BackendFile:
		if strings.TrimSpace(c.State.Path) == "" {
			return fmt.Errorf("state.path must be set for the file backend")
		}
	case BackendPostgres:
		if c.State.DSN == "" {
			return fmt.Errorf("state.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("state.backend must be file or postgres, got %q", c.State.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

func validateTargetURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("target.url must be set (WEBSITE_URL)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("target.url is not a valid url: %w", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target.url must be an absolute http(s) url, got %q", raw)
	}
	return nil
}

// NavigationTimeout returns the navigation budget as a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Fetcher.NavTimeoutSec) * time.Second
}

// RenderDelay returns the post-load settle time as a duration.
func (c Config) RenderDelay() time.Duration {
	return time.Duration(c.Fetcher.RenderDelaySec) * time.Second
}

// ExtractTimeout returns the budget for reading text and screenshots.
func (c Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Fetcher.ExtractTimeoutSec) * time.Second
}
