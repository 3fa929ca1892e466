// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fortuna/crease/internal/format"
	"github.com/fortuna/crease/internal/ingest/cricbuzz"
	"github.com/fortuna/crease/internal/scheduler"
)

// Fetch modes
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Polling PollingConfig `yaml:"polling"`
	Tooltip TooltipConfig `yaml:"tooltip"`
	API     APIConfig     `yaml:"api"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
}

type SourceConfig struct {
	HomepageURL string `yaml:"homepage_url"`
	FetchMode   string `yaml:"fetch_mode"` // "http" or "browser" (headless Chrome)
	MaxMatches  int    `yaml:"max_matches"`
}

type PollingConfig struct {
	ListingInterval time.Duration `yaml:"listing_interval"`
	DetailInterval  time.Duration `yaml:"detail_interval"`
	IdleInterval    time.Duration `yaml:"idle_interval"`
	ListingTimeout  time.Duration `yaml:"listing_timeout"`
	DetailTimeout   time.Duration `yaml:"detail_timeout"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace"`
}

type TooltipConfig struct {
	MaxItems  int `yaml:"max_items"`
	MaxLength int `yaml:"max_length"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
}

type RedisConfig struct {
	URL          string `yaml:"url"` // empty disables stream publishing
	StreamMaxLen int64  `yaml:"stream_max_len"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty logs to stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the built-in configuration
func Default() *Config {
	sched := scheduler.DefaultConfig()
	return &Config{
		Source: SourceConfig{
			HomepageURL: cricbuzz.BaseURL,
			FetchMode:   FetchModeHTTP,
			MaxMatches:  cricbuzz.DefaultMaxMatches,
		},
		Polling: PollingConfig{
			ListingInterval: sched.ListingInterval,
			DetailInterval:  sched.DetailInterval,
			IdleInterval:    sched.IdleInterval,
			ListingTimeout:  sched.ListingTimeout,
			DetailTimeout:   sched.DetailTimeout,
			ShutdownGrace:   sched.ShutdownGrace,
		},
		Tooltip: TooltipConfig{
			MaxItems:  format.DefaultTooltipItems,
			MaxLength: format.DefaultTooltipLength,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    "8765",
		},
		Redis: RedisConfig{
			StreamMaxLen: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration. configPath may be empty.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Source.HomepageURL = getEnv("CRICBUZZ_URL", c.Source.HomepageURL)
	c.Source.FetchMode = getEnv("FETCH_MODE", c.Source.FetchMode)
	c.API.Host = getEnv("REST_HOST", c.API.Host)
	c.API.Port = getEnv("REST_PORT", c.API.Port)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)

	var err error
	if c.API.Enabled, err = getEnvBool("ENABLE_API", c.API.Enabled); err != nil {
		return err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LISTING_INTERVAL", &c.Polling.ListingInterval},
		{"DETAIL_INTERVAL", &c.Polling.DetailInterval},
		{"IDLE_INTERVAL", &c.Polling.IdleInterval},
		{"LISTING_TIMEOUT", &c.Polling.ListingTimeout},
		{"DETAIL_TIMEOUT", &c.Polling.DetailTimeout},
		{"SHUTDOWN_GRACE", &c.Polling.ShutdownGrace},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the scheduler cannot run with
func (c *Config) Validate() error {
	var errs []error
	p := c.Polling
	for name, d := range map[string]time.Duration{
		"listing_interval": p.ListingInterval,
		"detail_interval":  p.DetailInterval,
		"idle_interval":    p.IdleInterval,
		"listing_timeout":  p.ListingTimeout,
		"detail_timeout":   p.DetailTimeout,
		"shutdown_grace":   p.ShutdownGrace,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("polling.%s must be positive, got %v", name, d))
		}
	}
	if c.Source.HomepageURL == "" {
		errs = append(errs, errors.New("source.homepage_url is required"))
	}
	if c.Source.FetchMode != FetchModeHTTP && c.Source.FetchMode != FetchModeBrowser {
		errs = append(errs, fmt.Errorf("source.fetch_mode must be %q or %q, got %q", FetchModeHTTP, FetchModeBrowser, c.Source.FetchMode))
	}
	if c.Tooltip.MaxLength <= 0 {
		errs = append(errs, errors.New("tooltip.max_length must be positive"))
	}
	return errors.Join(errs...)
}

// Scheduler converts the polling settings into scheduler configuration
func (c *Config) Scheduler() *scheduler.Config {
	return &scheduler.Config{
		HomepageURL:     c.Source.HomepageURL,
		ListingInterval: c.Polling.ListingInterval,
		DetailInterval:  c.Polling.DetailInterval,
		IdleInterval:    c.Polling.IdleInterval,
		ListingTimeout:  c.Polling.ListingTimeout,
		DetailTimeout:   c.Polling.DetailTimeout,
		ShutdownGrace:   c.Polling.ShutdownGrace,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
