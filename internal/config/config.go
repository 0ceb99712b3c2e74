// ABOUTME: Configuration loader for the analyst console
// ABOUTME: Merges defaults, an optional YAML file, and environment variables, then validates

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/retry"
	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/views"
)

// DefaultAPIURL is used when nothing else is configured.
const DefaultAPIURL = "http://localhost:8000"

// Config represents the console configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Views   ViewsConfig   `yaml:"views"`
	Cache   CacheConfig   `yaml:"cache"`
	Session SessionConfig `yaml:"session"`
}

// APIConfig describes the backend.
type APIConfig struct {
	URL              string `yaml:"url"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// ViewsConfig holds polling and paging for screens.
type ViewsConfig struct {
	DashboardRefetchMS int `yaml:"dashboard_refetch_ms"`
	ListRefetchMS      int `yaml:"list_refetch_ms"`
	PageSize           int `yaml:"page_size"`
}

// CacheConfig tunes the query cache.
type CacheConfig struct {
	GCDelayMS     int `yaml:"gc_delay_ms"` // 0 disposes immediately
	StaleTimeMS   int `yaml:"stale_time_ms"`
	RetryAttempts int `yaml:"retry_attempts"`
	RetryBaseMS   int `yaml:"retry_base_ms"`
}

// SessionConfig locates the persisted credential.
type SessionConfig struct {
	TokenFile string `yaml:"token_file"`
}

// Default returns a Config with stock values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:              DefaultAPIURL,
			RequestTimeoutMS: 30000,
		},
		Views: ViewsConfig{
			DashboardRefetchMS: 60000,
			ListRefetchMS:      60000,
			PageSize:           5,
		},
		Cache: CacheConfig{
			GCDelayMS:     300000,
			RetryAttempts: 3,
			RetryBaseMS:   1000,
		},
		Session: SessionConfig{
			TokenFile: session.DefaultTokenPath(),
		},
	}
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(session.DefaultConfigDir(), "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file at path (or
// DefaultPath if path is empty and that file exists), then environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.API.URL = getEnv("TECHNOSHIELD_API_URL", c.API.URL)
	c.API.RequestTimeoutMS = getEnvInt("TECHNOSHIELD_REQUEST_TIMEOUT_MS", c.API.RequestTimeoutMS)
	c.Views.DashboardRefetchMS = getEnvInt("TECHNOSHIELD_REFETCH_INTERVAL_MS", c.Views.DashboardRefetchMS)
	c.Views.ListRefetchMS = getEnvInt("TECHNOSHIELD_LIST_REFETCH_MS", c.Views.ListRefetchMS)
	c.Views.PageSize = getEnvInt("TECHNOSHIELD_PAGE_SIZE", c.Views.PageSize)
	c.Cache.GCDelayMS = getEnvInt("TECHNOSHIELD_GC_DELAY_MS", c.Cache.GCDelayMS)
	c.Session.TokenFile = getEnv("TECHNOSHIELD_TOKEN_FILE", c.Session.TokenFile)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Views.Validate(); err != nil {
		return fmt.Errorf("views: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.RequestTimeoutMS, validation.Required, validation.Min(1)),
	)
}

// Validate validates the view configuration.
func (c *ViewsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DashboardRefetchMS, validation.Min(0)),
		validation.Field(&c.ListRefetchMS, validation.Min(0)),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GCDelayMS, validation.Min(0)),
		validation.Field(&c.StaleTimeMS, validation.Min(0)),
		validation.Field(&c.RetryAttempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.RetryBaseMS, validation.Min(0)),
	)
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// RequestTimeout is the per-request upper bound.
func (c *Config) RequestTimeout() time.Duration {
	return ms(c.API.RequestTimeoutMS)
}

// Bindings converts the view settings.
func (c *Config) Bindings() views.Bindings {
	return views.Bindings{
		DashboardRefetch: ms(c.Views.DashboardRefetchMS),
		ListRefetch:      ms(c.Views.ListRefetchMS),
		PageSize:         c.Views.PageSize,
	}
}

// QueryCache converts the cache settings.
func (c *Config) QueryCache(logger *slog.Logger, reg prometheus.Registerer) querycache.Config {
	gcDelay := ms(c.Cache.GCDelayMS)
	if gcDelay == 0 {
		gcDelay = -1
	}
	r := retry.DefaultConfig()
	r.MaxAttempts = c.Cache.RetryAttempts
	r.InitialWait = ms(c.Cache.RetryBaseMS)

	return querycache.Config{
		GCDelay:    gcDelay,
		StaleTime:  ms(c.Cache.StaleTimeMS),
		Retry:      r,
		Logger:     logger,
		Registerer: reg,
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
