// Package config defines the client's configuration model and the Loader
// abstraction over its sources.
package config

import (
	"fmt"
	"time"
)

// Defaults applied by Normalize when a field is unset.
const (
	DefaultPollInterval = time.Second
	DefaultMaxItems     = 42
	DefaultPageSize     = 10
	DefaultFreshFor     = 5 * time.Minute
	DefaultEvictAfter   = 10 * time.Minute
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRateLimit    = 10.0
	DefaultRateBurst    = 20
	DefaultAPIHost      = "0.0.0.0"
	DefaultAPIPort      = "8181"
)

// Duration wraps time.Duration so YAML configs can use human-readable values
// like "5m" or "1s".
type Duration time.Duration

// UnmarshalYAML parses a duration string or an integer nanosecond count.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServiceConfig locates and authenticates against the remote parsing service.
type ServiceConfig struct {
	BaseURL   string   `yaml:"base_url"`
	AuthToken string   `yaml:"auth_token"`
	Timeout   Duration `yaml:"timeout"`
	RateLimit float64  `yaml:"rate_limit"`
	RateBurst int      `yaml:"rate_burst"`
}

// JobsConfig tunes job orchestration.
type JobsConfig struct {
	// PollInterval is the fixed period between status polls.
	PollInterval Duration `yaml:"poll_interval"`

	// MaxItems caps the stored results per collection; the oldest item is
	// evicted before a start once the cap is reached.
	MaxItems int `yaml:"max_items"`
}

// CacheConfig tunes the paginated result cache.
type CacheConfig struct {
	PageSize int `yaml:"page_size"`

	// FreshFor is how long a fetched page is served without refetching.
	FreshFor Duration `yaml:"fresh_for"`

	// EvictAfter is how long an unread page stays cached.
	EvictAfter Duration `yaml:"evict_after"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
	Environment string  `yaml:"environment"`
}

// Config is the top-level client configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Cache     CacheConfig     `yaml:"cache"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c.Service.Timeout <= 0 {
		c.Service.Timeout = Duration(DefaultHTTPTimeout)
	}
	if c.Service.RateLimit <= 0 {
		c.Service.RateLimit = DefaultRateLimit
	}
	if c.Service.RateBurst <= 0 {
		c.Service.RateBurst = DefaultRateBurst
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Jobs.MaxItems <= 0 {
		c.Jobs.MaxItems = DefaultMaxItems
	}
	if c.Cache.PageSize <= 0 {
		c.Cache.PageSize = DefaultPageSize
	}
	if c.Cache.FreshFor <= 0 {
		c.Cache.FreshFor = Duration(DefaultFreshFor)
	}
	if c.Cache.EvictAfter <= 0 {
		c.Cache.EvictAfter = Duration(DefaultEvictAfter)
	}
	if c.API.Host == "" {
		c.API.Host = DefaultAPIHost
	}
	if c.API.Port == "" {
		c.API.Port = DefaultAPIPort
	}
	if c.Telemetry.SampleRate <= 0 {
		c.Telemetry.SampleRate = 1.0
	}
}

// Validate reports configuration a running client cannot work with.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	return nil
}
