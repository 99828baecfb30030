// Package envloader loads client configuration from environment variables
// with the TELESCAN_ prefix, e.g. TELESCAN_SERVICE_BASE_URL.
package envloader

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/telescan/telescan/internal/config"
)

// EnvLoader reads configuration from the process environment via viper. It
// implements the Loader interface so the environment can stand in for a
// config file in containerized deployments.
type EnvLoader struct {
	prefix string
}

var _ config.Loader = (*EnvLoader)(nil)

// NewEnvLoader creates a loader bound to the TELESCAN_ prefix.
func NewEnvLoader() *EnvLoader {
	return &EnvLoader{prefix: "telescan"}
}

// Load builds the configuration from environment variables, applies
// defaults, and validates the result.
func (l *EnvLoader) Load(ctx context.Context) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(l.prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Binding is explicit; AutomaticEnv alone does not enumerate keys.
	keys := []string{
		"service.base_url", "service.auth_token", "service.timeout",
		"service.rate_limit", "service.rate_burst",
		"jobs.poll_interval", "jobs.max_items",
		"cache.page_size", "cache.fresh_for", "cache.evict_after",
		"api.host", "api.port", "api.cors_origins",
		"telemetry.enabled", "telemetry.endpoint", "telemetry.sample_rate",
		"telemetry.environment",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env key %s: %w", key, err)
		}
	}

	cfg := &config.Config{
		Service: config.ServiceConfig{
			BaseURL:   v.GetString("service.base_url"),
			AuthToken: v.GetString("service.auth_token"),
			Timeout:   config.Duration(v.GetDuration("service.timeout")),
			RateLimit: v.GetFloat64("service.rate_limit"),
			RateBurst: v.GetInt("service.rate_burst"),
		},
		Jobs: config.JobsConfig{
			PollInterval: config.Duration(v.GetDuration("jobs.poll_interval")),
			MaxItems:     v.GetInt("jobs.max_items"),
		},
		Cache: config.CacheConfig{
			PageSize:   v.GetInt("cache.page_size"),
			FreshFor:   config.Duration(v.GetDuration("cache.fresh_for")),
			EvictAfter: config.Duration(v.GetDuration("cache.evict_after")),
		},
		API: config.APIConfig{
			Host:        v.GetString("api.host"),
			Port:        v.GetString("api.port"),
			CORSOrigins: splitList(v.GetString("api.cors_origins")),
		},
		Telemetry: config.TelemetryConfig{
			Enabled:     v.GetBool("telemetry.enabled"),
			Endpoint:    v.GetString("telemetry.endpoint"),
			SampleRate:  v.GetFloat64("telemetry.sample_rate"),
			Environment: v.GetString("telemetry.environment"),
		},
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
