// Package config provides configuration loading for the OneAPI client:
// a YAML file with ${VAR} environment expansion, plus environment-variable
// discovery of provider API keys, with hot-reload support for rate-limit
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nebulark/oneapi/internal/ratelimit"
)

// Config represents the complete client configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Cache     CacheConfig      `yaml:"cache"`
	Logging   LoggingConfig    `yaml:"logging"`
	Timeout   time.Duration    `yaml:"timeout"`
}

// ProviderConfig defines a single provider entry.
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Models  []string          `yaml:"models"`
	Headers map[string]string `yaml:"headers"`
	// AllowPrivateBaseURL permits loopback and private-range base_url hosts.
	AllowPrivateBaseURL bool `yaml:"allow_private_base_url"`
	// ModelTable overrides the provider's built-in model mapping table.
	ModelTable map[string]string `yaml:"model_table"`
}

// RateLimitConfig defines local rate limiting parameters.
type RateLimitConfig struct {
	Enabled               bool                             `yaml:"enabled"`
	MaxConcurrent         int                              `yaml:"max_concurrent"`
	RequestsPerMinute     int                              `yaml:"requests_per_minute"`
	TokensPerMinute       int                              `yaml:"tokens_per_minute"`
	ThinkingTokenFactor   float64                          `yaml:"thinking_token_factor"`
	ThinkingRequestFactor float64                          `yaml:"thinking_request_factor"`
	Models                map[string]ratelimit.ModelLimit `yaml:"models"`
}

// LimiterConfig converts the YAML shape into a limiter configuration.
func (c RateLimitConfig) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxConcurrent:         c.MaxConcurrent,
		RequestsPerMinute:     c.RequestsPerMinute,
		TokensPerMinute:       c.TokensPerMinute,
		ModelLimits:           c.Models,
		ThinkingTokenFactor:   c.ThinkingTokenFactor,
		ThinkingRequestFactor: c.ThinkingRequestFactor,
	}
}

// CacheConfig defines response caching parameters.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Type      string        `yaml:"type"` // memory, redis
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			Enabled:           true,
			MaxConcurrent:     ratelimit.DefaultMaxConcurrent,
			RequestsPerMinute: ratelimit.DefaultRequestsPerMinute,
			TokensPerMinute:   ratelimit.DefaultTokensPerMinute,
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Timeout: 30 * time.Second,
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate performs basic sanity checks on the configuration.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if p.Type == "" {
			return fmt.Errorf("provider %q: type is required", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if c.RateLimit.MaxConcurrent < 0 {
		return fmt.Errorf("rate_limit.max_concurrent must not be negative")
	}
	return nil
}

// envKeys maps provider types to their conventional environment variables.
var envKeys = map[string]struct{ key, baseURL string }{
	"openai":     {"OPENAI_API_KEY", "OPENAI_BASE_URL"},
	"anthropic":  {"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	"gemini":     {"GEMINI_API_KEY", "GEMINI_BASE_URL"},
	"mistral":    {"MISTRAL_API_KEY", "MISTRAL_BASE_URL"},
	"together":   {"TOGETHER_API_KEY", "TOGETHER_BASE_URL"},
	"openrouter": {"OPENROUTER_API_KEY", "OPENROUTER_BASE_URL"},
}

// FromEnv builds provider entries for every provider whose API key is set
// in the environment. Base URL overrides are picked up when present.
func FromEnv() []ProviderConfig {
	var providers []ProviderConfig
	for typ, env := range envKeys {
		key := os.Getenv(env.key)
		if key == "" {
			continue
		}
		providers = append(providers, ProviderConfig{
			Name:    typ,
			Type:    typ,
			APIKey:  key,
			BaseURL: os.Getenv(env.baseURL),
		})
	}
	return providers
}
