package oneapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nebulark/oneapi/internal/ratelimit"
	"github.com/nebulark/oneapi/pkg/cache"
	"github.com/nebulark/oneapi/pkg/provider"
)

// ClientConfig holds all configuration for the OneAPI client.
type ClientConfig struct {
	// Providers configuration
	Providers []provider.Config

	// Custom provider instances (for advanced use)
	ProviderInstances []providerInstance

	// DefaultProvider handles model ids without a provider prefix.
	DefaultProvider string

	// Retry
	RetryCount      int
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	RetryJitter     float64

	// Caching
	CacheEnabled bool
	Cache        cache.Cache
	CacheTTL     time.Duration

	// Rate limiting
	RateLimitEnabled bool
	RateLimit        ratelimit.Config

	// ConfigFile enables YAML configuration with hot reload.
	ConfigFile string

	// HTTP
	Timeout    time.Duration
	HTTPClient *http.Client

	// Logging
	Logger *slog.Logger
}

// providerInstance holds a pre-configured provider under a registration name.
type providerInstance struct {
	Name     string
	Provider provider.Provider
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		RetryCount:       3,
		RetryBackoff:     time.Second,
		RetryMaxBackoff:  5 * time.Second,
		RetryJitter:      0.2,
		CacheTTL:         time.Hour,
		RateLimitEnabled: true,
		Timeout:          30 * time.Second,
		Logger:           slog.Default(),
	}
}

// WithProvider adds a provider configuration. The provider is created
// automatically based on the Type field.
//
// Example:
//
//	oneapi.WithProvider(provider.Config{
//	    Name:   "openai",
//	    Type:   "openai",
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
func WithProvider(cfg provider.Config) Option {
	return func(c *ClientConfig) {
		c.Providers = append(c.Providers, cfg)
	}
}

// WithProviderInstance adds a pre-configured provider instance. Use this
// when you need configuration beyond what provider.Config offers.
//
// Example:
//
//	p := anthropic.New(
//	    anthropic.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
//	    anthropic.WithAPIVersion("2023-06-01"),
//	)
//	oneapi.WithProviderInstance("anthropic", p)
func WithProviderInstance(name string, prov provider.Provider) Option {
	return func(c *ClientConfig) {
		c.ProviderInstances = append(c.ProviderInstances, providerInstance{
			Name:     name,
			Provider: prov,
		})
	}
}

// WithDefaultProvider routes model ids without a "provider/" prefix to the
// named provider.
func WithDefaultProvider(name string) Option {
	return func(c *ClientConfig) {
		c.DefaultProvider = name
	}
}

// WithRetry configures retry behavior.
// count: number of retry attempts (0 = no retries)
// backoff: initial backoff duration (exponential backoff is applied)
func WithRetry(count int, backoff time.Duration) Option {
	return func(c *ClientConfig) {
		c.RetryCount = count
		c.RetryBackoff = backoff
	}
}

// WithRetryMaxBackoff sets the maximum backoff duration for retries.
// Use 0 to disable the cap.
func WithRetryMaxBackoff(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.RetryMaxBackoff = d
	}
}

// WithRetryJitter sets the jitter ratio for retries (0.0 - 1.0).
func WithRetryJitter(jitter float64) Option {
	return func(c *ClientConfig) {
		c.RetryJitter = jitter
	}
}

// WithCache enables response caching with the given implementation.
//
// Example:
//
//	oneapi.WithCache(caches.NewMemoryDefault())
func WithCache(cc cache.Cache) Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = true
		c.Cache = cc
	}
}

// WithCacheTTL sets the TTL for cached responses.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.CacheTTL = ttl
	}
}

// WithRateLimit configures the local rate limiter.
//
// Example:
//
//	oneapi.WithRateLimit(ratelimit.Config{
//	    MaxConcurrent:     20,
//	    RequestsPerMinute: 300,
//	    TokensPerMinute:   500000,
//	})
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(c *ClientConfig) {
		c.RateLimitEnabled = true
		c.RateLimit = cfg
	}
}

// WithoutRateLimit disables the local rate limiter entirely.
func WithoutRateLimit() Option {
	return func(c *ClientConfig) {
		c.RateLimitEnabled = false
	}
}

// WithConfigFile loads providers, rate limits, and cache settings from a
// YAML file and watches it for changes. Per-model rate-limit overrides are
// applied live on reload.
func WithConfigFile(path string) Option {
	return func(c *ClientConfig) {
		c.ConfigFile = path
	}
}

// WithTimeout sets the HTTP request timeout.
// This applies to all provider API calls.
func WithTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = d
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ClientConfig) {
		c.HTTPClient = hc
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}
