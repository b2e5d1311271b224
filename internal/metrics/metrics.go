// Package metrics provides Prometheus metrics for the OneAPI client.
// It tracks request outcomes, token usage, and local rate limiter rejections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oneapi"

var (
	// RequestsTotal counts completed requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of provider requests",
		},
		[]string{"provider", "model", "operation", "status"},
	)

	// TokensTotal counts prompt and completion tokens from vendor usage.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Total tokens consumed, split by direction",
		},
		[]string{"provider", "model", "direction"},
	)

	// RateLimitRejections counts local limiter rejections before dispatch.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the local rate limiter",
		},
		[]string{"model"},
	)

	// RequestDuration observes end-to-end request latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "operation"},
	)
)

// RecordUsage records token usage counters for a completed request.
func RecordUsage(provider, model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		TokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		TokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}
