// Package ratelimit implements a fixed-window request/token budget limiter
// with a global concurrency cap and per-model overrides.
//
// Windows are coarse by design: one background ticker clears every scope's
// counters in lockstep each interval, rather than rolling each key's window
// from its first request. Burst-then-silence patterns around window
// boundaries are an accepted property of this scheme, not a bug.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/types"
)

// Defaults for limiter configuration.
const (
	DefaultWindow                = time.Minute
	DefaultMaxConcurrent         = 10
	DefaultRequestsPerMinute     = 60
	DefaultTokensPerMinute       = 100000
	DefaultThinkingTokenFactor   = 1.3
	DefaultThinkingRequestFactor = 1.5
)

// ModelLimit overrides the global per-minute budgets for one model.
type ModelLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
}

// Config holds limiter configuration.
type Config struct {
	// MaxConcurrent caps in-flight requests across all models.
	MaxConcurrent int
	// RequestsPerMinute and TokensPerMinute are the global per-window
	// budgets, also used as the fallback for models without an override.
	RequestsPerMinute int
	TokensPerMinute   int
	// Window is the reset interval. All scopes reset together.
	Window time.Duration
	// ModelLimits holds per-model budget overrides, keyed by model id.
	ModelLimits map[string]ModelLimit
	// ThinkingTokenFactor multiplies token estimates for thinking-mode
	// models (they are more expensive to serve).
	ThinkingTokenFactor float64
	// ThinkingRequestFactor divides the request and token ceilings for
	// thinking-mode models (the vendor backend is slower for these).
	ThinkingRequestFactor float64
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.TokensPerMinute <= 0 {
		c.TokensPerMinute = DefaultTokensPerMinute
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.ThinkingTokenFactor <= 0 {
		c.ThinkingTokenFactor = DefaultThinkingTokenFactor
	}
	if c.ThinkingRequestFactor <= 0 {
		c.ThinkingRequestFactor = DefaultThinkingRequestFactor
	}
	return c
}

// window tracks budget consumption for one scope within the current window.
type window struct {
	requests  int
	tokens    int
	active    int
	lastReset time.Time
}

// Limiter enforces the global and per-model budgets.
// It is safe for concurrent use; all counter mutation happens under one
// mutex to preserve check-then-increment atomicity.
type Limiter struct {
	mu          sync.Mutex
	cfg         Config
	global      window
	models      map[string]*window
	windowStart time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Limiter and starts its background reset ticker.
// Call Close to stop the ticker.
func New(cfg Config) *Limiter {
	now := time.Now()
	l := &Limiter{
		cfg:         cfg.withDefaults(),
		models:      make(map[string]*window),
		global:      window{lastReset: now},
		windowStart: now,
		stop:        make(chan struct{}),
	}
	go l.resetLoop()
	return l
}

// resetLoop clears every scope's counters each window, in lockstep.
func (l *Limiter) resetLoop() {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.ResetWindows()
		case <-l.stop:
			return
		}
	}
}

// ResetWindows clears request and token counts for all scopes at once.
// Active-request counts are concurrency state, not window state, and are
// left untouched.
func (l *Limiter) ResetWindows() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.windowStart = now
	l.global.requests = 0
	l.global.tokens = 0
	l.global.lastReset = now
	for _, w := range l.models {
		w.requests = 0
		w.tokens = 0
		w.lastReset = now
	}
}

// Close stops the background reset ticker.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// SetModelLimit installs or replaces a per-model budget override.
// Used by configuration hot-reload.
func (l *Limiter) SetModelLimit(model string, limit ModelLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.ModelLimits == nil {
		l.cfg.ModelLimits = make(map[string]ModelLimit)
	}
	l.cfg.ModelLimits[model] = limit
}

// modelBudget resolves the effective per-window budgets for a model,
// falling back to the global defaults, then applying the thinking-mode
// divisor when the model runs in thinking mode.
func (l *Limiter) modelBudget(model string) (rpm, tpm int) {
	rpm = l.cfg.RequestsPerMinute
	tpm = l.cfg.TokensPerMinute
	if limit, ok := l.cfg.ModelLimits[types.BaseModel(model)]; ok {
		if limit.RequestsPerMinute > 0 {
			rpm = limit.RequestsPerMinute
		}
		if limit.TokensPerMinute > 0 {
			tpm = limit.TokensPerMinute
		}
	}
	if types.IsThinkingModel(model) {
		rpm = int(float64(rpm) / l.cfg.ThinkingRequestFactor)
		tpm = int(float64(tpm) / l.cfg.ThinkingRequestFactor)
		if rpm < 1 {
			rpm = 1
		}
		if tpm < 1 {
			tpm = 1
		}
	}
	return rpm, tpm
}

// effectiveTokens applies the thinking-mode token multiplier to an estimate.
func (l *Limiter) effectiveTokens(model string, estimated int) int {
	if types.IsThinkingModel(model) {
		return int(float64(estimated) * l.cfg.ThinkingTokenFactor)
	}
	return estimated
}

// modelWindow returns the model's window record, creating it lazily on
// first use.
func (l *Limiter) modelWindow(model string) *window {
	key := types.BaseModel(model)
	w, ok := l.models[key]
	if !ok {
		w = &window{lastReset: l.windowStart}
		l.models[key] = w
	}
	return w
}

// Acquire reserves capacity for one request against the model's budgets.
// It checks, in order: the global concurrency cap, the global per-minute
// budgets, then the model's per-minute budgets. On failure no counter is
// mutated. Every successful Acquire must be paired with exactly one Release.
func (l *Limiter) Acquire(model string, estimatedTokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquireLocked(model, estimatedTokens)
}

func (l *Limiter) acquireLocked(model string, estimatedTokens int) error {
	tokens := l.effectiveTokens(model, estimatedTokens)

	if l.global.active >= l.cfg.MaxConcurrent {
		return errors.NewRateLimitExceededError(model,
			fmt.Sprintf("concurrent request limit reached (%d)", l.cfg.MaxConcurrent))
	}
	if l.global.requests+1 > l.cfg.RequestsPerMinute {
		return errors.NewRateLimitExceededError(model,
			fmt.Sprintf("global request budget exhausted (%d/min)", l.cfg.RequestsPerMinute))
	}
	if l.global.tokens+tokens > l.cfg.TokensPerMinute {
		return errors.NewRateLimitExceededError(model,
			fmt.Sprintf("global token budget exhausted (%d/min)", l.cfg.TokensPerMinute))
	}

	rpm, tpm := l.modelBudget(model)
	w := l.modelWindow(model)
	if w.requests+1 > rpm {
		return errors.NewRateLimitExceededError(model,
			fmt.Sprintf("model request budget exhausted (%d/min)", rpm))
	}
	if w.tokens+tokens > tpm {
		return errors.NewRateLimitExceededError(model,
			fmt.Sprintf("model token budget exhausted (%d/min)", tpm))
	}

	l.global.requests++
	l.global.tokens += tokens
	l.global.active++
	w.requests++
	w.tokens += tokens
	w.active++
	return nil
}

// Release returns a concurrency slot taken by Acquire. Calling it more
// times than matching Acquire calls clamps the counters at zero.
func (l *Limiter) Release(model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.global.active > 0 {
		l.global.active--
	}
	if w, ok := l.models[types.BaseModel(model)]; ok && w.active > 0 {
		w.active--
	}
}

// WaitForCapacity blocks until Acquire succeeds or ctx is done. Between
// attempts it sleeps until the current window resets, since counters can
// only free up at a reset boundary (concurrency slots may free earlier, so
// the wait is capped at the window remainder, not longer).
func (l *Limiter) WaitForCapacity(ctx context.Context, model string, estimatedTokens int) error {
	for {
		l.mu.Lock()
		err := l.acquireLocked(model, estimatedTokens)
		delay := l.windowStart.Add(l.cfg.Window).Sub(time.Now())
		l.mu.Unlock()

		if err == nil {
			return nil
		}
		if !errors.IsType(err, errors.TypeRateLimitExceeded) {
			return err
		}
		if delay <= 0 {
			delay = 10 * time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ActiveRequests reports the global in-flight request count.
func (l *Limiter) ActiveRequests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global.active
}

// ModelActiveRequests reports the in-flight request count for one model.
func (l *Limiter) ModelActiveRequests(model string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.models[types.BaseModel(model)]; ok {
		return w.active
	}
	return 0
}

// Snapshot reports the current window counts for a model scope.
// Intended for tests and diagnostics.
func (l *Limiter) Snapshot(model string) (requests, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.models[types.BaseModel(model)]; ok {
		return w.requests, w.tokens
	}
	return 0, 0
}

// GlobalSnapshot reports the current global window counts.
func (l *Limiter) GlobalSnapshot() (requests, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global.requests, l.global.tokens
}
