package oneapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nebulark/oneapi/caches"
	"github.com/nebulark/oneapi/caches/memory"
	"github.com/nebulark/oneapi/caches/redis"
	"github.com/nebulark/oneapi/internal/config"
	"github.com/nebulark/oneapi/internal/metrics"
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/internal/ratelimit"
	"github.com/nebulark/oneapi/internal/tokenizer"
	"github.com/nebulark/oneapi/pkg/cache"
	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/pkg/types"
	"github.com/nebulark/oneapi/providers"
)

// Client is the unified entry point. It routes normalized requests to the
// provider named by the model id prefix, enforcing validation and local
// rate limits before any network call.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	providers       map[string]provider.Provider
	defaultProvider string
	limiter         *ratelimit.Limiter
	cache           cache.Cache
	httpClient      *http.Client
	logger          *slog.Logger
	config          *ClientConfig

	manager     *config.Manager
	watchCancel context.CancelFunc

	// inflight maps request ids to cancel functions so CancelInFlight can
	// abort every outstanding HTTP call.
	inflight   map[string]context.CancelFunc
	inflightMu sync.Mutex

	mu sync.RWMutex
}

// New creates a new OneAPI client with the given options.
//
// Example:
//
//	client, err := oneapi.New(
//	    oneapi.WithProvider(provider.Config{
//	        Name:   "anthropic",
//	        Type:   "anthropic",
//	        APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    }),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{
		providers: make(map[string]provider.Provider),
		config:    cfg,
		logger:    cfg.Logger,
		inflight:  make(map[string]context.CancelFunc),
	}

	c.httpClient = cfg.HTTPClient
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		}
	}

	if cfg.ConfigFile != "" {
		if err := c.loadConfigFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	for _, pcfg := range cfg.Providers {
		if err := c.addProviderFromConfig(pcfg); err != nil {
			return nil, fmt.Errorf("add provider %s: %w", pcfg.Name, err)
		}
	}
	for _, inst := range cfg.ProviderInstances {
		name := inst.Name
		if name == "" {
			name = inst.Provider.Name()
		}
		c.providers[name] = inst.Provider
	}
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	c.defaultProvider = cfg.DefaultProvider

	if cfg.RateLimitEnabled && c.limiter == nil {
		c.limiter = ratelimit.New(cfg.RateLimit)
	}
	if cfg.CacheEnabled && c.cache == nil {
		c.cache = cfg.Cache
	}

	c.logger.Info("oneapi client initialized",
		"providers", len(c.providers),
		"rate_limit", c.limiter != nil,
		"cache", c.cache != nil,
	)

	return c, nil
}

// loadConfigFile wires providers, limiter, and cache from a YAML file and
// starts watching it. Per-model rate-limit overrides are applied live on
// reload; provider and cache changes need a restart.
func (c *Client) loadConfigFile(path string) error {
	mgr, err := config.NewManager(path, c.logger)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	c.manager = mgr

	fileCfg := mgr.Get()
	for _, pcfg := range fileCfg.Providers {
		c.config.Providers = append(c.config.Providers, provider.Config{
			Name:                pcfg.Name,
			Type:                pcfg.Type,
			APIKey:              pcfg.APIKey,
			BaseURL:             pcfg.BaseURL,
			Models:              pcfg.Models,
			Headers:             pcfg.Headers,
			ModelTable:          pcfg.ModelTable,
			AllowPrivateBaseURL: pcfg.AllowPrivateBaseURL,
		})
	}

	if fileCfg.RateLimit.Enabled {
		c.limiter = ratelimit.New(fileCfg.RateLimit.LimiterConfig())
		mgr.OnChange(func(updated *config.Config) {
			for model, limit := range updated.RateLimit.Models {
				c.limiter.SetModelLimit(model, limit)
			}
		})
	}

	if fileCfg.Cache.Enabled {
		switch fileCfg.Cache.Type {
		case "redis":
			rc, err := caches.NewRedis(redis.Config{
				Addr:       fileCfg.Cache.RedisAddr,
				DefaultTTL: fileCfg.Cache.TTL,
			})
			if err != nil {
				return fmt.Errorf("init redis cache: %w", err)
			}
			c.cache = rc
		default:
			c.cache = caches.NewMemory(memory.Config{DefaultTTL: fileCfg.Cache.TTL})
		}
		c.config.CacheTTL = fileCfg.Cache.TTL
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	c.watchCancel = cancel
	if err := mgr.Watch(watchCtx); err != nil {
		cancel()
		return fmt.Errorf("watch config file: %w", err)
	}

	return nil
}

func (c *Client) addProviderFromConfig(cfg provider.Config) error {
	prov, err := providers.Create(cfg)
	if err != nil {
		return err
	}
	name := cfg.Name
	if name == "" {
		name = prov.Name()
	}
	c.providers[name] = prov
	c.logger.Info("provider registered", "name", name, "type", cfg.Type)
	return nil
}

// resolveProvider picks the provider named by the model id's prefix,
// falling back to the default provider for bare model names.
func (c *Client) resolveProvider(model string) (provider.Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix, _ := types.SplitProviderModel(model)
	if prefix != "" {
		if prov, ok := c.providers[prefix]; ok {
			return prov, nil
		}
	}
	if c.defaultProvider != "" {
		if prov, ok := c.providers[c.defaultProvider]; ok {
			return prov, nil
		}
	}
	if prefix == "" && len(c.providers) == 1 {
		for _, prov := range c.providers {
			return prov, nil
		}
	}
	return nil, errors.NewUnsupportedModelError(prefix, model)
}

// ChatCompletion sends a chat completion request. The pipeline is:
// validate, map the model id, consult the cache, wait for rate-limit
// capacity, then dispatch with retries.
func (c *Client) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	prov, err := c.resolveProvider(req.Model)
	if err != nil {
		return nil, err
	}
	if !prov.Capabilities().Chat {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "chat")
	}

	if err := prov.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := types.ValidateModelName(req.Model); err != nil {
		return nil, errors.NewInvalidRequestError(prov.Name(), req.Model, err.Error())
	}

	nativeModel, err := prov.ToProviderModel(req.Model)
	if err != nil {
		return nil, err
	}

	if resp := c.getFromCache(ctx, prov.Name(), req); resp != nil {
		return resp, nil
	}

	estimated := tokenizer.EstimatePromptTokens(req.Model, req)
	release, err := c.acquire(ctx, req.Model, estimated)
	if err != nil {
		metrics.RateLimitRejections.WithLabelValues(req.Model).Inc()
		return nil, err
	}
	defer release()

	nativeReq := *req
	nativeReq.Model = nativeModel
	nativeReq.Stream = false

	start := time.Now()
	resp, err := c.executeWithRetry(ctx, prov, &nativeReq)
	metrics.RequestDuration.WithLabelValues(prov.Name(), "chat").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "chat", "error").Inc()
		return nil, err
	}
	metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "chat", "success").Inc()

	c.normalizeResponse(prov, req.Model, resp)
	if resp.Usage != nil {
		metrics.RecordUsage(prov.Name(), req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	c.storeInCache(ctx, prov.Name(), req, resp)
	return resp, nil
}

// ChatCompletionStream sends a streaming chat completion request.
// Returns a StreamReader; the caller must drain it or call Close, either of
// which releases the underlying connection and the rate-limiter slot.
//
// Example:
//
//	stream, err := client.ChatCompletionStream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    chunk, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Choices[0].Delta.Content)
//	}
func (c *Client) ChatCompletionStream(ctx context.Context, req *types.ChatRequest) (*StreamReader, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	prov, err := c.resolveProvider(req.Model)
	if err != nil {
		return nil, err
	}
	caps := prov.Capabilities()
	if !caps.Chat || !caps.Streaming {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "streaming")
	}

	if err := prov.ValidateRequest(req); err != nil {
		return nil, err
	}

	nativeModel, err := prov.ToProviderModel(req.Model)
	if err != nil {
		return nil, err
	}

	estimated := tokenizer.EstimatePromptTokens(req.Model, req)
	release, err := c.acquire(ctx, req.Model, estimated)
	if err != nil {
		metrics.RateLimitRejections.WithLabelValues(req.Model).Inc()
		return nil, err
	}

	nativeReq := *req
	nativeReq.Model = nativeModel
	nativeReq.Stream = true

	reqCtx, done := c.track(ctx)
	httpReq, err := prov.BuildRequest(reqCtx, &nativeReq)
	if err != nil {
		done()
		release()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		done()
		release()
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "stream", "error").Inc()
		return nil, errors.NewStreamTransportError(prov.Name(), req.Model, err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		done()
		release()
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "stream", "error").Inc()
		return nil, prov.MapError(resp.StatusCode, body)
	}

	metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "stream", "success").Inc()
	onClose := func() {
		done()
		release()
	}
	return newStreamReader(resp.Body, prov, req.Model, c.logger, onClose), nil
}

// Embedding sends an embedding request. Providers whose capability table
// does not include embeddings are rejected before any network call.
func (c *Client) Embedding(ctx context.Context, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.NewInvalidRequestError("", req.Model, err.Error())
	}

	prov, err := c.resolveProvider(req.Model)
	if err != nil {
		return nil, err
	}
	if !prov.Capabilities().Embeddings {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "embeddings")
	}
	embedder, ok := prov.(provider.Embedder)
	if !ok {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "embeddings")
	}

	nativeModel, err := prov.ToProviderModel(req.Model)
	if err != nil {
		return nil, err
	}

	estimated := embeddingTokenEstimate(req)
	release, err := c.acquire(ctx, req.Model, estimated)
	if err != nil {
		metrics.RateLimitRejections.WithLabelValues(req.Model).Inc()
		return nil, err
	}
	defer release()

	nativeReq := *req
	nativeReq.Model = nativeModel

	start := time.Now()
	httpResp, err := c.doWithRetry(ctx, prov, func(ctx context.Context) (*http.Request, error) {
		return embedder.BuildEmbeddingRequest(ctx, &nativeReq)
	})
	metrics.RequestDuration.WithLabelValues(prov.Name(), "embedding").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "embedding", "error").Inc()
		return nil, err
	}
	defer httpResp.Body.Close()

	embResp, err := embedder.ParseEmbeddingResponse(httpResp)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "embedding", "error").Inc()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "embedding", "success").Inc()

	embResp.Model = prov.ToNormalizedModel(embResp.Model)
	return embResp, nil
}

// GenerateImage sends an image generation request.
func (c *Client) GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.ImageResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.NewInvalidRequestError("", req.Model, err.Error())
	}

	prov, err := c.resolveProvider(req.Model)
	if err != nil {
		return nil, err
	}
	if !prov.Capabilities().Images {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "image generation")
	}
	generator, ok := prov.(provider.ImageGenerator)
	if !ok {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "image generation")
	}

	nativeModel, err := prov.ToProviderModel(req.Model)
	if err != nil {
		return nil, err
	}

	release, err := c.acquire(ctx, req.Model, 0)
	if err != nil {
		metrics.RateLimitRejections.WithLabelValues(req.Model).Inc()
		return nil, err
	}
	defer release()

	nativeReq := *req
	nativeReq.Model = nativeModel

	httpResp, err := c.doWithRetry(ctx, prov, func(ctx context.Context) (*http.Request, error) {
		return generator.BuildImageRequest(ctx, &nativeReq)
	})
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "image", "error").Inc()
		return nil, err
	}
	defer httpResp.Body.Close()

	imgResp, err := generator.ParseImageResponse(httpResp)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "image", "error").Inc()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "image", "success").Inc()
	return imgResp, nil
}

// Transcribe sends an audio transcription request.
func (c *Client) Transcribe(ctx context.Context, req *types.TranscriptionRequest) (*types.TranscriptionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.NewInvalidRequestError("", req.Model, err.Error())
	}

	prov, err := c.resolveProvider(req.Model)
	if err != nil {
		return nil, err
	}
	if !prov.Capabilities().Audio {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "audio transcription")
	}
	transcriber, ok := prov.(provider.Transcriber)
	if !ok {
		return nil, errors.NewUnsupportedCapabilityError(prov.Name(), "audio transcription")
	}

	nativeModel, err := prov.ToProviderModel(req.Model)
	if err != nil {
		return nil, err
	}

	release, err := c.acquire(ctx, req.Model, 0)
	if err != nil {
		metrics.RateLimitRejections.WithLabelValues(req.Model).Inc()
		return nil, err
	}
	defer release()

	nativeReq := *req
	nativeReq.Model = nativeModel

	httpResp, err := c.doWithRetry(ctx, prov, func(ctx context.Context) (*http.Request, error) {
		return transcriber.BuildTranscriptionRequest(ctx, &nativeReq)
	})
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "transcription", "error").Inc()
		return nil, err
	}
	defer httpResp.Body.Close()

	trResp, err := transcriber.ParseTranscriptionResponse(httpResp)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "transcription", "error").Inc()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	metrics.RequestsTotal.WithLabelValues(prov.Name(), req.Model, "transcription", "success").Inc()
	return trResp, nil
}

// modelLister is satisfied by providers that expose their mapping table.
type modelLister interface {
	Mapper() *modelmap.Mapper
}

// ListModels returns the normalized ids of every model in the registered
// providers' mapping tables.
func (c *Client) ListModels(_ context.Context) ([]types.Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var models []types.Model
	seen := make(map[string]bool)

	for _, prov := range c.providers {
		lister, ok := prov.(modelLister)
		if !ok {
			continue
		}
		for _, id := range lister.Mapper().Normalized() {
			if !seen[id] {
				models = append(models, types.Model{
					ID:       id,
					Provider: prov.Name(),
					Object:   "model",
				})
				seen[id] = true
			}
		}
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// CancelInFlight aborts every outstanding HTTP call. Each aborted request
// releases its rate-limiter slot through its own error path.
func (c *Client) CancelInFlight() int {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	n := len(c.inflight)
	for id, cancel := range c.inflight {
		cancel()
		delete(c.inflight, id)
	}
	if n > 0 {
		c.logger.Info("cancelled in-flight requests", "count", n)
	}
	return n
}

// GetProviders returns the names of all registered providers.
func (c *Client) GetProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddProvider adds a provider at runtime.
func (c *Client) AddProvider(name string, prov provider.Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[name]; exists {
		return fmt.Errorf("provider %s already exists", name)
	}
	c.providers[name] = prov
	c.logger.Info("provider registered", "name", name)
	return nil
}

// RemoveProvider removes a provider at runtime.
func (c *Client) RemoveProvider(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[name]; !exists {
		return fmt.Errorf("provider %s not found", name)
	}
	delete(c.providers, name)
	c.logger.Info("provider removed", "name", name)
	return nil
}

// Close releases all resources held by the client.
func (c *Client) Close() error {
	c.CancelInFlight()
	if c.watchCancel != nil {
		c.watchCancel()
	}
	if c.manager != nil {
		_ = c.manager.Close()
	}
	if c.limiter != nil {
		c.limiter.Close()
	}
	if c.cache != nil {
		_ = c.cache.Close()
	}
	c.httpClient.CloseIdleConnections()
	c.logger.Info("oneapi client closed")
	return nil
}

// Internal request pipeline.

func checkRequest(req *types.ChatRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if req.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("messages is required")
	}
	return nil
}

// acquire waits for rate-limit capacity and returns a release function.
// Release is safe to call exactly once; the limiter clamps at zero anyway.
func (c *Client) acquire(ctx context.Context, model string, estimatedTokens int) (func(), error) {
	if c.limiter == nil {
		return func() {}, nil
	}
	if err := c.limiter.WaitForCapacity(ctx, model, estimatedTokens); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { c.limiter.Release(model) })
	}, nil
}

// track registers a cancel function under a fresh request id so
// CancelInFlight can abort the call, and returns a cleanup func.
func (c *Client) track(ctx context.Context) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	c.inflightMu.Lock()
	c.inflight[id] = cancel
	c.inflightMu.Unlock()

	return reqCtx, func() {
		c.inflightMu.Lock()
		delete(c.inflight, id)
		c.inflightMu.Unlock()
		cancel()
	}
}

func (c *Client) executeWithRetry(ctx context.Context, prov provider.Provider, req *types.ChatRequest) (*types.ChatResponse, error) {
	httpResp, err := c.doWithRetry(ctx, prov, func(ctx context.Context) (*http.Request, error) {
		return prov.BuildRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	resp, err := prov.ParseResponse(httpResp)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return resp, nil
}

// doWithRetry dispatches an HTTP request with exponential backoff on
// retryable errors. The caller owns the returned body.
func (c *Client) doWithRetry(ctx context.Context, prov provider.Provider, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
			c.logger.Debug("retrying request", "provider", prov.Name(), "attempt", attempt)
		}

		reqCtx, done := c.track(ctx)
		httpReq, err := build(reqCtx)
		if err != nil {
			done()
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			cancelled := reqCtx.Err() != nil
			done()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if cancelled {
				// Aborted by CancelInFlight, not by a transport fault.
				return nil, fmt.Errorf("request cancelled: %w", err)
			}
			lastErr = fmt.Errorf("execute request: %w", err)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			done()
			apiErr := prov.MapError(resp.StatusCode, body)
			lastErr = apiErr
			if e, ok := errors.AsAPIError(apiErr); ok && !e.Retryable {
				return nil, apiErr
			}
			continue
		}

		// The body outlives this call; untrack when the caller closes it.
		resp.Body = &bodyWithCleanup{ReadCloser: resp.Body, cleanup: done}
		return resp, nil
	}

	return nil, lastErr
}

// bodyWithCleanup runs a cleanup hook when the response body is closed.
type bodyWithCleanup struct {
	io.ReadCloser
	cleanup func()
	once    sync.Once
}

func (b *bodyWithCleanup) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cleanup)
	return err
}

// backoff computes the delay before the given retry attempt, applying the
// exponential schedule, the cap, and jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryBackoff * time.Duration(1<<(attempt-1))
	if c.config.RetryMaxBackoff > 0 && d > c.config.RetryMaxBackoff {
		d = c.config.RetryMaxBackoff
	}
	if c.config.RetryJitter > 0 {
		f := 1 + c.config.RetryJitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * f)
	}
	return d
}

// normalizeResponse maps the vendor model name back to the normalized id
// and recomputes usage totals.
func (c *Client) normalizeResponse(prov provider.Provider, requestedModel string, resp *types.ChatResponse) {
	if resp.Model != "" {
		resp.Model = prov.ToNormalizedModel(resp.Model)
	} else {
		resp.Model = requestedModel
	}
	if resp.Usage != nil {
		resp.Usage.Recompute()
	}
}

func (c *Client) cacheKey(providerName string, req *types.ChatRequest) (string, bool) {
	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return "", false
	}
	var tools json.RawMessage
	if len(req.Tools) > 0 {
		tools, _ = json.Marshal(req.Tools)
	}
	return cache.Key(cache.KeyParams{
		Provider:    providerName,
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Tools:       tools,
	}), true
}

func (c *Client) getFromCache(ctx context.Context, providerName string, req *types.ChatRequest) *types.ChatResponse {
	if c.cache == nil || req.Stream {
		return nil
	}

	key, ok := c.cacheKey(providerName, req)
	if !ok {
		return nil
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil
	}

	var resp types.ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}
	c.logger.Debug("cache hit", "model", req.Model)
	return &resp
}

func (c *Client) storeInCache(ctx context.Context, providerName string, req *types.ChatRequest, resp *types.ChatResponse) {
	if c.cache == nil || req.Stream {
		return
	}

	key, ok := c.cacheKey(providerName, req)
	if !ok {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL); err != nil {
		c.logger.Debug("cache store failed", "error", err)
	}
}

func embeddingTokenEstimate(req *types.EmbeddingRequest) int {
	if req.Input == nil {
		return 0
	}
	total := 0
	if req.Input.Text != nil {
		total += tokenizer.CountTextTokens(req.Model, *req.Input.Text)
	}
	for _, text := range req.Input.Texts {
		total += tokenizer.CountTextTokens(req.Model, text)
	}
	return total
}
