// Package client provides the storefront CDN fetcher with retry,
// caching, stale fallback and batch fetching.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-cdn/pkg/cache"
	"github.com/Sternrassler/storefront-cdn/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the production CDN host.
const DefaultBaseURL = "https://cdn.storefront.example"

// maxErrorBody bounds how much of a non-2xx body is kept in error details.
const maxErrorBody = 4 << 10

// Fetcher is the main CDN client.
type Fetcher struct {
	httpClient *http.Client
	cache      *cache.Manager
	mirror     *cache.Mirror
	config     Config
	logger     zerolog.Logger
	group      singleflight.Group
}

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL is prepended to every endpoint
	BaseURL string

	// UserAgent header sent upstream
	UserAgent string

	// Timeout is the hard per-attempt request deadline
	Timeout time.Duration

	// Retry controls transport-level retries
	Retry RetryConfig

	// DefaultCache is applied when a request carries no cache policy
	DefaultCache cache.Config

	// MaxConcurrency caps parallel requests in a batch (0 = unlimited)
	MaxConcurrency int

	// Cache is the response cache (required)
	Cache *cache.Manager

	// Mirror is an optional Redis second level
	Mirror *cache.Mirror

	// HTTPClient overrides the transport (optional)
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration around manager.
func DefaultConfig(manager *cache.Manager) Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    "storefront-cdn/0.1.0",
		Timeout:      10 * time.Second,
		Retry:        DefaultRetryConfig(),
		DefaultCache: cache.DefaultConfig(),
		Cache:        manager,
	}
}

// Options control a single fetch.
type Options struct {
	// SkipCache disables both cache read and cache write
	SkipCache bool

	// Revalidate forces a network round-trip but still writes the result back
	Revalidate bool

	// CacheConfig overrides the default cache policy
	CacheConfig *cache.Config

	// Tags are added to the cache policy's tags
	Tags []string

	// Route labels metrics for this request, e.g. "/products/{slug}".
	// Defaults to the endpoint path.
	Route string

	// Validate checks a payload fetched from the network before it is
	// cached. A rejected payload is never stored and fails the fetch like
	// any other error, so a stale entry can still stand in for it.
	Validate func(json.RawMessage) error
}

// Response is the outcome of a successful fetch.
type Response struct {
	// Data is the unwrapped JSON payload
	Data json.RawMessage

	// FromCache is true when no network round-trip produced Data
	FromCache bool

	// Stale is true when Data is an expired entry served because the fetch failed
	Stale bool

	// Err is the failure that Stale data replaced
	Err error
}

// New creates a new CDN fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache manager is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.Retry.Attempts < 1 {
		return nil, fmt.Errorf("retry attempts must be >= 1 (got %d)", cfg.Retry.Attempts)
	}

	if cfg.DefaultCache.TTL <= 0 {
		cfg.DefaultCache.TTL = cache.DefaultTTL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Fetcher{
		httpClient: httpClient,
		cache:      cfg.Cache,
		mirror:     cfg.Mirror,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentFetcher),
	}, nil
}

// Fetch returns the payload for endpoint.
//
// Steps run strictly in order: cache lookup, network request (retried),
// envelope unwrap, validation, cache write. When the network stage fails and
// caching is on, an expired entry still inside its stale window is returned
// with Stale set instead of the error. A revalidation answered with 404
// drops the cached entry.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, opts Options) (*Response, error) {
	key, err := cache.KeyFromEndpoint(endpoint)
	if err != nil {
		return nil, &CDNFetchError{
			Code:     CodeUnknown,
			Message:  "invalid endpoint",
			Endpoint: endpoint,
			Err:      err,
		}
	}

	cacheKey := key.String()
	useCache := !opts.SkipCache
	readCache := useCache && !opts.Revalidate
	cfg := f.resolveCacheConfig(opts)
	route := opts.Route
	if route == "" {
		route = key.Endpoint
	}

	// Step 1: Check Cache
	if readCache {
		if data, ok := f.cache.Get(cacheKey); ok {
			f.logger.Debug().Str("cache_key", cacheKey).Msg("Cache hit")
			cdnRequestsTotal.WithLabelValues(route, "hit").Inc()
			return &Response{Data: data, FromCache: true}, nil
		}
		if resp := f.loadMirror(ctx, cacheKey, false); resp != nil {
			cdnRequestsTotal.WithLabelValues(route, "hit").Inc()
			return resp, nil
		}
	}

	// Step 2: Network round-trip, shared between concurrent callers
	data, shared, err := f.fetchShared(ctx, cacheKey, key, route)
	if err == nil && opts.Validate != nil {
		err = opts.Validate(data)
	}
	if err != nil {
		var fetchErr *CDNFetchError
		if errors.As(err, &fetchErr) {
			cdnErrorsTotal.WithLabelValues(string(fetchErr.Code)).Inc()
			if useCache && opts.Revalidate && fetchErr.HTTPStatus == http.StatusNotFound {
				f.forget(ctx, cacheKey)
			}
		}

		// Step 3: Stale fallback
		if readCache {
			if resp := f.staleFallback(ctx, cacheKey, err); resp != nil {
				cdnRequestsTotal.WithLabelValues(route, "stale").Inc()
				return resp, nil
			}
		}

		cdnRequestsTotal.WithLabelValues(route, "error").Inc()
		f.logger.Error().
			Err(err).
			Str("endpoint", key.Path()).
			Str("code", string(CodeOf(err))).
			Msg("CDN fetch failed")
		return nil, err
	}

	// Step 4: Update Cache on success
	if useCache {
		f.store(ctx, cacheKey, data, cfg)
	}

	cdnRequestsTotal.WithLabelValues(route, "miss").Inc()
	f.logger.Debug().
		Str("endpoint", key.Path()).
		Bool("shared", shared).
		Msg("CDN fetch complete")

	return &Response{Data: data}, nil
}

// fetchShared runs one network request per cache key no matter how many
// callers ask at once. The request is detached from the caller that started
// it; each caller stops waiting when its own ctx ends.
func (f *Fetcher) fetchShared(ctx context.Context, cacheKey string, key cache.Key, route string) (json.RawMessage, bool, error) {
	ch := f.group.DoChan(cacheKey, func() (any, error) {
		return f.fetchRemote(context.WithoutCancel(ctx), key, route)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.(json.RawMessage), res.Shared, nil
	case <-ctx.Done():
		fetchErr := &CDNFetchError{
			Code:     CodeUnknown,
			Message:  "request canceled",
			Endpoint: key.Path(),
			Err:      ctx.Err(),
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			fetchErr.Code = CodeTimeout
			fetchErr.Message = "gave up waiting for response"
		}
		return nil, false, fetchErr
	}
}

// fetchRemote performs the retried request and unwraps the envelope.
func (f *Fetcher) fetchRemote(ctx context.Context, key cache.Key, route string) (json.RawMessage, error) {
	url := f.config.BaseURL + key.Path()

	var payload json.RawMessage
	err := WithRetry(ctx, f.config.Retry, func(ctx context.Context) error {
		body, err := f.doRequest(ctx, url, key, route)
		if err != nil {
			if ctx.Err() != nil || !shouldRetry(err) {
				return Permanent(err)
			}
			f.logger.Warn().
				Err(err).
				Str("endpoint", key.Path()).
				Msg("CDN request attempt failed")
			return err
		}

		// Envelope failures are answers, not transient faults
		data, err := unwrapEnvelope(body)
		if err != nil {
			var fetchErr *CDNFetchError
			if errors.As(err, &fetchErr) {
				fetchErr.Endpoint = key.Path()
			}
			return Permanent(err)
		}

		payload = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// doRequest executes one GET with the per-attempt timeout and classifies
// failures.
func (f *Fetcher) doRequest(ctx context.Context, url string, key cache.Key, route string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &CDNFetchError{
			Code:     CodeUnknown,
			Message:  "create request",
			Endpoint: key.Path(),
			Err:      err,
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	startTime := time.Now()
	defer func() {
		cdnRequestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(attemptCtx, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		fetchErr := &CDNFetchError{
			Code:       CodeHTTP,
			HTTPStatus: resp.StatusCode,
			Message:    resp.Status,
			Endpoint:   key.Path(),
		}
		if len(snippet) > 0 {
			fetchErr.Details = map[string]any{"body": string(snippet)}
		}
		return nil, fetchErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(attemptCtx, key, err)
	}
	return body, nil
}

// classifyTransportError separates deadline expiry from other transport failures.
func classifyTransportError(attemptCtx context.Context, key cache.Key, err error) *CDNFetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &CDNFetchError{
			Code:     CodeTimeout,
			Message:  "request timed out",
			Endpoint: key.Path(),
			Err:      err,
		}
	}
	return &CDNFetchError{
		Code:     CodeNetwork,
		Message:  "request failed",
		Endpoint: key.Path(),
		Err:      err,
	}
}

// resolveCacheConfig merges the request policy over the defaults.
func (f *Fetcher) resolveCacheConfig(opts Options) cache.Config {
	cfg := f.config.DefaultCache
	if opts.CacheConfig != nil {
		override := *opts.CacheConfig
		if override.TTL > 0 {
			cfg.TTL = override.TTL
		}
		if override.StaleWhileRevalidate > 0 {
			cfg.StaleWhileRevalidate = override.StaleWhileRevalidate
		}
		cfg.Tags = override.Tags
	}
	return cfg.WithTags(opts.Tags...)
}

// store writes data to the cache and, if configured, the mirror.
func (f *Fetcher) store(ctx context.Context, cacheKey string, data json.RawMessage, cfg cache.Config) {
	f.cache.Set(cacheKey, data, cfg)

	if f.mirror == nil {
		return
	}
	entry, ok := f.cache.Entry(cacheKey)
	if !ok {
		return
	}
	if err := f.mirror.Save(ctx, cacheKey, &entry); err != nil {
		f.logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("Failed to mirror response")
	}
}

// forget drops cacheKey from memory and the mirror.
func (f *Fetcher) forget(ctx context.Context, cacheKey string) {
	f.cache.Delete(cacheKey)
	if f.mirror == nil {
		return
	}
	if err := f.mirror.Delete(ctx, cacheKey); err != nil {
		f.logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("Mirror delete failed")
	}
}

// loadMirror consults the Redis mirror. A fresh entry is promoted into
// memory. With allowStale, an expired entry inside its stale window is
// returned too.
func (f *Fetcher) loadMirror(ctx context.Context, cacheKey string, allowStale bool) *Response {
	if f.mirror == nil {
		return nil
	}

	entry, err := f.mirror.Load(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("Mirror load failed")
		}
		return nil
	}

	now := f.cache.Now()
	if !entry.IsExpired(now) {
		f.cache.Set(cacheKey, entry.Data, cache.Config{
			TTL:                  entry.Remaining(now),
			StaleWhileRevalidate: entry.StaleFor,
			Tags:                 entry.Tags,
		})
		f.logger.Debug().Str("cache_key", cacheKey).Msg("Mirror hit")
		return &Response{Data: entry.Data, FromCache: true}
	}

	if allowStale && entry.IsUsableStale(now) {
		return &Response{Data: entry.Data, FromCache: true, Stale: true}
	}
	return nil
}

// staleFallback returns an expired entry in place of err, if one is available.
func (f *Fetcher) staleFallback(ctx context.Context, cacheKey string, err error) *Response {
	var resp *Response
	if data, ok := f.cache.GetStale(cacheKey); ok {
		resp = &Response{Data: data, FromCache: true, Stale: true}
	} else if mirrored := f.loadMirror(ctx, cacheKey, true); mirrored != nil {
		resp = mirrored
		resp.Stale = true
	}
	if resp == nil {
		return nil
	}

	resp.Err = err
	f.logger.Warn().
		Err(err).
		Str("cache_key", cacheKey).
		Msg("Serving stale cache entry after fetch failure")
	return resp
}

// InvalidateCache drops every cached response carrying any of tags and
// returns how many in-memory entries were removed.
func (f *Fetcher) InvalidateCache(ctx context.Context, tags ...string) int {
	removed := 0
	for _, tag := range tags {
		removed += f.cache.InvalidateByTag(tag)
		if f.mirror != nil {
			if _, err := f.mirror.InvalidateTag(ctx, tag); err != nil {
				f.logger.Warn().Err(err).Str("tag", tag).Msg("Mirror invalidation failed")
			}
		}
	}

	f.logger.Info().
		Strs("tags", tags).
		Int("removed", removed).
		Msg("Cache invalidated")
	return removed
}

// Cache returns the cache manager.
func (f *Fetcher) Cache() *cache.Manager {
	return f.cache
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.httpClient.CloseIdleConnections()
	return nil
}
