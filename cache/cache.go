package cache

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-isogeo/core"
)

const keyPrefix = "go-isogeo::response::v1"

const DefaultTTL = 10 * time.Minute

type Config struct {
	TTL time.Duration
	// Service replaces the in-memory cache service built from TTL.
	Service repositorycache.CacheService
	Logger  core.Logger
}

// ResponseCache keeps successful GET responses of one client instance.
// Entries are dropped as a whole whenever the client writes.
type ResponseCache struct {
	service repositorycache.CacheService
	logger  core.Logger

	mu   sync.Mutex
	keys map[string]struct{}
	// generation grows on every Invalidate; a fetch that started in an
	// older generation must not leave its value behind.
	generation uint64
}

func New(cfg Config) (*ResponseCache, error) {
	service := cfg.Service
	if service == nil {
		config := repositorycache.DefaultConfig()
		config.TTL = cfg.TTL
		if config.TTL <= 0 {
			config.TTL = DefaultTTL
		}
		built, err := repositorycache.NewCacheService(config)
		if err != nil {
			return nil, fmt.Errorf("cache: new cache service: %w", err)
		}
		service = built
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	return &ResponseCache{
		service: service,
		logger:  logger,
		keys:    map[string]struct{}{},
	}, nil
}

// Key returns the cache key of a request. The url carries the language, so
// two languages never share an entry.
func Key(method, target string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return keyPrefix + "::" + method + "::" + strings.TrimSpace(target)
}

// GetOrFetch serves key from the cache or calls fetch. Failed fetches are
// not cached. Entries are scoped to the current generation, so a fetch that
// was in flight during Invalidate is neither served to later callers nor kept.
func (c *ResponseCache) GetOrFetch(
	ctx context.Context,
	key string,
	fetch func(ctx context.Context) (core.RawResponse, error),
) (core.RawResponse, error) {
	if c == nil {
		return fetch(ctx)
	}
	c.mu.Lock()
	started := c.generation
	scoped := fmt.Sprintf("%s::g%d", key, started)
	c.keys[scoped] = struct{}{}
	c.mu.Unlock()

	res, err := repositorycache.GetOrFetch(ctx, c.service, scoped, func(ctx context.Context) (core.RawResponse, error) {
		fetched, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return core.RawResponse{}, fetchErr
		}
		return cloneResponse(fetched), nil
	})
	if err != nil {
		c.forget(scoped)
		return core.RawResponse{}, err
	}
	if c.stale(started) {
		if err := c.service.Delete(ctx, scoped); err != nil {
			c.logger.Warn("stale response cache entry not dropped", "key", key, "error", err)
		}
	}
	return cloneResponse(res), nil
}

// Invalidate drops every entry stored so far.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	keys := make([]string, 0, len(c.keys))
	for key := range c.keys {
		keys = append(keys, key)
	}
	c.keys = map[string]struct{}{}
	c.generation++
	c.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := c.service.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(keys) > 0 {
		c.logger.Debug("response cache invalidated", "entries", len(keys))
	}
	return firstErr
}

func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func (c *ResponseCache) stale(started uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != started
}

func (c *ResponseCache) forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
}

func cloneResponse(res core.RawResponse) core.RawResponse {
	cloned := res
	cloned.Body = append([]byte(nil), res.Body...)
	cloned.Headers = res.Headers.Clone()
	return cloned
}
