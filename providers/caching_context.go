package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/notekiln/forge/core"
)

// CachingContextProvider wraps a ContextProvider with a context_id-keyed
// cache, backed by any core.Memory implementation (the in-process
// MemoryStore for tests and single-process deployments, RedisClient for a
// shared one). A miss builds fresh context and populates the cache; a hit
// short-circuits the wrapped provider entirely.
type CachingContextProvider struct {
	inner     ContextProvider
	cache     core.Memory
	namespace string
	ttl       time.Duration // 0 falls back to core.DefaultCacheTTL
	logger    core.Logger
}

// NewCachingContextProvider wraps inner with cache, namespacing keys under
// namespace (e.g. "forge:context") to avoid collisions with other Memory
// consumers sharing the same backend. ttl of 0 uses core.DefaultCacheTTL.
func NewCachingContextProvider(inner ContextProvider, cache core.Memory, namespace string, ttl time.Duration, logger core.Logger) *CachingContextProvider {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/providers")
	}
	if ttl <= 0 {
		ttl = core.DefaultCacheTTL
	}
	return &CachingContextProvider{inner: inner, cache: cache, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *CachingContextProvider) key(contextID string) string {
	return fmt.Sprintf("%s:%s", c.namespace, contextID)
}

// BuildContext returns the cached assembly for opts.ContextID when present;
// otherwise it builds via the wrapped provider and caches the result. An
// empty ContextID always bypasses the cache, since there is nothing stable
// to key it by.
func (c *CachingContextProvider) BuildContext(ctx context.Context, notes string, opts ContextOptions) (BuiltContext, error) {
	if opts.ContextID == "" || c.cache == nil {
		return c.inner.BuildContext(ctx, notes, opts)
	}

	key := c.key(opts.ContextID)
	if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
		return BuiltContext{Assembled: cached, FromCache: true}, nil
	}

	built, err := c.inner.BuildContext(ctx, notes, opts)
	if err != nil {
		return BuiltContext{}, err
	}

	if err := c.cache.Set(ctx, key, built.Assembled, c.ttl); err != nil {
		c.logger.Warn("caching context provider: failed to populate cache", map[string]interface{}{
			"context_id": opts.ContextID,
			"error":      err.Error(),
		})
	}
	return built, nil
}
