// Package core's Redis client backs the providers package's context cache:
// a Memory implementation keyed by context_id so a slow ContextProvider
// lookup is paid once per id rather than once per retry-ladder rung.
//
// Usage:
//
//	client, err := NewRedisClient(RedisClientOptions{
//	    RedisURL:  "redis://localhost:6379",
//	    Namespace: "forge:context",
//	})
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient wraps go-redis with namespacing and implements Memory so it
// can be handed directly to anything expecting a keyed TTL store.
type RedisClient struct {
	client    *redis.Client
	namespace string
	logger    Logger
}

// RedisClientOptions configures the Redis client.
type RedisClientOptions struct {
	RedisURL  string
	Namespace string // key namespace, e.g. "forge:context"
	Logger    Logger // optional
}

// NewRedisClient creates a new Redis client with the given options, verifying
// connectivity with a Ping before returning.
func NewRedisClient(opts RedisClientOptions) (*RedisClient, error) {
	if opts.Logger != nil {
		opts.Logger.Debug("initializing redis client", map[string]interface{}{
			"redis_url": opts.RedisURL,
			"namespace": opts.Namespace,
		})
	}

	if opts.RedisURL == "" {
		if opts.Logger != nil {
			opts.Logger.Error("failed to initialize redis client", map[string]interface{}{
				"error": "redis URL is required",
			})
		}
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Error("failed to parse redis URL", map[string]interface{}{
				"error":     err,
				"redis_url": opts.RedisURL,
			})
		}
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if opts.Logger != nil {
			opts.Logger.Error("failed to connect to redis", map[string]interface{}{
				"error":     err,
				"namespace": opts.Namespace,
			})
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	rc := &RedisClient{
		client:    client,
		namespace: opts.Namespace,
		logger:    opts.Logger,
	}

	if rc.logger != nil {
		rc.logger.Info("redis client connected", map[string]interface{}{
			"namespace": opts.Namespace,
		})
	}

	return rc, nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r.logger != nil {
		r.logger.Info("closing redis client connection", map[string]interface{}{
			"namespace": r.namespace,
		})
	}

	err := r.client.Close()
	if err != nil && r.logger != nil {
		r.logger.Error("failed to close redis client", map[string]interface{}{
			"error":     err,
			"namespace": r.namespace,
		})
	}
	return err
}

// GetNamespace returns the namespace being used.
func (r *RedisClient) GetNamespace() string {
	return r.namespace
}

func (r *RedisClient) formatKey(key string) string {
	if r.namespace != "" {
		return fmt.Sprintf("%s:%s", r.namespace, key)
	}
	return key
}

// Get retrieves a value, returning "" with no error on a cache miss so
// callers can treat "absent" and "empty" the same way a ContextProvider
// cache entry would.
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.formatKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return val, nil
}

// Set stores a value with optional TTL. ttl <= 0 stores without expiry.
func (r *RedisClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.formatKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.formatKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Exists reports whether a key is present and unexpired.
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return n > 0, nil
}

// HealthCheck verifies Redis connectivity.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r.logger != nil {
		r.logger.DebugWithContext(ctx, "performing redis health check", map[string]interface{}{
			"namespace": r.namespace,
		})
	}
	err := r.client.Ping(ctx).Err()
	if err != nil {
		if r.logger != nil {
			r.logger.ErrorWithContext(ctx, "redis health check failed", map[string]interface{}{
				"error":     err,
				"namespace": r.namespace,
			})
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

var _ Memory = (*RedisClient)(nil)
