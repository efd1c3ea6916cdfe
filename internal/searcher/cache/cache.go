// Package cache provides a Redis-backed result cache for query operations.
// Keys carry the snapshot version, so results computed against an older
// corpus are never served after a reload, even before Invalidate runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	pkgredis "github.com/echomindr/echomindr/pkg/redis"
	"github.com/echomindr/echomindr/pkg/resilience"
)

const keyPrefix = "echomindr:"

// Backend is the subset of the Redis client the cache needs. A miss is
// reported as an error satisfying pkgredis.IsNilError.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cached operation result.
type Key struct {
	Op      string
	Version uint64
	Params  string
}

func (k Key) String() string {
	hash := sha256.Sum256([]byte(k.Params))
	return fmt.Sprintf("%s%s:v%d:%x", keyPrefix, k.Op, k.Version, hash[:16])
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *QueryCache {
	return NewWithBreaker(backend, ttl, resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	})
}

// NewWithBreaker is New with an explicit breaker configuration.
func NewWithBreaker(backend Backend, ttl time.Duration, cb resilience.CircuitBreakerConfig) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", cb),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Breaker exposes the circuit breaker guarding the backend.
func (c *QueryCache) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *QueryCache) get(ctx context.Context, key string, dst any) bool {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.errors.Add(1)
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return false
	}
	if data == "" {
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return true
}

func (c *QueryCache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.errors.Add(1)
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for key or runs compute, stores its
// result and returns it. Concurrent callers with the same key share one
// compute call. Backend failures degrade to computing without the cache; a
// nil cache always computes. The boolean reports a cache hit.
func GetOrCompute[T any](ctx context.Context, c *QueryCache, key Key, compute func() (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	k := key.String()
	var cached T
	if c.get(ctx, k, &cached) {
		return cached, true, nil
	}
	val, err, _ := c.group.Do(k, func() (interface{}, error) {
		var again T
		if c.get(ctx, k, &again) {
			return again, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, k, result)
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate deletes every key written by the cache.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

type Stats struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
	Breaker string  `json:"breaker"`
}

func (c *QueryCache) Stats() Stats {
	if c == nil {
		return Stats{Breaker: resilience.StateClosed.String()}
	}
	hits, misses := c.hits.Load(), c.misses.Load()
	st := Stats{
		Enabled: true,
		Hits:    hits,
		Misses:  misses,
		Errors:  c.errors.Load(),
		Breaker: c.breaker.GetState().String(),
	}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}
