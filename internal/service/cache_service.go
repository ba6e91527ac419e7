package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

// cacheBackend is the raw cache the decorator wraps.
type cacheBackend interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InstrumentedCache wraps a cache backend and feeds hit/miss counters into the
// metrics service. Errors pass through unchanged so callers keep distinguishing
// a miss from a transport failure.
type InstrumentedCache struct {
	inner   cacheBackend
	metrics *MetricsService
	logger  *zap.Logger
}

// NewInstrumentedCache constructs the decorator.
func NewInstrumentedCache(inner cacheBackend, metrics *MetricsService, logger *zap.Logger) *InstrumentedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedCache{inner: inner, metrics: metrics, logger: logger}
}

// Get loads a cached entry, recording a hit or miss.
func (c *InstrumentedCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.inner.Get(ctx, key, dest)
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(err == nil)
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Set stores the value in cache.
func (c *InstrumentedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.inner.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes a cached entry.
func (c *InstrumentedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}
