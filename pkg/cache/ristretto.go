package cache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache implements Cache on Ristretto with unit cost per item.
type RistrettoCache struct {
	name   string
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for a Ristretto cache.
type RistrettoConfig struct {
	Name     string // metrics label
	MaxItems int64
	Logger   *zap.Logger
}

// NewRistrettoCache creates a cache holding at most cfg.MaxItems values.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MaxItems <= 0 {
		return nil, fmt.Errorf("max items must be positive, got %d", cfg.MaxItems)
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxItems * 10,
		MaxCost:     cfg.MaxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &RistrettoCache{
		name:   cfg.Name,
		cache:  c,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves a value.
func (r *RistrettoCache) Get(key string) (any, bool) {
	value, found := r.cache.Get(key)
	if found {
		CacheHitsTotal.WithLabelValues(r.name).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(r.name).Inc()
	}
	return value, found
}

// Set admits a value with cost 1.
func (r *RistrettoCache) Set(key string, value any) bool {
	ok := r.cache.Set(key, value, 1)
	if !ok {
		CacheRejectedSetsTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-set-rejected",
			zap.String("cache", r.name),
			zap.String("key", key))
	}
	return ok
}

// Delete removes a value.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
}

// Wait blocks until buffered writes are applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}

// Clear removes all values.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared", zap.String("cache", r.name))
}

// Close stops Ristretto's background goroutines.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("cache-closed", zap.String("cache", r.name))
}
