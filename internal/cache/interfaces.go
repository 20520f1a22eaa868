// Package cache provides the byte cache behind the catalog views.
package cache

import (
	"context"
	"time"
)

// Cache is the read-through TTL store the catalog needs. MemoryCache serves
// single-instance deployments; RedisCache is shared between instances.
type Cache interface {
	// GetOrSet returns the cached value or stores the result of fn.
	// Errors from fn are returned and nothing is stored.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	Delete(ctx context.Context, key string) error
	Close() error
}

// CacheError is a cache sentinel.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found in cache.
const ErrCacheMiss CacheError = "cache miss"
