// Package cache holds the byte-level cache backends and the typed study cache built on them
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/otcheredev/dicom-study-loader/internal/storage"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the byte cache interface. A zero ttl means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
	Close() error
}

// Backend names accepted by New
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeStore  = "store"
)

// RedisOptions carries the connection settings for the redis backend
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// New creates the byte cache for the named backend. The store backend persists
// through st, which must be non-nil for that type.
func New(cacheType string, redisOpts RedisOptions, st storage.Store) (Cache, error) {
	switch cacheType {
	case "", TypeMemory:
		return NewMemoryCache(), nil
	case TypeRedis:
		return NewRedisCache(redisOpts.Addr, redisOpts.Password, redisOpts.DB)
	case TypeStore:
		if st == nil {
			return nil, errors.New("store cache requires a storage backend")
		}
		return NewStoreCache(st), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheType)
	}
}
