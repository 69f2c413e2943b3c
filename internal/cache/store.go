package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/otcheredev/dicom-study-loader/internal/storage"
)

// StoreCache implements Cache on top of a persistent storage.Store so cached
// studies survive a restart. Each value is prefixed with its unix-nano expiry
// (zero for none).
type StoreCache struct {
	store storage.Store
}

// NewStoreCache creates a cache persisting through st
func NewStoreCache(st storage.Store) *StoreCache {
	return &StoreCache{store: st}
}

const expiryHeader = 8

func encodeEntry(value []byte, ttl time.Duration) []byte {
	buf := make([]byte, expiryHeader+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
	}
	copy(buf[expiryHeader:], value)
	return buf
}

func decodeEntry(raw []byte, now time.Time) ([]byte, error) {
	if len(raw) < expiryHeader {
		return nil, errors.New("corrupt cache entry")
	}
	if exp := int64(binary.BigEndian.Uint64(raw)); exp != 0 && now.UnixNano() > exp {
		return nil, ErrCacheMiss
	}
	return raw[expiryHeader:], nil
}

// Get retrieves a value from cache
func (s *StoreCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	value, err := decodeEntry(raw, time.Now())
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			err = fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return nil, err
	}
	return value, nil
}

// Set stores a value in cache
func (s *StoreCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.store.Set(ctx, key, encodeEntry(value, ttl)); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (s *StoreCache) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Exists checks if a key exists and has not expired
func (s *StoreCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes all keys matching pattern (only a trailing * wildcard is supported)
func (s *StoreCache) Clear(ctx context.Context, pattern string) error {
	keys, err := s.store.Keys(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	for _, key := range keys {
		if !matchPattern(key, pattern) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	return nil
}

// Close is a no-op; the store is owned by the caller
func (s *StoreCache) Close() error {
	return nil
}
