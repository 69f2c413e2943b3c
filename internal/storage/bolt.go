package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

var bucketKV = []byte("kv")

// BoltStore is a Store backed by a single bolt bucket
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the bolt file at path
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(filepath.Clean(path), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketKV)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the value stored under key
func (b *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		v := bk.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bolt values are only valid for the life of the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Set stores value under key
func (b *BoltStore) Set(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Put([]byte(key), value)
	})
}

// Delete removes key
func (b *BoltStore) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		return bk.Delete([]byte(key))
	})
}

// Keys returns the keys starting with prefix in byte order
func (b *BoltStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketKV)
		if bk == nil {
			return bolt.ErrBucketNotFound
		}
		p := []byte(prefix)
		c := bk.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Close closes the underlying file
func (b *BoltStore) Close() error {
	return b.db.Close()
}
