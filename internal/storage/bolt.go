package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var conversationBucket = []byte("conversation")

// BoltAdapter stores values in a single bbolt bucket.
type BoltAdapter struct {
	mu    sync.Mutex
	db    *bolt.DB
	quota *quota
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string, quotaBytes int64) (*BoltAdapter, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt storage requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	a := &BoltAdapter{db: db, quota: newQuota(quotaBytes)}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(conversationBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			a.quota.set(string(k), int64(len(v)))
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Load returns the value stored under key.
func (a *BoltAdapter) Load(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationBucket)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes value under key in one transaction.
func (a *BoltAdapter) Save(_ context.Context, key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.quota.fits(key, int64(len(value))) {
		return ErrQuotaExceeded
	}
	err := a.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(conversationBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return err
	}
	a.quota.set(key, int64(len(value)))
	return nil
}

// Clear deletes keys in one transaction.
func (a *BoltAdapter) Clear(_ context.Context, keys ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationBucket)
		if b == nil {
			return nil
		}
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		a.quota.drop(key)
	}
	return nil
}

// Close releases the database file.
func (a *BoltAdapter) Close() error {
	return a.db.Close()
}
