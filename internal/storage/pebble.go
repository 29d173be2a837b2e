package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleAdapter stores values in a Pebble database directory.
type PebbleAdapter struct {
	mu    sync.Mutex
	db    *pebble.DB
	quota *quota
}

// OpenPebble opens (or creates) the Pebble database at path.
func OpenPebble(path string, quotaBytes int64) (*PebbleAdapter, error) {
	if path == "" {
		return nil, fmt.Errorf("pebble storage requires a path")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}

	a := &PebbleAdapter{db: db, quota: newQuota(quotaBytes)}
	for _, key := range []string{MessagesKey, TopicsKey} {
		v, err := a.Load(context.Background(), key)
		if err == nil {
			a.quota.set(key, int64(len(v)))
		}
	}
	return a, nil
}

// Load returns the value stored under key.
func (a *PebbleAdapter) Load(_ context.Context, key string) ([]byte, error) {
	v, closer, err := a.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// Save writes value under key with a synced commit.
func (a *PebbleAdapter) Save(_ context.Context, key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.quota.fits(key, int64(len(value))) {
		return ErrQuotaExceeded
	}
	if err := a.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return err
	}
	a.quota.set(key, int64(len(value)))
	return nil
}

// Clear deletes keys in a single batch.
func (a *PebbleAdapter) Clear(_ context.Context, keys ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	batch := a.db.NewBatch()
	defer batch.Close()
	for _, key := range keys {
		if err := batch.Delete([]byte(key), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	for _, key := range keys {
		a.quota.drop(key)
	}
	return nil
}

// Close flushes and closes the database.
func (a *PebbleAdapter) Close() error {
	return a.db.Close()
}
