// Package storage persists the conversation as JSON values under string keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Keys under which the conversation is persisted.
const (
	MessagesKey = "mathgpt.messages"
	TopicsKey   = "mathgpt.topics"
)

var (
	// ErrNotFound is returned by Load when the key holds no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Save when the value does not fit.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Adapter is a single-writer key/value store for JSON documents.
type Adapter interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, keys ...string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendPebble = "pebble"
)

// Options selects and tunes a backend.
type Options struct {
	Backend string
	Path    string
	// QuotaBytes caps the total size of stored values. Zero disables the cap.
	QuotaBytes int64
}

// Open creates the adapter named by opts.Backend.
func Open(opts Options) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendBolt:
		return OpenBolt(opts.Path, opts.QuotaBytes)
	case BackendPebble:
		return OpenPebble(opts.Path, opts.QuotaBytes)
	case BackendMemory:
		return NewMemoryAdapter(opts.QuotaBytes), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// quota tracks per-key value sizes against a byte budget.
type quota struct {
	limit int64
	sizes map[string]int64
}

func newQuota(limit int64) *quota {
	return &quota{limit: limit, sizes: make(map[string]int64)}
}

// fits reports whether replacing key's value with size bytes stays within the limit.
func (q *quota) fits(key string, size int64) bool {
	if q.limit <= 0 {
		return true
	}
	var total int64
	for k, v := range q.sizes {
		if k != key {
			total += v
		}
	}
	return total+size <= q.limit
}

func (q *quota) set(key string, size int64) {
	q.sizes[key] = size
}

func (q *quota) drop(key string) {
	delete(q.sizes, key)
}
