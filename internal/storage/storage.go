package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("key not found")

// KV is the durable key-value store behind every verification artifact.
//
// Put with ttl <= 0 stores the value without expiry. The store offers no
// compare-and-delete; callers consuming one-time values do a read followed
// by a delete and accept the race between the two.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
