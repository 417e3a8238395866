package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return kv.Put(ctx, key, string(data), ttl)
}

// GetJSON loads key into v. A missing key returns ErrNotFound.
func GetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return nil
}
