package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pittmc/backend/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Put(ctx, "panther@pitt.edu", "123456", time.Minute))
	v, err := store.Get(ctx, "panther@pitt.edu")
	require.NoError(t, err)
	assert.Equal(t, "123456", v)

	require.NoError(t, store.Put(ctx, "panther@pitt.edu", "654321", time.Minute))
	v, err = store.Get(ctx, "panther@pitt.edu")
	require.NoError(t, err)
	assert.Equal(t, "654321", v)

	require.NoError(t, store.Delete(ctx, "panther@pitt.edu"))
	require.NoError(t, store.Delete(ctx, "panther@pitt.edu"))
	_, err = store.Get(ctx, "panther@pitt.edu")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, store.Ping(ctx))
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	store := NewStore()
	store.SetClock(clock.now)

	require.NoError(t, store.Put(ctx, "code", "111111", 15*time.Minute))
	require.NoError(t, store.Put(ctx, "forever", "x", 0))

	ttl, ok := store.TTL("code")
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, ttl)

	clock.advance(15*time.Minute - time.Second)
	_, err := store.Get(ctx, "code")
	assert.NoError(t, err)

	clock.advance(time.Second)
	_, err = store.Get(ctx, "code")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, ok = store.TTL("code")
	assert.False(t, ok)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())

	v, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestStore_Janitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	require.NoError(t, store.Put(ctx, "short", "v", time.Millisecond))
	store.StartJanitor(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.entries) == 0
	}, time.Second, 5*time.Millisecond)
}
