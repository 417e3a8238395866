package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pittmc/backend/internal/storage"
	"pittmc/backend/internal/storage/memory"
)

type record struct {
	Email string `json:"email"`
	Step  int    `json:"step"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()

	require.NoError(t, storage.PutJSON(ctx, kv, "webhook:S", record{Email: "panther@pitt.edu", Step: 2}, time.Hour))

	var got record
	require.NoError(t, storage.GetJSON(ctx, kv, "webhook:S", &got))
	assert.Equal(t, record{Email: "panther@pitt.edu", Step: 2}, got)

	err := storage.GetJSON(ctx, kv, "webhook:missing", &got)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Put(ctx, "webhook:bad", "{not json", time.Hour))
	err = storage.GetJSON(ctx, kv, "webhook:bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
