package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewWithClient(client)
}

type profile struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

func TestCache_JSONRoundTripAndTTL(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	var got profile
	found, err := c.GetJSON(ctx, "profile:1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "profile:1", profile{ID: "1", FullName: "Alice"}, time.Minute))
	assert.True(t, mr.Exists("accounts:profile:1"))

	found, err = c.GetJSON(ctx, "profile:1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alice", got.FullName)
	assert.Equal(t, time.Minute, mr.TTL("accounts:profile:1"))

	mr.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, "profile:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_GetJSON_CorruptValue(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("accounts:profile:1", "{not json"))

	var got profile
	found, err := c.GetJSON(ctx, "profile:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, mr.Exists("accounts:profile:1"))
}

func TestCache_Delete(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "a", 1, 0))
	require.NoError(t, c.SetJSON(ctx, "b", 2, 0))

	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))
	require.NoError(t, c.Delete(ctx))

	assert.False(t, mr.Exists("accounts:a"))
	assert.False(t, mr.Exists("accounts:b"))
}

func TestCache_ServerDown(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	assert.Error(t, c.Client().Ping(ctx).Err())

	var got profile
	found, err := c.GetJSON(ctx, "profile:1", &got)
	assert.Error(t, err)
	assert.False(t, found)

	assert.Error(t, c.SetJSON(ctx, "profile:1", got, time.Minute))
	assert.Error(t, c.Delete(ctx, "profile:1"))
}
