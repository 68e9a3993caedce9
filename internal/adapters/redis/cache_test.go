package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "rental_portal/internal/adapters/redis"
	"rental_portal/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	var miss []domain.Slot
	ok, err := c.Get(ctx, "slots:p:available", &miss)
	require.NoError(t, err)
	assert.False(t, ok)

	in := []domain.Slot{{ID: "s-1", PropertyID: "p", Date: "2025-03-01", StartTime: "09:00", EndTime: "09:10"}}
	require.NoError(t, c.Set(ctx, "slots:p:available", in, 60))
	assert.True(t, mr.Exists("rental:slots:p:available"))

	var out []domain.Slot
	ok, err = c.Get(ctx, "slots:p:available", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s-1", out[0].ID)

	require.NoError(t, c.Del(ctx, "slots:p:available"))
	ok, err = c.Get(ctx, "slots:p:available", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []string{"v"}, 30))
	mr.FastForward(31 * time.Second)

	var out []string
	ok, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_UndecodableValueIsDropped(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("rental:k", "not-json"))

	var out []domain.Slot
	ok, err := c.Get(ctx, "k", &out)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("rental:k"))
}
