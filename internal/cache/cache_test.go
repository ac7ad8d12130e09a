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

func TestNilClientIsEmptyCache(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	data, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, c.Exists(ctx, "k"))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Incr(ctx, "n"))
	assert.NoError(t, c.Ping(ctx))

	var dst []string
	assert.False(t, c.GetJSON(ctx, "k", &dst))
	assert.NoError(t, c.SetJSON(ctx, "k", []string{"a"}, time.Minute))
}

func TestUnreachableRedisFailsSafe(t *testing.T) {
	c := NewFromRedis(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
	ctx := context.Background()

	assert.Error(t, c.Ping(ctx))
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	data, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, c.Exists(ctx, "k"))
}

func TestSetJSON_RejectsUnencodable(t *testing.T) {
	var c *Client
	err := c.SetJSON(context.Background(), "k", make(chan int), time.Minute)
	assert.Error(t, err)
}

func TestIncrAndJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, c.Incr(ctx, "n"))
	require.NoError(t, c.Incr(ctx, "n"))
	data, err := c.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))

	require.NoError(t, c.SetJSON(ctx, "list", []string{"a", "b"}, time.Minute))
	var got []string
	assert.True(t, c.GetJSON(ctx, "list", &got))
	assert.Equal(t, []string{"a", "b"}, got)
}

