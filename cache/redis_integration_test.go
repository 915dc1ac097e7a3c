package cache

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/b2b-portal/logger"
	"github.com/saiset-co/b2b-portal/types"
)

func newIntegrationRedisCache(t *testing.T) *RedisCache {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}

	prefix := "b2b-portal-test-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	client := redis.NewClient(&redis.Options{Addr: addr})

	c := newRedisCacheWithClient(context.Background(), logger.NewNop(), &types.CacheConfig{},
		&RedisConfig{KeyPrefix: prefix, ScanCount: 100}, client)

	require.NoError(t, c.Start())
	t.Cleanup(func() {
		_ = c.Clear()
		_ = c.Stop()
	})

	return c
}

func TestRedisCache_SetGetExpire(t *testing.T) {
	c := newIntegrationRedisCache(t)

	require.NoError(t, c.Set(OrderKey("1"), order{ID: "1", Total: 10}, 200*time.Millisecond))

	got, ok := GetAs[order](c, OrderKey("1"))
	require.True(t, ok)
	assert.Equal(t, order{ID: "1", Total: 10}, got)

	time.Sleep(400 * time.Millisecond)
	_, ok = c.Get(OrderKey("1"))
	assert.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	c := newIntegrationRedisCache(t)

	for _, key := range []string{"order:1", "order:2", "user:1"} {
		require.NoError(t, c.Set(key, key, time.Minute))
	}

	removed, err := c.Invalidate(Prefix("order:"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"user:1"}, c.Stats().Keys)

	p, err := ParsePattern(`user:\d`, true)
	require.NoError(t, err)
	removed, err = c.Invalidate(p)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRedisCache_Memoize(t *testing.T) {
	c := newIntegrationRedisCache(t)
	m := NewMemoizer(c, logger.NewNop(), false)

	calls := 0
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 2; i++ {
		v, err := Memoize(context.Background(), m, "users:company:1", time.Minute, fetch)
		require.NoError(t, err)
		assert.Equal(t, "a,b", strings.Join(v, ","))
	}
	assert.Equal(t, 1, calls)
}
