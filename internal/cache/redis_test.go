package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRedisClientParsesAddress(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{})
	require.Error(t, err)

	client, err := NewRedisClient(RedisConfig{Address: "redis://:secret@cache.internal:6380/3", Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	opts := client.Options()
	require.Equal(t, "cache.internal:6380", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, time.Second, opts.DialTimeout)

	plain, err := NewRedisClient(RedisConfig{Address: "127.0.0.1:6379", DB: 2, TLS: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = plain.Close() })
	require.Equal(t, 2, plain.Options().DB)
	require.NotNil(t, plain.Options().TLSConfig)
	require.Equal(t, defaultRedisTimeout, plain.Options().ReadTimeout)
}

func TestRedisLockerReportsUnreachableServer(t *testing.T) {
	_, err := NewRedisLocker(nil)
	require.Error(t, err)

	client, err := NewRedisClient(RedisConfig{Address: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	locker, err := NewRedisLocker(client)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Error(t, locker.Ping(ctx))

	lease, ok, err := locker.Acquire(ctx, "reconciler:cycle", time.Minute)
	require.Error(t, err)
	require.False(t, ok)
	require.Nil(t, lease)
}
