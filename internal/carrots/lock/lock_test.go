package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set; skipping redis lock test")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockIsExclusive(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "carrots:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	first := New(client, key, time.Minute)
	second := New(client, key, time.Minute)

	require.NoError(t, first.Acquire(ctx))
	assert.ErrorIs(t, second.Acquire(ctx), ErrLockHeld)

	// a foreign release leaves the lock in place
	require.NoError(t, second.Release(ctx))
	assert.ErrorIs(t, second.Acquire(ctx), ErrLockHeld)

	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.Acquire(ctx))
	require.NoError(t, second.Release(ctx))
}

func TestLockExpires(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "carrots:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	require.NoError(t, New(client, key, 100*time.Millisecond).Acquire(ctx))
	time.Sleep(250 * time.Millisecond)
	assert.NoError(t, New(client, key, time.Minute).Acquire(ctx))
}

func TestLockRefreshExtendsTTL(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "carrots:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	l := New(client, key, 200*time.Millisecond)
	require.NoError(t, l.Acquire(ctx))
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		require.NoError(t, l.Refresh(ctx))
	}
	assert.ErrorIs(t, New(client, key, time.Minute).Acquire(ctx), ErrLockHeld)
}

func TestLockRefreshFailsOnceLost(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "carrots:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	l := New(client, key, 100*time.Millisecond)
	require.NoError(t, l.Acquire(ctx))
	time.Sleep(250 * time.Millisecond)
	assert.ErrorIs(t, l.Refresh(ctx), ErrLockLost)

	other := New(client, key, time.Minute)
	require.NoError(t, other.Acquire(ctx))
	assert.ErrorIs(t, l.Refresh(ctx), ErrLockLost)
}

func TestLockKeepAliveOutlivesTTL(t *testing.T) {
	client := testClient(t)
	key := "carrots:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	l := New(client, key, 150*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.KeepAlive(ctx) }()

	time.Sleep(500 * time.Millisecond)
	assert.ErrorIs(t, New(client, key, time.Minute).Acquire(context.Background()), ErrLockHeld)

	cancel()
	assert.NoError(t, <-done)
}

func TestLockKeepAliveReportsLoss(t *testing.T) {
	client := testClient(t)
	key := "carrots:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	l := New(client, key, 150*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, client.Set(context.Background(), key, "someone-else", time.Minute).Err())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, l.KeepAlive(ctx), ErrLockLost)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open("not-a-redis-url", time.Minute)
	assert.Error(t, err)
}

func TestOpenParsesURL(t *testing.T) {
	l, err := Open("redis://localhost:6379/2", time.Minute)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, DefaultKey, l.key)
	assert.Equal(t, 2, l.client.Options().DB)
	assert.NotEmpty(t, l.token)
}
