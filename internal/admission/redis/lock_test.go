package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client using miniredis for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestLockHost(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}
	ctx := context.Background()

	// First admission takes the lock
	locked, err := r.LockHost(ctx, "host-1", "token-a")
	require.NoError(t, err)
	assert.True(t, locked)

	// Second admission against the same host is blocked
	locked, err = r.LockHost(ctx, "host-1", "token-b")
	require.NoError(t, err)
	assert.False(t, locked)

	// A different host is independent
	locked, err = r.LockHost(ctx, "host-2", "token-c")
	require.NoError(t, err)
	assert.True(t, locked)

	// Release and re-take
	err = r.UnlockHost(ctx, "host-1", "token-a")
	require.NoError(t, err)

	locked, err = r.LockHost(ctx, "host-1", "token-b")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestUnlockHost_OnlyReleasesOwnLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}
	ctx := context.Background()

	locked, err := r.LockHost(ctx, "host-1", "token-a")
	require.NoError(t, err)
	assert.True(t, locked)

	// A stale caller with a different token cannot release it
	err = r.UnlockHost(ctx, "host-1", "token-stale")
	require.NoError(t, err)

	val, err := client.Get(ctx, "host_lock:host-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "token-a", val)

	// Releasing an already-free lock is a no-op
	err = r.UnlockHost(ctx, "host-1", "token-a")
	require.NoError(t, err)
	err = r.UnlockHost(ctx, "host-1", "token-a")
	require.NoError(t, err)
}

func TestLockHost_ConcurrentAdmissions(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{Client: client, Logger: log.Default()}
	ctx := context.Background()

	const numGoroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	holders := 0
	maxHolders := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			token := fmt.Sprintf("token-%d", n)
			locked, err := r.LockHost(ctx, "host-busy", token)
			if err != nil || !locked {
				return
			}

			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()

			r.UnlockHost(ctx, "host-busy", token)
		}(i)
	}

	wg.Wait()

	// The lock never admits two holders at once
	assert.LessOrEqual(t, maxHolders, 1)
}
