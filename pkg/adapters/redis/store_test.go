package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/adapters/redis"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

func newTestClient(t *testing.T) *backend.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisSessionStore_Contract(t *testing.T) {
	store := redis.NewSessionStoreFromClient(newTestClient(t))
	ports.RunSessionStoreContract(t, store)
}

func TestRedisAuditStore_Contract(t *testing.T) {
	store := redis.NewAuditStoreFromClient(newTestClient(t))
	ports.RunAuditStoreContract(t, store)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client := newTestClient(t)
	locker := redis.NewLocker(client, "tellerflow:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "sess-1", 10*time.Second)
	require.NoError(t, err)

	// A second acquisition must block until released or the context ends.
	blockedCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blockedCtx, "sess-1", 10*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	// After release the lock is free again.
	unlock2, err := locker.Lock(ctx, "sess-1", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}
