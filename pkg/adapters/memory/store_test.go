package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/adapters/memory"
	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

func TestMemorySessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessionStore())
}

func TestMemorySessionStore_TTLExpiry(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	store := memory.NewSessionStore(
		memory.WithTTL(30*time.Minute),
		memory.WithClock(clock),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", domain.NewDialogueState("sess-1", "user-1")))

	_, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)

	// Past the inactivity TTL the session is gone.
	current = current.Add(31 * time.Minute)
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestMemorySessionStore_SaveRefreshesTTL(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	store := memory.NewSessionStore(
		memory.WithTTL(30*time.Minute),
		memory.WithClock(clock),
	)
	ctx := context.Background()

	state := domain.NewDialogueState("sess-1", "user-1")
	require.NoError(t, store.Save(ctx, "sess-1", state))

	current = current.Add(20 * time.Minute)
	require.NoError(t, store.Save(ctx, "sess-1", state))

	// 25 more minutes: past the original deadline but within the refreshed one.
	current = current.Add(25 * time.Minute)
	_, err := store.Load(ctx, "sess-1")
	assert.NoError(t, err)
}

func TestMemoryAuditStore_Contract(t *testing.T) {
	ports.RunAuditStoreContract(t, memory.NewAuditStore())
}
