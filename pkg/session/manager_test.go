package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/adapters/memory"
	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/session"
)

func TestManager_LoadOrStart(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	state, err := mgr.LoadOrStart(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, state.Current)
	assert.Equal(t, "user-1", state.UserID)

	// Second call loads the persisted session instead of recreating it.
	state.TurnCount = 3
	require.NoError(t, mgr.Save(ctx, "sess-1", state))

	loaded, err := mgr.LoadOrStart(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.TurnCount)
}

func TestManager_Load_NotFound(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	_, err := mgr.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_WithLock_SerializesTurns(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	_, err := mgr.LoadOrStart(ctx, "sess-1", "user-1")
	require.NoError(t, err)

	// Concurrent read-modify-write cycles under WithLock must not lose updates.
	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "sess-1", func(ctx context.Context) error {
				state, err := mgr.Store().Load(ctx, "sess-1")
				if err != nil {
					return err
				}
				state.TurnCount++
				return mgr.Store().Save(ctx, "sess-1", state)
			})
		}()
	}
	wg.Wait()

	state, err := mgr.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, workers, state.TurnCount)
}

func TestManager_Delete(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	_, err := mgr.LoadOrStart(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	require.NoError(t, mgr.Delete(ctx, "sess-1"))

	_, err = mgr.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
