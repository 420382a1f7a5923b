package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewDialogueState(sessionID, "user-1")
		state.Intent = domain.IntentTransferMoney
		state.IntentLocked = true
		state.FilledSlots[domain.SlotAmount] = 250.0

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.SessionID, loaded.SessionID)
		assert.Equal(t, domain.IntentTransferMoney, loaded.Intent)
		assert.True(t, loaded.IntentLocked)
		// JSON persistence may convert numeric types; just check presence.
		assert.NotNil(t, loaded.FilledSlots[domain.SlotAmount])
	})

	t.Run("Load Isolation", func(t *testing.T) {
		state := domain.NewDialogueState(sessionID, "user-1")
		require.NoError(t, store.Save(ctx, sessionID, state))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.FilledSlots["mutated"] = true

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.FilledSlots, "mutated", "Load must return isolated copies")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewDialogueState(sessionID, "user-1")))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewDialogueState(id1, "user-1")))
		require.NoError(t, store.Save(ctx, id2, domain.NewDialogueState(id2, "user-2")))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunAuditStoreContract runs a suite of tests to verify that an AuditStore
// implementation adheres to the defined interface contract.
func RunAuditStoreContract(t *testing.T, store AuditStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	newRecord := func(key, userID, sessionID string) *domain.IdempotencyRecord {
		return &domain.IdempotencyRecord{
			Key:       key,
			RefID:     key + "-ref",
			UserID:    userID,
			SessionID: sessionID,
			Intent:    domain.IntentTransferMoney,
			Status:    domain.StatusPending,
			InputSnapshot: map[string]any{
				domain.SlotAmount: "100",
			},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	}

	t.Run("Append and GetByKey", func(t *testing.T) {
		rec := newRecord(prefix+"-k1", "user-a", "sess-a")
		require.NoError(t, store.Append(ctx, rec))

		got, err := store.GetByKey(ctx, rec.Key)
		require.NoError(t, err)
		assert.Equal(t, rec.Key, got.Key)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Equal(t, "100", got.InputSnapshot[domain.SlotAmount])
	})

	t.Run("Append Duplicate", func(t *testing.T) {
		rec := newRecord(prefix+"-k2", "user-a", "sess-a")
		require.NoError(t, store.Append(ctx, rec))
		err := store.Append(ctx, newRecord(prefix+"-k2", "user-a", "sess-a"))
		assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
	})

	t.Run("Update Terminal Transition", func(t *testing.T) {
		rec := newRecord(prefix+"-k3", "user-a", "sess-a")
		require.NoError(t, store.Append(ctx, rec))

		rec.Status = domain.StatusSuccess
		rec.OutputSnapshot = map[string]any{"receipt": "r-1"}
		rec.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.Update(ctx, rec))

		got, err := store.GetByKey(ctx, rec.Key)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSuccess, got.Status)
		assert.NotNil(t, got.OutputSnapshot)
	})

	t.Run("Update Non-Existent", func(t *testing.T) {
		rec := newRecord(prefix+"-missing", "user-a", "sess-a")
		err := store.Update(ctx, rec)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("GetByKey Non-Existent", func(t *testing.T) {
		_, err := store.GetByKey(ctx, prefix+"-unknown")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("GetByUser and GetBySession", func(t *testing.T) {
		userID := prefix + "-user"
		sessionID := prefix + "-sess"
		first := newRecord(prefix+"-u1", userID, sessionID)
		second := newRecord(prefix+"-u2", userID, sessionID)
		require.NoError(t, store.Append(ctx, first))
		require.NoError(t, store.Append(ctx, second))

		byUser, err := store.GetByUser(ctx, userID, 10)
		require.NoError(t, err)
		require.Len(t, byUser, 2)
		assert.Equal(t, second.Key, byUser[0].Key, "most recent first")

		limited, err := store.GetByUser(ctx, userID, 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)

		bySession, err := store.GetBySession(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, bySession, 2)
	})
}
