package dialogue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/dialogue"
	"github.com/tellerflow/tellerflow/pkg/domain"
)

func newMachine(t *testing.T) *dialogue.Machine {
	t.Helper()
	state := domain.NewDialogueState("sess-1", "user-1")
	return dialogue.New(state, domain.NewSchemaRegistry())
}

func TestSetIntent_Lock(t *testing.T) {
	m := newMachine(t)

	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.92))
	assert.Equal(t, domain.StateIntentClassified, m.State().Current)
	assert.True(t, m.State().IntentLocked)

	// A second classification, however confident, must not hijack the flow.
	assert.False(t, m.SetIntent(domain.IntentCheckBalance, 0.99))
	assert.Equal(t, domain.IntentTransferMoney, m.State().Intent)
	assert.Equal(t, 0.92, m.State().IntentConfidence)
}

func TestSetIntent_UnknownIntent(t *testing.T) {
	m := newMachine(t)
	assert.False(t, m.SetIntent("order_pizza", 0.9))
	assert.False(t, m.State().IntentLocked)
	assert.Equal(t, domain.StateIdle, m.State().Current)
}

func TestFillSlot_And_MissingSlots(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.9))

	assert.Equal(t, []string{domain.SlotAmount, domain.SlotFromAccount, domain.SlotToAccount}, m.MissingSlots())

	require.True(t, m.FillSlot(domain.SlotAmount, 50.0))
	// Missing slots keep the original required order, not fill order.
	assert.Equal(t, []string{domain.SlotFromAccount, domain.SlotToAccount}, m.MissingSlots())

	require.True(t, m.FillSlot(domain.SlotToAccount, "alice"))
	assert.Equal(t, []string{domain.SlotFromAccount}, m.MissingSlots())

	assert.False(t, m.FillSlot("favorite_color", "blue"), "unknown slot must be rejected")
}

func TestFillSlotsBatch_CollectsErrors(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.9))

	ok, errs := m.FillSlotsBatch(map[string]any{
		domain.SlotAmount: 25.0,
		"bogus":           "x",
	})
	assert.False(t, ok)
	assert.Contains(t, errs, "bogus")
	// The valid entry is still applied.
	assert.Contains(t, m.State().FilledSlots, domain.SlotAmount)
}

func TestClearSlot(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentCheckBalance, 0.9))
	require.True(t, m.FillSlot(domain.SlotAccountType, "savings"))

	require.True(t, m.ClearSlot(domain.SlotAccountType))
	assert.Equal(t, []string{domain.SlotAccountType}, m.MissingSlots())
}

func TestFillSlot_ClearsPriorError(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.9))

	m.RecordSlotError(domain.SlotAmount, "not a number")
	assert.Contains(t, m.State().SlotErrors, domain.SlotAmount)

	require.True(t, m.FillSlot(domain.SlotAmount, 10.0))
	assert.NotContains(t, m.State().SlotErrors, domain.SlotAmount)
}

func TestRecordSlotError_RetryCap(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.9))

	assert.True(t, m.RecordSlotError(domain.SlotAmount, "bad"))
	assert.True(t, m.RecordSlotError(domain.SlotAmount, "bad"))
	// Third strike exhausts the default cap.
	assert.False(t, m.RecordSlotError(domain.SlotAmount, "bad"))
}

func TestCompletionScenario_TransferMoney(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.95))
	require.True(t, m.Transition(domain.StateSlotsFilling))

	require.True(t, m.FillSlot(domain.SlotAmount, 100.0))
	assert.False(t, m.IsComplete())

	require.True(t, m.FillSlot(domain.SlotToAccount, "bob"))
	require.True(t, m.FillSlot(domain.SlotFromAccount, "checking"))

	assert.True(t, m.IsComplete())
	assert.True(t, m.NeedsConfirmation(), "transfer_money is side-effecting")
}

func TestNeedsConfirmation_ReadOnlyIntent(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentCheckBalance, 0.9))
	require.True(t, m.FillSlot(domain.SlotAccountType, "savings"))

	assert.True(t, m.IsComplete())
	assert.False(t, m.NeedsConfirmation(), "balance check skips confirmation")
}

func TestTransition_TableIsAuthoritative(t *testing.T) {
	m := newMachine(t)

	// Idle cannot jump straight to executing.
	assert.False(t, m.Transition(domain.StateActionExecuting))
	assert.Equal(t, domain.StateIdle, m.State().Current)

	// Error is reachable from any non-terminal state.
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.9))
	assert.True(t, m.Transition(domain.StateError))

	// Accepted transitions are recorded.
	transitions := m.State().Transitions
	require.Len(t, transitions, 2)
	assert.Equal(t, domain.StateIdle, transitions[0].From)
	assert.Equal(t, domain.StateIntentClassified, transitions[0].To)
	assert.Equal(t, domain.StateError, transitions[1].To)
}

func TestResetForNextTurn(t *testing.T) {
	m := newMachine(t)
	require.True(t, m.SetIntent(domain.IntentTransferMoney, 0.9))

	// Reset is rejected mid-flow.
	_, ok := m.ResetForNextTurn()
	assert.False(t, ok)

	require.True(t, m.Transition(domain.StateError))
	fresh, ok := m.ResetForNextTurn()
	require.True(t, ok)
	assert.Equal(t, domain.StateIdle, fresh.Current)
	assert.False(t, fresh.IntentLocked)
	assert.Empty(t, fresh.Intent)

	// The machine now operates on the fresh state: a new intent can lock.
	assert.True(t, m.SetIntent(domain.IntentCheckBalance, 0.8))
}
