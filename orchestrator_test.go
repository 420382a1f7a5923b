package tellerflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow"
	"github.com/tellerflow/tellerflow/pkg/adapters/memory"
	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/gate"
	"github.com/tellerflow/tellerflow/pkg/ports"
	"github.com/tellerflow/tellerflow/pkg/recovery"
)

func countingExecutor(calls *atomic.Int64, result any, execErr error) ports.Executor {
	return ports.ExecutorFunc(func(ctx context.Context, intent string, slots map[string]any, userID string) (any, error) {
		calls.Add(1)
		return result, execErr
	})
}

func turn(t *testing.T, orch *tellerflow.Orchestrator, input tellerflow.TurnInput) *tellerflow.TurnResult {
	t.Helper()
	result, err := orch.ProcessTurn(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestProcessTurn_TransferScenario(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentTransferMoney,
			countingExecutor(&calls, map[string]any{"receipt": "r-1"}, nil)),
	)

	base := tellerflow.TurnInput{SessionID: "sess-1", UserID: "user-1"}

	in := base
	in.Message = "I want to send money"
	in.Intent = domain.IntentTransferMoney
	in.Confidence = 0.95
	result := turn(t, orch, in)
	assert.Equal(t, "what is the amount?", result.Response.Message)
	assert.Equal(t, domain.StateSlotsFilling, result.State.Current)
	assert.True(t, result.State.IntentLocked)

	in = base
	in.Message = "500 dollars"
	in.Entities = map[string]any{domain.SlotAmount: 500.0}
	result = turn(t, orch, in)
	assert.Equal(t, "what is the from account?", result.Response.Message)

	in = base
	in.Message = "from checking"
	in.Entities = map[string]any{domain.SlotFromAccount: "checking"}
	result = turn(t, orch, in)
	assert.Equal(t, "what is the to account?", result.Response.Message)

	in = base
	in.Message = "to acct-9"
	in.Entities = map[string]any{domain.SlotToAccount: "acct-9"}
	result = turn(t, orch, in)
	assert.Contains(t, result.Response.Message, "please confirm transfer money")
	assert.Equal(t, domain.StateConfirmationPending, result.State.Current)
	assert.Zero(t, calls.Load(), "nothing dispatched before confirmation")

	in = base
	in.Message = "yes"
	result = turn(t, orch, in)
	require.NotNil(t, result.Record)
	assert.Equal(t, domain.StatusSuccess, result.Record.Status)
	assert.Equal(t, domain.StateCompleted, result.State.Current)
	assert.Contains(t, result.Response.Message, "completed")
	assert.Equal(t, int64(1), calls.Load())

	// The terminal state resets; the next turn starts a fresh intent.
	state, err := orch.Sessions().Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, state.Current)
	assert.False(t, state.IntentLocked)
	assert.Equal(t, 5, state.TurnCount, "turn count survives the reset")
}

func TestProcessTurn_IntentLockHolds(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	in := tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send money", Intent: domain.IntentTransferMoney, Confidence: 0.9,
	}
	turn(t, orch, in)

	// A mid-flow classification must not hijack the locked intent.
	in.Message = "what is my balance"
	in.Intent = domain.IntentCheckBalance
	result := turn(t, orch, in)
	assert.Equal(t, domain.IntentTransferMoney, result.State.Intent)
	assert.Equal(t, "what is the amount?", result.Response.Message)
}

func TestProcessTurn_ImplicitAmount(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	balance := 1000.0
	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send all of it to john", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities:        map[string]any{domain.SlotToAccount: "john"},
		ReferenceAmount: &balance,
	})

	assert.Equal(t, 1000.0, result.State.FilledSlots[domain.SlotAmount])
	assert.Equal(t, "what is the from account?", result.Response.Message)
}

func TestProcessTurn_ImplicitAmountWithoutReference(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send everything to john", Intent: domain.IntentTransferMoney, Confidence: 0.9,
	})

	assert.Equal(t, recovery.CategoryValidation, result.Response.Category)
	assert.Contains(t, result.Response.Message, "amount")
}

func TestProcessTurn_NegationRejectedForCreateAccount(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "open an account but don't use savings",
		Intent:  domain.IntentCreateAccount, Confidence: 0.9,
	})

	assert.Equal(t, recovery.CategoryValidation, result.Response.Category)
	assert.Contains(t, result.Response.Message, "not supported")
}

func TestProcessTurn_NegationClearsExcludedAccount(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	in := tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send money", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities: map[string]any{domain.SlotFromAccount: "savings"},
	}
	turn(t, orch, in)

	in.Entities = nil
	in.Message = "actually don't use savings"
	result := turn(t, orch, in)

	assert.NotContains(t, result.State.FilledSlots, domain.SlotFromAccount)
}

func TestProcessTurn_ReadOnlyIntentSkipsConfirmation(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentCheckBalance,
			countingExecutor(&calls, map[string]any{"balance": 1234.5}, nil)),
	)

	// The account type is hinted from the utterance; no confirmation round.
	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "check my savings balance", Intent: domain.IntentCheckBalance, Confidence: 0.9,
	})

	require.NotNil(t, result.Record)
	assert.Equal(t, domain.StatusSuccess, result.Record.Status)
	assert.Equal(t, domain.StateCompleted, result.State.Current)
	assert.Equal(t, "savings", result.State.FilledSlots[domain.SlotAccountType])
	assert.Equal(t, int64(1), calls.Load())
}

func TestProcessTurn_ConfirmationDeclined(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentTransferMoney,
			countingExecutor(&calls, nil, nil)),
	)

	in := tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send money", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities: map[string]any{
			domain.SlotAmount:      100.0,
			domain.SlotFromAccount: "checking",
			domain.SlotToAccount:   "acct-9",
		},
	}
	result := turn(t, orch, in)
	assert.Equal(t, domain.StateConfirmationPending, result.State.Current)

	in.Entities = nil
	in.Message = "no"
	result = turn(t, orch, in)
	assert.Contains(t, result.Response.Message, "won't go ahead")
	assert.Equal(t, domain.StateError, result.State.Current)
	assert.Zero(t, calls.Load())

	state, err := orch.Sessions().Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, state.Current)
}

func TestProcessTurn_AmbiguousConfirmationReprompts(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	in := tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send money", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities: map[string]any{
			domain.SlotAmount:      100.0,
			domain.SlotFromAccount: "checking",
			domain.SlotToAccount:   "acct-9",
		},
	}
	turn(t, orch, in)

	in.Entities = nil
	in.Message = "hmm maybe"
	result := turn(t, orch, in)
	assert.Contains(t, result.Response.Message, "yes or no")
	assert.Equal(t, domain.StateConfirmationPending, result.State.Current)
}

func TestProcessTurn_RateLimited(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithRateLimits(gate.Limits{PerMinute: 1}),
	)

	in := tellerflow.TurnInput{SessionID: "sess-1", UserID: "user-1", Message: "hello"}
	turn(t, orch, in)

	result := turn(t, orch, in)
	assert.Equal(t, recovery.CategoryRateLimit, result.Response.Category)
	seconds, ok := result.Response.Details["retry_after_seconds"].(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, seconds, 1)
}

func TestProcessTurn_MessageRejected(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	result := turn(t, orch, tellerflow.TurnInput{SessionID: "sess-1", UserID: "user-1", Message: ""})
	assert.Equal(t, recovery.CategoryValidation, result.Response.Category)
	assert.Nil(t, result.State, "gate rejections never touch session state")
}

func TestProcessTurn_UnknownIntent(t *testing.T) {
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore())

	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1", Message: "sing me a song",
	})
	assert.Equal(t, recovery.CategoryValidation, result.Response.Category)
	assert.Equal(t, domain.StateIdle, result.State.Current)
}

func TestProcessTurn_ExecutorFailureComposed(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentTransferMoney,
			countingExecutor(&calls, nil, errors.New("insufficient funds"))),
	)

	in := tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send money", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities: map[string]any{
			domain.SlotAmount:      100.0,
			domain.SlotFromAccount: "checking",
			domain.SlotToAccount:   "acct-9",
		},
	}
	turn(t, orch, in)

	in.Entities = nil
	in.Message = "yes"
	result := turn(t, orch, in)

	require.NotNil(t, result.Record)
	assert.Equal(t, domain.StatusFailure, result.Record.Status)
	assert.Equal(t, recovery.CategoryBusinessLogic, result.Response.Category)
	assert.Contains(t, result.Response.Message, "insufficient funds")
	assert.Equal(t, domain.StateError, result.State.Current)
}

func TestProcessTurn_DuplicateActionReplayed(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentTransferMoney,
			countingExecutor(&calls, map[string]any{"receipt": "r-1"}, nil)),
	)

	runTransfer := func(sessionID string) *tellerflow.TurnResult {
		in := tellerflow.TurnInput{
			SessionID: sessionID, UserID: "user-1",
			Message: "send money", Intent: domain.IntentTransferMoney, Confidence: 0.9,
			Entities: map[string]any{
				domain.SlotAmount:      100.0,
				domain.SlotFromAccount: "checking",
				domain.SlotToAccount:   "acct-9",
			},
		}
		turn(t, orch, in)
		in.Entities = nil
		in.Message = "yes"
		return turn(t, orch, in)
	}

	first := runTransfer("sess-a")
	second := runTransfer("sess-b")

	// Same user, same intent, same slots: the second dispatch replays the
	// first outcome without touching the executor again.
	assert.Equal(t, first.Record.Key, second.Record.Key)
	assert.Equal(t, domain.StatusSuccess, second.Record.Status)
	assert.Equal(t, int64(1), calls.Load())
}

func TestProcessTurn_AuditTrail(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentCheckBalance,
			countingExecutor(&calls, map[string]any{"balance": 10.0}, nil)),
	)

	turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "check my savings balance", Intent: domain.IntentCheckBalance, Confidence: 0.9,
	})

	trail, err := orch.AuditTrail(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.IntentCheckBalance, trail[0].Intent)

	history, err := orch.History(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestProcessTurn_InvalidSlotValueReprompts(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentTransferMoney,
			countingExecutor(&calls, map[string]any{"receipt": "r-1"}, nil)),
	)

	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send minus fifty dollars", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities: map[string]any{domain.SlotAmount: -50.0},
	})
	assert.Equal(t, recovery.CategoryValidation, result.Response.Category)
	assert.Contains(t, result.Response.Message, domain.SlotAmount)
	assert.NotContains(t, result.State.FilledSlots, domain.SlotAmount)
	assert.Equal(t, domain.StateSlotsFilling, result.State.Current)

	// A valid value on the next turn moves the dialogue along.
	result = turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "make it 50", Entities: map[string]any{domain.SlotAmount: 50.0},
	})
	assert.Equal(t, "what is the from account?", result.Response.Message)
}

func TestProcessTurn_InvalidAccountTypeRejected(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentCheckBalance,
			countingExecutor(&calls, map[string]any{"balance": 10.0}, nil)),
	)

	result := turn(t, orch, tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "balance of my offshore account", Intent: domain.IntentCheckBalance, Confidence: 0.9,
		Entities: map[string]any{domain.SlotAccountType: "offshore"},
	})
	assert.Equal(t, recovery.CategoryValidation, result.Response.Category)
	assert.Contains(t, result.Response.Message, "account_type")
	assert.Equal(t, int64(0), calls.Load())
}

func TestProcessTurn_SlotRetriesExhausted(t *testing.T) {
	var calls atomic.Int64
	orch := tellerflow.New(memory.NewSessionStore(), memory.NewAuditStore(),
		tellerflow.WithExecutor(domain.IntentTransferMoney,
			countingExecutor(&calls, map[string]any{"receipt": "r-1"}, nil)),
	)

	in := tellerflow.TurnInput{
		SessionID: "sess-1", UserID: "user-1",
		Message: "send it", Intent: domain.IntentTransferMoney, Confidence: 0.9,
		Entities: map[string]any{domain.SlotAmount: -1.0},
	}

	turn(t, orch, in)
	turn(t, orch, in)
	result := turn(t, orch, in)

	assert.Contains(t, result.Response.Message, "after 3 attempts")
	assert.Equal(t, domain.StateError, result.State.Current)
	assert.Equal(t, int64(0), calls.Load())
}
