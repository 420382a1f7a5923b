package recovery_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tellerflow/tellerflow/pkg/recovery"
)

func TestInsufficientBalance(t *testing.T) {
	resp := recovery.InsufficientBalance("savings", 300, 500)

	assert.Equal(t, recovery.CategoryBusinessLogic, resp.Category)
	assert.Equal(t, 200.0, resp.Details["shortfall"])
	// Suggestion order is part of the contract: reduce -> other account -> support.
	assert.Len(t, resp.Suggestions, 3)
	assert.Contains(t, resp.Suggestions[0], "reduce")
	assert.Contains(t, resp.Suggestions[1], "another account")
	assert.Contains(t, resp.Suggestions[2], "support")
}

func TestRateLimited(t *testing.T) {
	resp := recovery.RateLimited(42 * time.Second)
	assert.Equal(t, recovery.CategoryRateLimit, resp.Category)
	assert.Equal(t, 42, resp.Details["retry_after_seconds"])

	// Sub-second estimates round up to one second.
	resp = recovery.RateLimited(10 * time.Millisecond)
	assert.Equal(t, 1, resp.Details["retry_after_seconds"])
}

func TestExecutionFailed_Category(t *testing.T) {
	biz := recovery.ExecutionFailed("transfer_money", "insufficient funds", false)
	assert.Equal(t, recovery.CategoryBusinessLogic, biz.Category)

	sys := recovery.ExecutionFailed("transfer_money", "executor timed out", true)
	assert.Equal(t, recovery.CategorySystem, sys.Category)
}

func TestSystemFailure_HasSupportRef(t *testing.T) {
	resp := recovery.SystemFailure(errors.New("audit store unavailable"))
	assert.Equal(t, recovery.CategorySystem, resp.Category)
	assert.NotEmpty(t, resp.SupportRef)
}

func TestUnknownIntent(t *testing.T) {
	resp := recovery.UnknownIntent("")
	assert.Equal(t, recovery.CategoryValidation, resp.Category)
	assert.NotEmpty(t, resp.Suggestions)

	named := recovery.UnknownIntent("buy_crypto")
	assert.Contains(t, named.Message, "buy_crypto")
}

func TestSlotRetriesExhausted(t *testing.T) {
	resp := recovery.SlotRetriesExhausted("amount", 3)
	assert.Equal(t, recovery.CategoryValidation, resp.Category)
	assert.Equal(t, 3, resp.Details["attempts"])
}
