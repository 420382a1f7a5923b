package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/pkg/ports"
)

func echo(result any) ports.Executor {
	return ports.ExecutorFunc(func(ctx context.Context, intent string, slots map[string]any, userID string) (any, error) {
		return result, nil
	})
}

func TestRegistry_RegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	r.Register("transfer_money", echo("ok"))

	result, err := r.Execute(context.Background(), "transfer_money", nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestRegistry_ExecuteUnknownIntent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "missing", nil, "user-1")
	assert.ErrorContains(t, err, "no executor registered")
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register("transfer_money", echo("first"))
	r.Register("transfer_money", echo("second"))

	result, err := r.Execute(context.Background(), "transfer_money", nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "second", result)
}

func TestRegistry_IntentsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("pay_bill", echo(nil))
	r.Register("check_balance", echo(nil))

	assert.Equal(t, []string{"check_balance", "pay_bill"}, r.Intents())
}
