/*
Package tellerflow is the orchestration core of a multi-turn conversational
banking agent: it turns a stream of natural-language turns into safely
executed, audited, exactly-once side-effecting actions.

The core is the dialogue state machine, the idempotent transaction
coordinator, and the context-aware entity resolver. Transport, intent
classification, entity extraction, and the banking business logic itself are
external collaborators injected by the host.

# Concept

Each session owns a DialogueState that moves through a fixed FSM (idle ->
intent classified -> slots filling -> confirmation pending -> action
executing -> completed, with error reachable from any non-terminal state).
Once an intent is locked it cannot be reclassified until the state resets,
which is what keeps a noisy mid-flow classification from hijacking an
in-progress transfer. Side-effecting actions flow through the transaction
coordinator, which deduplicates them by a deterministic content hash and
refuses to run anything it cannot audit.

# Usage

Construct an Orchestrator from a session store, an audit store, and one
executor per intent, then feed it turns:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/tellerflow/tellerflow"
		"github.com/tellerflow/tellerflow/pkg/adapters/memory"
		"github.com/tellerflow/tellerflow/pkg/ports"
	)

	func main() {
		orch := tellerflow.New(
			memory.NewSessionStore(),
			memory.NewAuditStore(),
			tellerflow.WithExecutor("transfer_money", ports.ExecutorFunc(
				func(ctx context.Context, intent string, slots map[string]any, userID string) (any, error) {
					// Real banking logic lives in the host.
					return map[string]any{"receipt": "r-1"}, nil
				},
			)),
		)

		result, err := orch.ProcessTurn(context.Background(), tellerflow.TurnInput{
			SessionID:  "sess-1",
			UserID:     "user-1",
			Message:    "I want to send money",
			Intent:     "transfer_money",
			Confidence: 0.95,
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(result.Response.Message)
	}

The orchestrator serializes turns per session, so concurrent calls for the
same session are applied in lock order rather than corrupting state.
*/
package tellerflow
