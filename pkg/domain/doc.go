/*
Package domain contains the core domain models for the tellerflow orchestration core.

It defines the fundamental entities of the banking dialogue: the conversation
state machine (DialogueState and its transition table), the intent/slot schema
registry, negation and implicit-amount tokens produced by the resolver, and the
idempotency records written by the transaction coordinator. This package is kept
pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - DialogueState: Captures the runtime snapshot of a session (FSM state, intent lock, slots, history).
  - SchemaRegistry: Static intent -> ordered slot configuration.
  - Negation / ImplicitAmount: Structured resolver output consumed by slot filling.
  - IdempotencyRecord: Durable, append-only description of one action attempt.
*/
package domain
