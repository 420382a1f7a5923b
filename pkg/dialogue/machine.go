// Package dialogue implements the per-session dialogue state machine: intent
// locking, slot bookkeeping, and FSM transitions over a domain.DialogueState.
//
// All mutators return a boolean success flag rather than an error; callers
// must check the flag before assuming progress. The enclosing caller is
// responsible for serializing access to a session's state.
package dialogue

import (
	"log/slog"
	"time"

	"github.com/tellerflow/tellerflow/internal/logging"
	"github.com/tellerflow/tellerflow/pkg/domain"
)

// DefaultMaxSlotAttempts caps re-prompt retries per slot before the dialogue
// gives up and moves to the error state.
const DefaultMaxSlotAttempts = 3

// Machine wraps a DialogueState with the operations of the dialogue FSM.
type Machine struct {
	state           *domain.DialogueState
	registry        *domain.SchemaRegistry
	maxSlotAttempts int
	logger          *slog.Logger
}

// Option configures the Machine.
type Option func(*Machine)

// WithMaxSlotAttempts overrides the per-slot re-prompt cap.
func WithMaxSlotAttempts(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxSlotAttempts = n
		}
	}
}

// WithLogger configures a logger for rejected operations.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New wraps an existing state with the machine operations.
func New(state *domain.DialogueState, registry *domain.SchemaRegistry, opts ...Option) *Machine {
	m := &Machine{
		state:           state,
		registry:        registry,
		maxSlotAttempts: DefaultMaxSlotAttempts,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the underlying dialogue state.
func (m *Machine) State() *domain.DialogueState {
	return m.state
}

// Transition moves the FSM to the target state if the transition table allows
// it. Rejected transitions are a no-op and return false. Accepted transitions
// are appended to the state's transition history.
func (m *Machine) Transition(to domain.ConversationState) bool {
	from := m.state.Current
	if !domain.CanTransition(from, to) {
		m.logger.Debug("transition rejected", "from", from, "to", to, "session_id", m.state.SessionID)
		return false
	}
	now := time.Now().UTC()
	m.state.Current = to
	m.state.Transitions = append(m.state.Transitions, domain.StateTransition{From: from, To: to, At: now})
	m.state.UpdatedAt = now
	return true
}

// SetIntent locks the dialogue onto an intent and loads its required slots.
// It fails (no mutation) if an intent is already locked or the intent is not
// registered. On success it auto-transitions Idle -> IntentClassified.
func (m *Machine) SetIntent(name string, confidence float64) bool {
	if m.state.IntentLocked {
		m.logger.Debug("intent locked, classification ignored",
			"locked_intent", m.state.Intent, "rejected_intent", name, "session_id", m.state.SessionID)
		return false
	}
	schema, ok := m.registry.Lookup(name)
	if !ok {
		return false
	}
	if m.state.Current != domain.StateIdle {
		return false
	}

	m.state.Intent = name
	m.state.IntentConfidence = confidence
	m.state.RequiredSlots = schema.Slots
	m.state.IntentLocked = true
	return m.Transition(domain.StateIntentClassified)
}

// FillSlot stores a value for a required slot, clearing any prior error for
// it. Returns false for slot names outside the intent's schema.
func (m *Machine) FillSlot(name string, value any) bool {
	if !m.isRequiredSlot(name) {
		return false
	}
	m.state.FilledSlots[name] = value
	delete(m.state.SlotErrors, name)
	m.state.UpdatedAt = time.Now().UTC()
	return true
}

// FillSlotsBatch applies FillSlot per entry, collecting per-key errors for
// unknown slot names without aborting the valid ones.
func (m *Machine) FillSlotsBatch(values map[string]any) (bool, map[string]string) {
	errs := make(map[string]string)
	for name, value := range values {
		if !m.FillSlot(name, value) {
			errs[name] = "unknown slot for intent " + m.state.Intent
		}
	}
	return len(errs) == 0, errs
}

// ClearSlot removes a slot value, the explicit user-correction path.
func (m *Machine) ClearSlot(name string) bool {
	if !m.isRequiredSlot(name) {
		return false
	}
	delete(m.state.FilledSlots, name)
	m.state.UpdatedAt = time.Now().UTC()
	return true
}

// MissingSlots returns the ordered required slots still lacking a value.
func (m *Machine) MissingSlots() []string {
	return m.state.MissingSlots()
}

// IsComplete reports whether every required slot has a value.
func (m *Machine) IsComplete() bool {
	return len(m.state.MissingSlots()) == 0
}

// NeedsConfirmation reports whether the completed intent requires explicit
// user confirmation before dispatch. Read-only intents skip confirmation.
func (m *Machine) NeedsConfirmation() bool {
	if !m.IsComplete() {
		return false
	}
	schema, ok := m.registry.Lookup(m.state.Intent)
	return ok && schema.SideEffecting
}

// RecordSlotError attaches a validation error to a slot and counts the
// attempt. It returns false once the re-prompt cap for the slot is exhausted.
func (m *Machine) RecordSlotError(name, message string) bool {
	if !m.isRequiredSlot(name) {
		return false
	}
	m.state.SlotErrors[name] = message
	m.state.SlotAttempts[name]++
	m.state.UpdatedAt = time.Now().UTC()
	return m.state.SlotAttempts[name] < m.maxSlotAttempts
}

// ResetForNextTurn produces a fresh Idle state for the session. Valid only
// from Completed or Error; otherwise returns (nil, false).
func (m *Machine) ResetForNextTurn() (*domain.DialogueState, bool) {
	if !m.state.Current.Terminal() {
		return nil, false
	}
	fresh := domain.NewDialogueState(m.state.SessionID, m.state.UserID)
	fresh.TurnCount = m.state.TurnCount
	m.state = fresh
	return fresh, true
}

func (m *Machine) isRequiredSlot(name string) bool {
	for _, slot := range m.state.RequiredSlots {
		if slot == name {
			return true
		}
	}
	return false
}
