package domain

import "time"

// ConversationState defines the current phase of a dialogue session.
type ConversationState string

const (
	StateIdle                ConversationState = "idle"
	StateIntentClassified    ConversationState = "intent_classified"
	StateSlotsFilling        ConversationState = "slots_filling"
	StateConfirmationPending ConversationState = "confirmation_pending"
	StateActionExecuting     ConversationState = "action_executing"
	StateCompleted           ConversationState = "completed"
	StateError               ConversationState = "error"
)

// validTransitions is the authoritative transition table. Transitions outside
// it are rejected by the dialogue machine (no-op, returns false).
var validTransitions = map[ConversationState][]ConversationState{
	StateIdle:                {StateIntentClassified, StateError},
	StateIntentClassified:    {StateSlotsFilling, StateError},
	StateSlotsFilling:        {StateConfirmationPending, StateActionExecuting, StateError},
	StateConfirmationPending: {StateActionExecuting, StateSlotsFilling, StateError},
	StateActionExecuting:     {StateCompleted, StateError},
	StateCompleted:           {StateIdle},
	StateError:               {StateIdle},
}

// CanTransition reports whether the transition table permits from -> to.
func CanTransition(from, to ConversationState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state requires a reset before a new intent.
func (s ConversationState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// HistoryEntry is one turn of the conversation transcript.
type HistoryEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// StateTransition records one accepted FSM transition.
type StateTransition struct {
	From ConversationState `json:"from"`
	To   ConversationState `json:"to"`
	At   time.Time         `json:"at"`
}

// DialogueState represents the full per-session snapshot of the dialogue.
type DialogueState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	Current ConversationState `json:"current_state"`

	// Intent lock: once IntentLocked is true, Intent cannot change until the
	// state is reset to Idle. This is what prevents a noisy mid-flow
	// classification from hijacking an in-progress multi-turn action.
	Intent           string  `json:"intent,omitempty"`
	IntentConfidence float64 `json:"intent_confidence,omitempty"`
	IntentLocked     bool    `json:"intent_locked"`

	// RequiredSlots order is the sole determinant of next-prompt selection.
	RequiredSlots []string          `json:"required_slots,omitempty"`
	FilledSlots   map[string]any    `json:"filled_slots,omitempty"`
	SlotErrors    map[string]string `json:"slot_errors,omitempty"`
	SlotAttempts  map[string]int    `json:"slot_attempts,omitempty"`

	ConfirmationPending bool `json:"confirmation_pending"`

	TurnCount   int               `json:"turn_count"`
	History     []HistoryEntry    `json:"history,omitempty"`
	Transitions []StateTransition `json:"transitions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDialogueState creates a fresh Idle state for a session.
func NewDialogueState(sessionID, userID string) *DialogueState {
	now := time.Now().UTC()
	return &DialogueState{
		SessionID:    sessionID,
		UserID:       userID,
		Current:      StateIdle,
		FilledSlots:  make(map[string]any),
		SlotErrors:   make(map[string]string),
		SlotAttempts: make(map[string]int),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MissingSlots returns the ordered subsequence of RequiredSlots lacking a
// value. It is always recomputed from RequiredSlots and FilledSlots, never
// cached. The first element doubles as "what to ask next".
func (s *DialogueState) MissingSlots() []string {
	var missing []string
	for _, name := range s.RequiredSlots {
		if _, ok := s.FilledSlots[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Clone returns a deep copy of the state, isolating maps and slices so stores
// can hand out snapshots without aliasing.
func (s *DialogueState) Clone() *DialogueState {
	if s == nil {
		return nil
	}
	out := *s
	out.RequiredSlots = append([]string(nil), s.RequiredSlots...)
	out.History = append([]HistoryEntry(nil), s.History...)
	out.Transitions = append([]StateTransition(nil), s.Transitions...)
	out.FilledSlots = make(map[string]any, len(s.FilledSlots))
	for k, v := range s.FilledSlots {
		out.FilledSlots[k] = v
	}
	out.SlotErrors = make(map[string]string, len(s.SlotErrors))
	for k, v := range s.SlotErrors {
		out.SlotErrors[k] = v
	}
	out.SlotAttempts = make(map[string]int, len(s.SlotAttempts))
	for k, v := range s.SlotAttempts {
		out.SlotAttempts[k] = v
	}
	return &out
}
