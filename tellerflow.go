package tellerflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tellerflow/tellerflow/internal/logging"
	"github.com/tellerflow/tellerflow/pkg/coordinator"
	"github.com/tellerflow/tellerflow/pkg/dialogue"
	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/gate"
	"github.com/tellerflow/tellerflow/pkg/observability"
	"github.com/tellerflow/tellerflow/pkg/ports"
	"github.com/tellerflow/tellerflow/pkg/recovery"
	"github.com/tellerflow/tellerflow/pkg/registry"
	"github.com/tellerflow/tellerflow/pkg/resolver"
	"github.com/tellerflow/tellerflow/pkg/schema"
	"github.com/tellerflow/tellerflow/pkg/session"
)

// TurnInput is one user turn as delivered by the transport layer. Intent,
// Confidence and Entities come from the (external) classifier and entity
// extractor; ReferenceAmount is the balance reference used to resolve
// implicit amounts like "send all".
type TurnInput struct {
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	Message         string         `json:"message"`
	Intent          string         `json:"intent,omitempty"`
	Confidence      float64        `json:"confidence,omitempty"`
	Entities        map[string]any `json:"entities,omitempty"`
	ReferenceAmount *float64       `json:"reference_amount,omitempty"`
}

// TurnResult is the outcome of one processed turn. State is a snapshot taken
// before any terminal reset; Record is set when the turn reached the
// transaction coordinator.
type TurnResult struct {
	Response recovery.Response         `json:"response"`
	State    *domain.DialogueState     `json:"state,omitempty"`
	Record   *domain.IdempotencyRecord `json:"record,omitempty"`
}

// Orchestrator is the high-level entry point. It wires the request gate, the
// resolver, the dialogue machine, the transaction coordinator and the
// recovery composer behind a single ProcessTurn call.
type Orchestrator struct {
	sessions *session.Manager
	coord    *coordinator.Coordinator
	registry *domain.SchemaRegistry
	limiter  *gate.RateLimiter

	executors       *registry.Registry
	slotSchema      schema.Schema
	maxSlotAttempts int
	logger          *slog.Logger
	metrics         *observability.Metrics

	// collected by options, consumed once in New
	rateLimits      gate.Limits
	executorTimeout time.Duration
	locker          ports.DistributedLocker
}

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a structured logger for all components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithRateLimits overrides the per-user sliding window ceilings.
func WithRateLimits(limits gate.Limits) Option {
	return func(o *Orchestrator) {
		o.rateLimits = limits
	}
}

// WithSchemaRegistry replaces the built-in intent schema registry.
func WithSchemaRegistry(registry *domain.SchemaRegistry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithExecutor registers the executor dispatched for an intent.
func WithExecutor(intent string, executor ports.Executor) Option {
	return func(o *Orchestrator) {
		o.executors.Register(intent, executor)
	}
}

// WithSlotSchema replaces the built-in slot value validation schema.
func WithSlotSchema(s schema.Schema) Option {
	return func(o *Orchestrator) {
		o.slotSchema = s
	}
}

// WithExecutorTimeout overrides the bounded timeout around executors.
func WithExecutorTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.executorTimeout = d
	}
}

// WithMaxSlotAttempts overrides the per-slot re-prompt cap.
func WithMaxSlotAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSlotAttempts = n
		}
	}
}

// WithLocker enables distributed session locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *Orchestrator) {
		o.locker = locker
	}
}

// New constructs an Orchestrator over injected stores. There are no global
// singletons; everything shared lives on the returned value.
func New(sessionStore ports.SessionStore, auditStore ports.AuditStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:        domain.NewSchemaRegistry(),
		executors:       registry.NewRegistry(),
		slotSchema:      schema.DefaultSlots(),
		maxSlotAttempts: dialogue.DefaultMaxSlotAttempts,
		rateLimits:      gate.DefaultLimits,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	sessionOpts := []session.Option{session.WithLogger(o.logger)}
	if o.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(o.locker))
	}
	o.sessions = session.NewManager(sessionStore, sessionOpts...)

	coordOpts := []coordinator.Option{coordinator.WithLogger(o.logger)}
	if o.executorTimeout > 0 {
		coordOpts = append(coordOpts, coordinator.WithExecutorTimeout(o.executorTimeout))
	}
	o.coord = coordinator.New(auditStore, coordOpts...)

	o.limiter = gate.NewRateLimiter(o.rateLimits)

	return o
}

// Sessions returns the session manager, for hosts that need direct access.
func (o *Orchestrator) Sessions() *session.Manager {
	return o.sessions
}

// AuditTrail returns all audit records for a session, most recent first.
func (o *Orchestrator) AuditTrail(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error) {
	return o.coord.AuditTrail(ctx, sessionID)
}

// History returns up to limit audit records for a user, most recent first.
func (o *Orchestrator) History(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error) {
	return o.coord.History(ctx, userID, limit)
}

// ProcessTurn runs the full pipeline for one turn: gate -> resolver ->
// dialogue machine -> confirmation -> coordinator -> recovery composition.
// Gate rejections short-circuit before any state is loaded. Turns for one
// session are serialized by the session manager's per-session lock.
func (o *Orchestrator) ProcessTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	if err := gate.ValidateMessage(input.Message); err != nil {
		o.metrics.ObserveTurn(string(recovery.CategoryValidation))
		return &TurnResult{Response: recovery.MessageRejected(err)}, nil
	}

	if allowed, retry := o.limiter.Check(input.UserID, input.SessionID); !allowed {
		o.metrics.ObserveRateLimitRejection()
		o.metrics.ObserveTurn(string(recovery.CategoryRateLimit))
		return &TurnResult{Response: recovery.RateLimited(retry)}, nil
	}
	o.limiter.Track(input.UserID, input.SessionID)

	var result *TurnResult
	err := o.sessions.WithLock(ctx, input.SessionID, func(ctx context.Context) error {
		var err error
		result, err = o.processLocked(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.metrics.ObserveTurn(string(result.Response.Category))
	return result, nil
}

// processLocked runs the state-touching part of the pipeline. The caller
// holds the session lock.
func (o *Orchestrator) processLocked(ctx context.Context, input TurnInput) (*TurnResult, error) {
	store := o.sessions.Store()

	state, err := store.Load(ctx, input.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		state = domain.NewDialogueState(input.SessionID, input.UserID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := time.Now().UTC()
	state.TurnCount++
	state.History = append(state.History, domain.HistoryEntry{Role: "user", Text: input.Message, Timestamp: now})

	m := dialogue.New(state, o.registry,
		dialogue.WithMaxSlotAttempts(o.maxSlotAttempts),
		dialogue.WithLogger(o.logger),
	)

	var resp recovery.Response
	var record *domain.IdempotencyRecord
	if state.Current == domain.StateConfirmationPending {
		resp, record = o.handleConfirmation(ctx, m, input)
	} else {
		resp, record = o.advanceDialogue(ctx, m, input)
	}

	final := m.State()
	final.History = append(final.History, domain.HistoryEntry{Role: "assistant", Text: resp.Message, Timestamp: time.Now().UTC()})
	snapshot := final.Clone()

	// Terminal states reset to a fresh Idle state so the next turn can
	// start a new intent. The returned snapshot still shows the terminal
	// state the turn ended in.
	if final.Current.Terminal() {
		m.ResetForNextTurn()
	}

	if err := store.Save(ctx, input.SessionID, m.State()); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &TurnResult{Response: resp, State: snapshot, Record: record}, nil
}

// advanceDialogue handles classification, negation, slot filling and the
// completion check for a non-confirmation turn.
func (o *Orchestrator) advanceDialogue(ctx context.Context, m *dialogue.Machine, input TurnInput) (recovery.Response, *domain.IdempotencyRecord) {
	state := m.State()
	neg := resolver.DetectNegation(input.Message)

	// Classification. The intent lock makes mid-flow reclassification a
	// silent no-op, so only the unlocked path can reject here. Negation is
	// validated against the effective intent before it gets locked, so a
	// turn that both classifies and negates incompatibly leaves no trace.
	if !state.IntentLocked && input.Intent == "" {
		return recovery.UnknownIntent(""), nil
	}
	effectiveIntent := state.Intent
	if !state.IntentLocked {
		effectiveIntent = input.Intent
	}
	if valid, reason := resolver.ValidateNegationForIntent(effectiveIntent, neg); !valid {
		// Re-prompt without advancing the FSM.
		return recovery.NegationRejected(effectiveIntent, reason), nil
	}
	if !state.IntentLocked && !m.SetIntent(input.Intent, input.Confidence) {
		return recovery.UnknownIntent(input.Intent), nil
	}

	if state.Current == domain.StateIntentClassified {
		m.Transition(domain.StateSlotsFilling)
	}

	values := make(map[string]any, len(input.Entities))
	for k, v := range input.Entities {
		values[k] = v
	}

	// An account-type negation shrinks the candidate domain: drop the
	// excluded value from this turn's entities and from prior fills.
	if neg.Present && neg.Scope == domain.ScopeAccountType && neg.Target != "" {
		for _, slot := range []string{domain.SlotAccountType, domain.SlotFromAccount} {
			if v, ok := values[slot]; ok && fmt.Sprintf("%v", v) == neg.Target {
				delete(values, slot)
			}
			if v, ok := state.FilledSlots[slot]; ok && fmt.Sprintf("%v", v) == neg.Target {
				m.ClearSlot(slot)
			}
		}
	}

	// Implicit amounts ("send all", "half") resolve against the
	// caller-supplied reference value, typically the account balance.
	if slotRequired(state, domain.SlotAmount) {
		if _, ok := values[domain.SlotAmount]; !ok {
			if token := resolver.DetectImplicitAmount(input.Message); token != domain.AmountNone {
				if input.ReferenceAmount == nil {
					if !m.RecordSlotError(domain.SlotAmount, "implicit amount needs a balance reference") {
						m.Transition(domain.StateError)
						return recovery.SlotRetriesExhausted(domain.SlotAmount, o.maxSlotAttempts), nil
					}
					return recovery.InvalidSlotValue(domain.SlotAmount,
						fmt.Sprintf("cannot resolve %q without an account balance", token)), nil
				}
				if amount, ok := resolver.ResolveImplicitAmount(token, *input.ReferenceAmount); ok {
					values[domain.SlotAmount] = amount
				}
			}
		}
	}

	// Keyword hints pre-fill the account type when neither this turn's
	// entities nor a prior fill provide one. A hinted value never overrides
	// an explicit entity and never reintroduces a negated value.
	if slotRequired(state, domain.SlotAccountType) {
		_, inValues := values[domain.SlotAccountType]
		_, filled := state.FilledSlots[domain.SlotAccountType]
		if !inValues && !filled {
			if hint := resolver.InferAccountTypeHint(input.Message); hint != "" && hint != neg.Target {
				values[domain.SlotAccountType] = hint
			}
		}
	}

	// Value validation happens before anything is committed, in required-slot
	// order so the user is corrected about one slot at a time.
	for _, slot := range state.RequiredSlots {
		value, ok := values[slot]
		if !ok {
			continue
		}
		if err := o.slotSchema.Validate(slot, value); err != nil {
			delete(values, slot)
			reason := err.Error()
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				reason = verr.Reason
			}
			if !m.RecordSlotError(slot, reason) {
				m.Transition(domain.StateError)
				return recovery.SlotRetriesExhausted(slot, o.maxSlotAttempts), nil
			}
			return recovery.InvalidSlotValue(slot, reason), nil
		}
	}

	if len(values) > 0 {
		if ok, errs := m.FillSlotsBatch(values); !ok {
			o.logger.WarnContext(ctx, "some extracted entities were not accepted",
				"session_id", state.SessionID, "intent", state.Intent, "rejected", errs)
		}
	}

	if missing := m.MissingSlots(); len(missing) > 0 {
		return o.promptForSlot(state, missing[0], input.Message), nil
	}

	if m.NeedsConfirmation() {
		m.Transition(domain.StateConfirmationPending)
		state.ConfirmationPending = true
		return confirmationPrompt(state), nil
	}

	return o.dispatch(ctx, m)
}

// handleConfirmation resolves the pending yes/no for a side-effecting action.
func (o *Orchestrator) handleConfirmation(ctx context.Context, m *dialogue.Machine, input TurnInput) (recovery.Response, *domain.IdempotencyRecord) {
	state := m.State()

	confirmed, recognized := parseConfirmation(input.Message)
	if !recognized {
		return recovery.Response{
			Message:     fmt.Sprintf("please answer yes or no: go ahead with %s?", humanize(state.Intent)),
			Suggestions: []string{"yes", "no"},
		}, nil
	}

	state.ConfirmationPending = false
	if !confirmed {
		m.Transition(domain.StateError)
		return recovery.ConfirmationDeclined(state.Intent), nil
	}

	return o.dispatch(ctx, m)
}

// dispatch hands the completed intent to the transaction coordinator and maps
// the record back to a user-facing response.
func (o *Orchestrator) dispatch(ctx context.Context, m *dialogue.Machine) (recovery.Response, *domain.IdempotencyRecord) {
	state := m.State()
	intent := state.Intent

	executor, ok := o.executors.Lookup(intent)
	if !ok {
		m.Transition(domain.StateError)
		return recovery.SystemFailure(fmt.Errorf("no executor registered for intent %s", intent)), nil
	}

	m.Transition(domain.StateActionExecuting)

	started := time.Now()
	rec, err := o.coord.Execute(ctx, coordinator.Request{
		UserID:    state.UserID,
		SessionID: state.SessionID,
		Intent:    intent,
		Slots:     state.FilledSlots,
	}, executor)
	o.metrics.ObserveExecution(intent, time.Since(started))

	if err != nil {
		m.Transition(domain.StateError)
		if errors.Is(err, domain.ErrRequestInFlight) {
			return recovery.DuplicateInFlight(intent), rec
		}
		return recovery.SystemFailure(err), rec
	}

	switch rec.Status {
	case domain.StatusSuccess, domain.StatusRolledBack:
		m.Transition(domain.StateCompleted)
		return recovery.Response{
			Message: fmt.Sprintf("%s completed", humanize(intent)),
			Details: map[string]any{"ref_id": rec.RefID},
		}, rec
	default:
		m.Transition(domain.StateError)
		system := strings.Contains(rec.ErrorMessage, "timed out") ||
			strings.Contains(rec.ErrorMessage, "panic")
		return recovery.ExecutionFailed(intent, rec.ErrorMessage, system), rec
	}
}

// promptForSlot asks for the next missing slot. For billers the utterance may
// carry a category hint worth passing along to the host.
func (o *Orchestrator) promptForSlot(state *domain.DialogueState, slot, message string) recovery.Response {
	resp := recovery.Response{
		Message: fmt.Sprintf("what is the %s?", humanize(slot)),
	}
	if slot == domain.SlotBiller {
		if category := resolver.InferBillerCategoryHint(message); category != "" {
			resp.Details = map[string]any{"biller_category": category}
		}
	}
	return resp
}

func confirmationPrompt(state *domain.DialogueState) recovery.Response {
	parts := make([]string, 0, len(state.RequiredSlots))
	for _, slot := range state.RequiredSlots {
		parts = append(parts, fmt.Sprintf("%s=%v", slot, state.FilledSlots[slot]))
	}
	return recovery.Response{
		Message:     fmt.Sprintf("please confirm %s (%s)", humanize(state.Intent), strings.Join(parts, ", ")),
		Suggestions: []string{"yes", "no"},
	}
}

func parseConfirmation(text string) (confirmed, recognized bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "y", "yes", "yeah", "yep", "confirm", "true", "1":
		return true, true
	case "n", "no", "nope", "cancel", "false", "0":
		return false, true
	}
	return false, false
}

func slotRequired(state *domain.DialogueState, name string) bool {
	for _, slot := range state.RequiredSlots {
		if slot == name {
			return true
		}
	}
	return false
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
