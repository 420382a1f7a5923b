// Package coordinator executes side-effecting banking actions exactly once
// per logical request, with a durable audit trail.
//
// The coordinator owns the idempotency discipline: deterministic keys,
// duplicate replay, PENDING/terminal record lifecycle, and the catch boundary
// that converts every executor failure (error, panic, timeout) into a FAILURE
// record instead of letting it propagate raw.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tellerflow/tellerflow/internal/logging"
	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

// DefaultExecutorTimeout bounds a single executor invocation. On timeout the
// record transitions to FAILURE; it is never left PENDING indefinitely.
const DefaultExecutorTimeout = 30 * time.Second

// Request describes one logical action dispatch.
type Request struct {
	UserID    string
	SessionID string
	Intent    string
	Slots     map[string]any
}

// Coordinator dispatches actions to injected executors with idempotency and
// audit guarantees. Safe for concurrent use.
type Coordinator struct {
	audit   ports.AuditStore
	cache   *resultCache
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithExecutorTimeout overrides the bounded timeout applied around executors.
func WithExecutorTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a Coordinator over a durable audit store.
func New(audit ports.AuditStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		audit:   audit,
		cache:   newResultCache(),
		timeout: DefaultExecutorTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lookupDuplicate checks the durable store first, then the in-process cache,
// for a prior record under key. A store error other than not-found means the
// audit trail is unreachable and the caller must fail closed.
func (c *Coordinator) lookupDuplicate(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec, err := c.audit.GetByKey(ctx, key)
	if err == nil {
		return rec, nil
	}
	if err != domain.ErrRecordNotFound {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuditUnavailable, err)
	}
	if cached, ok := c.cache.get(key); ok {
		return cached, nil
	}
	return nil, nil
}

// Execute runs the action exactly once for its idempotency key.
//
// A prior terminal record is replayed without invoking the executor. A prior
// PENDING record means another attempt is in flight and yields
// domain.ErrRequestInFlight. If the audit store is unreachable the executor
// is never invoked (fail closed). The terminal record is always written (or
// at minimum cached) before Execute returns.
func (c *Coordinator) Execute(ctx context.Context, req Request, executor ports.Executor) (*domain.IdempotencyRecord, error) {
	key := ComputeIdempotencyKey(req.UserID, req.Intent, req.Slots)

	prior, err := c.lookupDuplicate(ctx, key)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if prior.Status.Terminal() {
			c.logger.InfoContext(ctx, "duplicate request replayed",
				"key", key, "status", prior.Status, "intent", req.Intent)
			return prior, nil
		}
		return nil, fmt.Errorf("%w: key %s", domain.ErrRequestInFlight, key)
	}

	now := time.Now().UTC()
	rec := &domain.IdempotencyRecord{
		Key:           key,
		RefID:         uuid.NewString(),
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Intent:        req.Intent,
		Status:        domain.StatusPending,
		InputSnapshot: cloneSlots(req.Slots),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Fail closed: no PENDING record, no side effect.
	if err := c.audit.Append(ctx, rec); err != nil {
		if err == domain.ErrDuplicateRecord {
			// Lost a race with a concurrent attempt for the same key.
			return nil, fmt.Errorf("%w: key %s", domain.ErrRequestInFlight, key)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAuditUnavailable, err)
	}

	result, execErr := c.invoke(ctx, req, executor)

	rec.UpdatedAt = time.Now().UTC()
	if execErr != nil {
		rec.Status = domain.StatusFailure
		rec.ErrorMessage = execErr.Error()
	} else {
		rec.Status = domain.StatusSuccess
		rec.OutputSnapshot = result
	}

	// The cache keeps the terminal outcome even if the durable write fails,
	// so the record is never observed PENDING forever in-process.
	c.cache.put(rec)

	// The terminal write must happen even when the caller has gone away;
	// cancellation after the executor started still ends in a terminal record.
	persistCtx := context.WithoutCancel(ctx)
	if err := c.audit.Update(persistCtx, rec); err != nil {
		c.logger.ErrorContext(ctx, "failed to persist terminal audit record",
			"key", key, "ref_id", rec.RefID, "status", rec.Status, "err", err)
		return rec, fmt.Errorf("action finished (%s) but audit persistence failed: %w", rec.Status, err)
	}

	return rec, nil
}

// invoke runs the executor under the bounded timeout, converting panics and
// timeouts into errors. Cancellation after this point maps to a FAILURE, not
// an abandoned record.
func (c *Coordinator) invoke(ctx context.Context, req Request, executor ports.Executor) (result any, err error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		res, execErr := executor.Execute(runCtx, req.Intent, req.Slots, req.UserID)
		done <- outcome{result: res, err: execErr}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-runCtx.Done():
		return nil, fmt.Errorf("executor timed out after %s: %w", c.timeout, runCtx.Err())
	}
}

// Rollback marks a SUCCESS record as ROLLED_BACK. It does not reverse the
// underlying side effect; compensating logic belongs to each executor and is
// out of scope here.
func (c *Coordinator) Rollback(ctx context.Context, key string) error {
	rec, err := c.audit.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if rec.Status != domain.StatusSuccess {
		return fmt.Errorf("cannot roll back record in status %s", rec.Status)
	}
	rec.Status = domain.StatusRolledBack
	rec.UpdatedAt = time.Now().UTC()
	if err := c.audit.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to mark record rolled back: %w", err)
	}
	c.cache.put(rec)
	return nil
}

// AuditTrail returns all records for a session, most recent first.
func (c *Coordinator) AuditTrail(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error) {
	return c.audit.GetBySession(ctx, sessionID)
}

// History returns up to limit records for a user, most recent first.
func (c *Coordinator) History(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error) {
	return c.audit.GetByUser(ctx, userID, limit)
}

func cloneSlots(slots map[string]any) map[string]any {
	out := make(map[string]any, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}
