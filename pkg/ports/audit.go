package ports

import (
	"context"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// AuditStore is the durable, append-only log of action attempts.
//
// Append must fail with domain.ErrDuplicateRecord if the record key already
// exists. Update exists solely for the single terminal status/output
// transition (and Success -> RolledBack); it must fail with
// domain.ErrRecordNotFound for unknown keys. Records are never deleted by the
// core; retention is a store concern.
type AuditStore interface {
	Append(ctx context.Context, record *domain.IdempotencyRecord) error
	Update(ctx context.Context, record *domain.IdempotencyRecord) error

	// GetByKey returns the record for an idempotency key, or domain.ErrRecordNotFound.
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error)

	// GetByUser returns up to limit records for a user, most recent first.
	GetByUser(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error)

	// GetBySession returns all records for a session, most recent first.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error)
}
