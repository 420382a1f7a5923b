package memory

import (
	"context"
	"sync"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// AuditStore implements ports.AuditStore in memory.
// Records are append-only; per-user and per-session indexes preserve
// insertion order so queries can return most-recent-first.
type AuditStore struct {
	mu        sync.RWMutex
	records   map[string]*domain.IdempotencyRecord
	byUser    map[string][]string
	bySession map[string][]string
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		records:   make(map[string]*domain.IdempotencyRecord),
		byUser:    make(map[string][]string),
		bySession: make(map[string][]string),
	}
}

// Append adds a new record; the key must not already exist.
func (s *AuditStore) Append(ctx context.Context, record *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Key]; exists {
		return domain.ErrDuplicateRecord
	}
	s.records[record.Key] = record.CloneRecord()
	s.byUser[record.UserID] = append(s.byUser[record.UserID], record.Key)
	s.bySession[record.SessionID] = append(s.bySession[record.SessionID], record.Key)
	return nil
}

// Update replaces an existing record (the terminal status/output transition).
func (s *AuditStore) Update(ctx context.Context, record *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Key]; !exists {
		return domain.ErrRecordNotFound
	}
	s.records[record.Key] = record.CloneRecord()
	return nil
}

// GetByKey returns the record for an idempotency key.
func (s *AuditStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return record.CloneRecord(), nil
}

// GetByUser returns up to limit records for a user, most recent first.
func (s *AuditStore) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byUser[userID], limit), nil
}

// GetBySession returns all records for a session, most recent first.
func (s *AuditStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.bySession[sessionID], 0), nil
}

// collect walks an index newest-first. Caller must hold s.mu.
func (s *AuditStore) collect(keys []string, limit int) []*domain.IdempotencyRecord {
	out := make([]*domain.IdempotencyRecord, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if record, ok := s.records[keys[i]]; ok {
			out = append(out, record.CloneRecord())
		}
	}
	return out
}
