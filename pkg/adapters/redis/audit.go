package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// AuditStore implements ports.AuditStore using Redis.
//
// Records live under <prefix><key> as JSON. Per-user and per-session
// indexes are Redis lists; LPUSH keeps the newest key at the head so
// range reads come back most-recent-first without sorting.
type AuditStore struct {
	client *backend.Client
	prefix string
}

// NewAuditStore creates a new Redis audit store with options.
func NewAuditStore(address, password string, db int, opts ...AuditOption) *AuditStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewAuditStoreFromClient(rdb, opts...)
}

// NewAuditStoreFromClient creates a new Redis audit store from an existing client.
func NewAuditStoreFromClient(client *backend.Client, opts ...AuditOption) *AuditStore {
	store := &AuditStore{
		client: client,
		prefix: "tellerflow:audit:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

type AuditOption func(*AuditStore)

// WithAuditPrefix sets the key prefix for audit records.
func WithAuditPrefix(prefix string) AuditOption {
	return func(s *AuditStore) {
		s.prefix = prefix
	}
}

func (s *AuditStore) recordKey(key string) string {
	return s.prefix + key
}

func (s *AuditStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *AuditStore) sessionKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

// Append adds a new record. SET NX makes the insert the atomic
// duplicate check across instances.
func (s *AuditStore) Append(ctx context.Context, record *domain.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.recordKey(record.Key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	if !created {
		return domain.ErrDuplicateRecord
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.userKey(record.UserID), record.Key)
	pipe.LPush(ctx, s.sessionKey(record.SessionID), record.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index audit record: %w", err)
	}

	return nil
}

// Update replaces an existing record. SET XX fails when the key was
// never appended.
func (s *AuditStore) Update(ctx context.Context, record *domain.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	updated, err := s.client.SetXX(ctx, s.recordKey(record.Key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update audit record: %w", err)
	}
	if !updated {
		return domain.ErrRecordNotFound
	}

	return nil
}

// GetByKey returns the record for an idempotency key.
func (s *AuditStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	val, err := s.client.Get(ctx, s.recordKey(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}

	var record domain.IdempotencyRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
	}

	return &record, nil
}

// GetByUser returns up to limit records for a user, most recent first.
func (s *AuditStore) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	keys, err := s.client.LRange(ctx, s.userKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user audit keys: %w", err)
	}

	return s.fetch(ctx, keys)
}

// GetBySession returns all records for a session, most recent first.
func (s *AuditStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error) {
	keys, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session audit keys: %w", err)
	}

	return s.fetch(ctx, keys)
}

// fetch resolves index keys to records in one MGET round trip.
func (s *AuditStore) fetch(ctx context.Context, keys []string) ([]*domain.IdempotencyRecord, error) {
	if len(keys) == 0 {
		return []*domain.IdempotencyRecord{}, nil
	}

	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = s.recordKey(k)
	}

	vals, err := s.client.MGet(ctx, fullKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit records: %w", err)
	}

	records := make([]*domain.IdempotencyRecord, 0, len(vals))
	for _, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue // Index entry without a record (should not happen)
		}
		var record domain.IdempotencyRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
		}
		records = append(records, &record)
	}

	return records, nil
}

// Close closes the redis client.
func (s *AuditStore) Close() error {
	return s.client.Close()
}
