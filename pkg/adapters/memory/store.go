// Package memory provides in-memory implementations of the tellerflow store
// ports, suitable for tests and single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

type sessionEntry struct {
	state     *domain.DialogueState
	expiresAt time.Time // zero means no expiry
}

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use. Expired sessions are pruned lazily.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]sessionEntry
	ttl  time.Duration
	now  func() time.Time
}

// SessionStoreOption configures the SessionStore.
type SessionStoreOption func(*SessionStore)

// WithTTL sets the inactivity expiration for sessions.
func WithTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		data: make(map[string]sessionEntry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the state in memory. Each Save refreshes the TTL.
func (s *SessionStore) Save(ctx context.Context, sessionID string, state *domain.DialogueState) error {
	entry := sessionEntry{state: state.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = entry
	return nil
}

// Load retrieves the state from memory, returning an isolated copy.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*domain.DialogueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.data, sessionID)
		return nil, domain.ErrSessionNotFound
	}

	return entry.state.Clone(), nil
}

// Delete removes the state.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the live (non-expired) session IDs.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sessions := make([]string, 0, len(s.data))
	for id, entry := range s.data {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.data, id)
			continue
		}
		sessions = append(sessions, id)
	}
	return sessions, nil
}
