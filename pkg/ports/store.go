package ports

import (
	"context"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// SessionStore defines the interface for persisting dialogue state.
// Implementations may expire sessions after a TTL of inactivity.
type SessionStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.DialogueState) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist or expired.
	Load(ctx context.Context, sessionID string) (*domain.DialogueState, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all live sessions.
	List(ctx context.Context) ([]string, error)
}
