package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

// MaskedValue replaces slot values whose names match a PII pattern.
const MaskedValue = "***"

// NewPIIMasking returns a middleware that redacts filled slots whose names
// match any of the given regular expressions before state reaches the
// backend. Masking is lossy: redacted values are gone from storage, so the
// patterns should name slots that are never read back by executors
// (card numbers, SSNs), not operational slots like amount.
func NewPIIMasking(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return func(next ports.SessionStore) ports.SessionStore {
		return &piiStore{next: next, patterns: compiled}
	}, nil
}

type piiStore struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

func (s *piiStore) Save(ctx context.Context, sessionID string, state *domain.DialogueState) error {
	if state == nil || len(s.patterns) == 0 {
		return s.next.Save(ctx, sessionID, state)
	}

	masked := state.Clone()
	for key := range masked.FilledSlots {
		if s.matches(key) {
			masked.FilledSlots[key] = MaskedValue
		}
	}
	for key := range masked.SlotErrors {
		if s.matches(key) {
			masked.SlotErrors[key] = MaskedValue
		}
	}
	return s.next.Save(ctx, sessionID, masked)
}

func (s *piiStore) Load(ctx context.Context, sessionID string) (*domain.DialogueState, error) {
	return s.next.Load(ctx, sessionID)
}

func (s *piiStore) Delete(ctx context.Context, sessionID string) error {
	return s.next.Delete(ctx, sessionID)
}

func (s *piiStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

func (s *piiStore) matches(key string) bool {
	for _, re := range s.patterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
