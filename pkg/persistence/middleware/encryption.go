package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

// envelopeSlot marks a stored state as an encrypted envelope. The real
// state lives AES-GCM sealed under this key; the envelope keeps only the
// identifiers a backend needs for indexing.
const envelopeSlot = "__encrypted__"

// ErrDecryptionFailed is returned when a stored envelope cannot be opened
// with the active key or any fallback key.
var ErrDecryptionFailed = errors.New("middleware: decryption failed")

// EncryptionConfig holds the keys for envelope encryption. ActiveKey seals
// new writes; FallbackKeys let reads succeed during key rotation.
type EncryptionConfig struct {
	ActiveKey    []byte
	FallbackKeys [][]byte
}

// NewEncryption returns a middleware that encrypts dialogue state at rest
// with AES-256-GCM. Keys must be 32 bytes. States written before the
// middleware was enabled load unchanged.
func NewEncryption(cfg EncryptionConfig) (Middleware, error) {
	if len(cfg.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes, got %d", len(cfg.ActiveKey))
	}
	for i, key := range cfg.FallbackKeys {
		if len(key) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes, got %d", i, len(key))
		}
	}

	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptedStore{next: next, cfg: cfg}
	}, nil
}

type encryptedStore struct {
	next ports.SessionStore
	cfg  EncryptionConfig
}

func (s *encryptedStore) Save(ctx context.Context, sessionID string, state *domain.DialogueState) error {
	if state == nil {
		return s.next.Save(ctx, sessionID, state)
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state for encryption: %w", err)
	}

	sealed, err := seal(s.cfg.ActiveKey, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	envelope := domain.NewDialogueState(state.SessionID, state.UserID)
	envelope.Current = state.Current
	envelope.UpdatedAt = state.UpdatedAt
	envelope.FilledSlots[envelopeSlot] = base64.StdEncoding.EncodeToString(sealed)

	return s.next.Save(ctx, sessionID, envelope)
}

func (s *encryptedStore) Load(ctx context.Context, sessionID string) (*domain.DialogueState, error) {
	stored, err := s.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	raw, ok := stored.FilledSlots[envelopeSlot].(string)
	if !ok {
		// Pre-encryption state, pass through.
		return stored, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt envelope: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := s.openWithRotation(sealed)
	if err != nil {
		return nil, err
	}

	var state domain.DialogueState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted state: %w", err)
	}
	if state.FilledSlots == nil {
		state.FilledSlots = make(map[string]any)
	}
	if state.SlotErrors == nil {
		state.SlotErrors = make(map[string]string)
	}
	if state.SlotAttempts == nil {
		state.SlotAttempts = make(map[string]int)
	}
	return &state, nil
}

func (s *encryptedStore) Delete(ctx context.Context, sessionID string) error {
	return s.next.Delete(ctx, sessionID)
}

func (s *encryptedStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

// openWithRotation tries the active key first, then each fallback key.
func (s *encryptedStore) openWithRotation(sealed []byte) ([]byte, error) {
	keys := append([][]byte{s.cfg.ActiveKey}, s.cfg.FallbackKeys...)
	for _, key := range keys {
		plaintext, err := open(key, sealed)
		if err == nil {
			return plaintext, nil
		}
	}
	return nil, ErrDecryptionFailed
}

func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
