package config_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerflow/tellerflow/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tellerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.RateLimit.PerMinute)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL.Std())
	assert.Equal(t, "memory", cfg.Audit.Backend)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.ExecutorTimeout.Std())
	assert.Equal(t, 3, cfg.Dialogue.MaxSlotAttempts)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
logging:
  level: debug
rate_limit:
  per_minute: 5
  per_hour: 50
  per_day: 200
session:
  backend: redis
  ttl: 15m
  redis:
    address: localhost:6379
audit:
  backend: sqlite
  sqlite_path: /tmp/audit.db
coordinator:
  executor_timeout: 10s
dialogue:
  max_slot_attempts: 2
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.RateLimit.PerMinute)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL.Std())
	assert.Equal(t, "sqlite", cfg.Audit.Backend)
	assert.Equal(t, "/tmp/audit.db", cfg.Audit.SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.Coordinator.ExecutorTimeout.Std())
	assert.Equal(t, 2, cfg.Dialogue.MaxSlotAttempts)
}

func TestLoad_RedisBackendRequiresAddress(t *testing.T) {
	path := writeConfig(t, `
session:
  backend: redis
`)
	_, err := config.Load(path)
	assert.ErrorContains(t, err, "no address")
}

func TestLoad_UnknownBackend(t *testing.T) {
	path := writeConfig(t, `
audit:
  backend: postgres
`)
	_, err := config.Load(path)
	assert.ErrorContains(t, err, "unknown audit backend")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
session:
  ttl: banana
`)
	_, err := config.Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestDialogueConfig_IntentSchemas(t *testing.T) {
	path := writeConfig(t, `
dialogue:
  intents:
    close_account:
      slots: [account_type]
      side_effecting: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	schemas, err := cfg.Dialogue.IntentSchemas()
	require.NoError(t, err)
	require.Contains(t, schemas, "close_account")
	assert.Equal(t, []string{"account_type"}, schemas["close_account"].Slots)
	assert.True(t, schemas["close_account"].SideEffecting)
}

func TestDialogueConfig_IntentSchemas_NoSlots(t *testing.T) {
	path := writeConfig(t, `
dialogue:
  intents:
    close_account:
      side_effecting: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, err = cfg.Dialogue.IntentSchemas()
	assert.ErrorContains(t, err, "declares no slots")
}

func TestSessionConfig_EncryptionKeys(t *testing.T) {
	cfg := config.SessionConfig{}
	active, fallbacks, err := cfg.EncryptionKeys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallbacks)

	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	old := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, 32))
	cfg = config.SessionConfig{EncryptionKey: key, FallbackKeys: []string{old}}

	active, fallbacks, err = cfg.EncryptionKeys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallbacks, 1)
	assert.Len(t, fallbacks[0], 32)

	cfg = config.SessionConfig{EncryptionKey: "not-base64!"}
	_, _, err = cfg.EncryptionKeys()
	assert.Error(t, err)
}
