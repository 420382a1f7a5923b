// Package config loads and validates the tellerd runtime configuration.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// Duration wraps time.Duration so YAML can carry values like "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root tellerd configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Session     SessionConfig     `yaml:"session"`
	Audit       AuditConfig       `yaml:"audit"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Dialogue    DialogueConfig    `yaml:"dialogue"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RateLimitConfig carries the per-user sliding window ceilings.
// A zero value disables that window.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

// RedisConfig carries connection settings for Redis-backed stores.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	Backend string      `yaml:"backend"` // memory | redis
	TTL     Duration    `yaml:"ttl"`
	Redis   RedisConfig `yaml:"redis"`

	// EncryptionKey enables at-rest encryption of dialogue state. Keys are
	// base64-encoded 32-byte values; FallbackKeys keep old sessions readable
	// during rotation.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`

	// PIIMaskPatterns redacts filled slots whose names match any of these
	// regular expressions before they reach the backend.
	PIIMaskPatterns []string `yaml:"pii_mask_patterns"`
}

// EncryptionKeys decodes the configured base64 keys. Returns nil key material
// when encryption is not configured.
func (c *SessionConfig) EncryptionKeys() (active []byte, fallbacks [][]byte, err error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode encryption key: %w", err)
	}
	for i, raw := range c.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("decode fallback key %d: %w", i, err)
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

// AuditConfig selects and tunes the audit store backend.
type AuditConfig struct {
	Backend    string      `yaml:"backend"` // memory | redis | sqlite
	Redis      RedisConfig `yaml:"redis"`
	SQLitePath string      `yaml:"sqlite_path"`
}

// CoordinatorConfig tunes transaction dispatch.
type CoordinatorConfig struct {
	ExecutorTimeout Duration `yaml:"executor_timeout"`
}

// DialogueConfig tunes the dialogue state machine.
type DialogueConfig struct {
	MaxSlotAttempts int `yaml:"max_slot_attempts"`

	// Intents overrides or extends the built-in intent schemas. Values are
	// decoded loosely from YAML and validated via mapstructure.
	Intents map[string]map[string]any `yaml:"intents"`
}

// IntentOverride is the decoded shape of a DialogueConfig.Intents entry.
type IntentOverride struct {
	Slots         []string `mapstructure:"slots"`
	SideEffecting bool     `mapstructure:"side_effecting"`
}

// Load parses the YAML configuration at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.RateLimit == (RateLimitConfig{}) {
		c.RateLimit = RateLimitConfig{PerMinute: 10, PerHour: 100, PerDay: 500}
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = Duration(30 * time.Minute)
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = "memory"
	}
	if c.Audit.Backend == "sqlite" && c.Audit.SQLitePath == "" {
		c.Audit.SQLitePath = "data/audit.db"
	}
	if c.Coordinator.ExecutorTimeout == 0 {
		c.Coordinator.ExecutorTimeout = Duration(30 * time.Second)
	}
	if c.Dialogue.MaxSlotAttempts == 0 {
		c.Dialogue.MaxSlotAttempts = 3
	}
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	switch c.Audit.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown audit backend %q", c.Audit.Backend)
	}

	if c.Session.Backend == "redis" && c.Session.Redis.Address == "" {
		return fmt.Errorf("session backend is redis but no address is configured")
	}
	if c.Audit.Backend == "redis" && c.Audit.Redis.Address == "" {
		return fmt.Errorf("audit backend is redis but no address is configured")
	}

	return nil
}

// IntentSchemas decodes the configured intent overrides into domain schemas.
func (c *DialogueConfig) IntentSchemas() (map[string]domain.IntentSchema, error) {
	schemas := make(map[string]domain.IntentSchema, len(c.Intents))

	for intent, raw := range c.Intents {
		var override IntentOverride
		if err := mapstructure.Decode(raw, &override); err != nil {
			return nil, fmt.Errorf("decode intent %q: %w", intent, err)
		}
		if len(override.Slots) == 0 {
			return nil, fmt.Errorf("intent %q declares no slots", intent)
		}
		schemas[intent] = domain.IntentSchema{
			Slots:         override.Slots,
			SideEffecting: override.SideEffecting,
		}
	}

	return schemas, nil
}
