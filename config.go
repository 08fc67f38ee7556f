package authcore

import (
	"errors"
	"time"
)

// Config defines the engine's tunable surface. Zero values are filled
// from defaultConfig by [New]; the struct is cloned on Build and treated
// as immutable afterwards.
type Config struct {
	Session SessionConfig
	MFA     MFAConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// SessionConfig controls the local session store and its signed tokens.
type SessionConfig struct {
	// RedisPrefix namespaces session keys.
	RedisPrefix string
	// Lifetime is the absolute session expiry measured from creation.
	// It is never extended by activity.
	Lifetime time.Duration
	// TokenKey signs session tokens (HS256). Required.
	TokenKey []byte
}

// MFAConfig controls enrollment and backup code behavior.
type MFAConfig struct {
	// FactorRedisPrefix namespaces enrollment state records.
	FactorRedisPrefix string
	// VaultRedisPrefix namespaces backup code keys.
	VaultRedisPrefix string
	// BackupCodeCount is the batch size issued when enrollment
	// completes or codes are regenerated.
	BackupCodeCount int
}

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled bool
	// BufferSize is the dispatcher channel capacity.
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is
	// saturated. Dropped events are counted.
	DropIfFull bool
	// RedisPrefix namespaces the persistent per-identity event log.
	RedisPrefix string
	// MaxEventsPerIdentity caps the retained history per identity.
	MaxEventsPerIdentity int
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "acs",
			Lifetime:    8 * time.Hour,
		},
		MFA: MFAConfig{
			FactorRedisPrefix: "amf",
			VaultRedisPrefix:  "bcv",
			BackupCodeCount:   10,
		},
		Audit: AuditConfig{
			Enabled:              true,
			BufferSize:           256,
			DropIfFull:           true,
			RedisPrefix:          "sal",
			MaxEventsPerIdentity: 500,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks invariants that Build depends on.
func (c *Config) Validate() error {
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if len(c.Session.TokenKey) < 32 {
		return errors.New("session token key must be at least 32 bytes")
	}
	if c.MFA.BackupCodeCount <= 0 {
		return errors.New("backup code count must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Session.TokenKey = cloneBytes(c.Session.TokenKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
