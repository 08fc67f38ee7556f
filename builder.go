package authcore

import (
	"context"
	"errors"

	"github.com/crowdstack/authcore/internal/auditlog"
	"github.com/crowdstack/authcore/internal/vault"
	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
	"github.com/redis/go-redis/v9"
)

// DeniedNotifier is invoked by [Engine.Protect] wrappers before the
// denial error is returned, so the hosting UI can surface a
// notification exactly once at the enforcement boundary.
type DeniedNotifier func(*PermissionError)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  *redis.Client

	matrix   *permission.Matrix
	provider IdentityProvider

	auditSink  AuditSink
	diagnostic func(error)
	notifier   DeniedNotifier

	built bool
}

// New creates a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing every store. Required.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithMatrix sets the permission matrix. The matrix must be frozen;
// Build refuses a mutable one. Required.
func (b *Builder) WithMatrix(m *permission.Matrix) *Builder {
	b.matrix = m
	return b
}

// WithProvider sets the identity provider. Required.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithTokenKey sets the session token signing key.
func (b *Builder) WithTokenKey(key []byte) *Builder {
	b.config.Session.TokenKey = cloneBytes(key)
	return b
}

// WithAuditSink adds an extra sink alongside the persistent audit log.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithDiagnostics sets the callback that receives swallowed audit-write
// errors.
func (b *Builder) WithDiagnostics(fn func(error)) *Builder {
	b.diagnostic = fn
	return b
}

// WithDeniedNotifier sets the UI notification hook used by Protect.
func (b *Builder) WithDeniedNotifier(fn DeniedNotifier) *Builder {
	b.notifier = fn
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.matrix == nil {
		return nil, errors.New("permission matrix required")
	}
	if !b.matrix.Frozen() {
		return nil, errors.New("permission matrix must be frozen before Build")
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := session.NewTokenManager(cfg.Session.TokenKey)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		matrix:       b.matrix,
		provider:     b.provider,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		tokens:       tokens,
		factors:      newFactorStore(b.redis, cfg.MFA.FactorRedisPrefix),
		vault:        vault.New(b.redis, cfg.MFA.VaultRedisPrefix),
		metrics:      NewMetrics(cfg.Metrics),
		notifier:     b.notifier,
	}

	engine.auditLog = auditlog.NewStore(
		b.redis,
		cfg.Audit.RedisPrefix,
		cfg.Audit.MaxEventsPerIdentity,
		b.wrapDiagnostic(engine),
	)
	engine.audit = newAuditDispatcher(cfg.Audit, &fanOutSink{
		store: engine.auditLog,
		extra: b.auditSink,
	})

	b.built = true

	return engine, nil
}

func (b *Builder) wrapDiagnostic(engine *Engine) func(error) {
	user := b.diagnostic
	return func(err error) {
		engine.metricInc(MetricAuditLogWriteFailed)
		if user != nil {
			user(err)
		}
	}
}

// fanOutSink forwards every event to the persistent log and, when
// configured, to the caller's sink.
type fanOutSink struct {
	store *auditlog.Store
	extra AuditSink
}

func (s *fanOutSink) Emit(ctx context.Context, event AuditEvent) {
	s.store.Append(ctx, auditlog.Entry{
		ID:         event.ID,
		Timestamp:  event.Timestamp,
		EventType:  event.EventType,
		Success:    event.Success,
		IdentityID: event.IdentityID,
		FactorID:   event.FactorID,
		Error:      event.Error,
		Metadata:   event.Metadata,
	})
	if s.extra != nil {
		s.extra.Emit(ctx, event)
	}
}
