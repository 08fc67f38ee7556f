package authcore

import (
	"context"
	"time"

	"github.com/crowdstack/authcore/internal/auditlog"
	"github.com/crowdstack/authcore/internal/vault"
	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
)

// Engine is the security core entry point. Construct it through
// [Builder.Build]; all methods are then safe for concurrent use.
type Engine struct {
	config Config

	matrix   *permission.Matrix
	provider IdentityProvider

	sessionStore *session.Store
	tokens       *session.TokenManager
	factors      *factorStore
	vault        *vault.Vault
	auditLog     *auditlog.Store

	audit   *auditDispatcher
	metrics *Metrics

	notifier DeniedNotifier
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a deep copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher dropped
// under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditLogFailures reports how many persistent audit writes were
// swallowed. Operators should alert on this separately; the primary
// security operations never see these failures.
func (e *Engine) AuditLogFailures() uint64 {
	if e == nil || e.auditLog == nil {
		return 0
	}
	return e.auditLog.Failures()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// requireLiveSession rejects nil and expired sessions. Expiry is
// absolute, fixed at session creation.
func (e *Engine) requireLiveSession(sess *session.Session) error {
	if sess == nil {
		return ErrNoSession
	}
	if sess.Expired(time.Now()) {
		e.metricInc(MetricSessionExpired)
		return ErrSessionExpired
	}
	return nil
}

// AssuranceLevel surfaces the provider-reported AAL of the current
// provider session. Informational only.
func (e *Engine) AssuranceLevel(ctx context.Context) (string, error) {
	if e == nil || e.provider == nil {
		return "", ErrEngineNotReady
	}
	level, err := e.provider.AssuranceLevel(ctx)
	if err != nil {
		return "", ErrProviderUnavailable
	}
	return level, nil
}
