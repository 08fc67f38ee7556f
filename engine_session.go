package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
	"github.com/google/uuid"
)

// StartSession creates the local session for the provider's current
// identity, persists it with an absolute expiry, and returns it along
// with the signed token the client holds between calls.
//
// The role comes from the caller's trusted role resolution, not from
// this core; an unrecognized role simply holds zero permissions.
func (e *Engine) StartSession(ctx context.Context, role permission.Role, displayName string) (*session.Session, string, error) {
	if e == nil || e.provider == nil || e.sessionStore == nil || e.tokens == nil {
		return nil, "", ErrEngineNotReady
	}

	identity, err := e.provider.CurrentIdentity(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if displayName == "" {
		displayName = identity.Email
	}

	now := time.Now()
	sess := &session.Session{
		ID:           uuid.NewString(),
		IdentityID:   identity.ID,
		DisplayName:  displayName,
		Role:         string(role),
		CreatedAt:    now.Unix(),
		LastActivity: now.Unix(),
		ExpiresAt:    now.Add(e.config.Session.Lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := e.tokens.Mint(sess)
	if err != nil {
		_ = e.sessionStore.Delete(ctx, sess.ID)
		return nil, "", err
	}

	e.metricInc(MetricSessionStarted)
	e.emitAudit(ctx, auditEventSessionStarted, true, sess.IdentityID, "", sess.ID, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})

	return sess, token, nil
}

// ResumeSession validates a session token, loads the stored record, and
// refreshes its last-activity stamp. The absolute expiry is enforced by
// both the token and the store; activity never extends it.
func (e *Engine) ResumeSession(ctx context.Context, token string) (*session.Session, error) {
	if e == nil || e.sessionStore == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	sessionID, err := e.tokens.Parse(token)
	if err != nil {
		return nil, ErrNoSession
	}

	sess, err := e.sessionStore.Get(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrExpired):
			e.metricInc(MetricSessionExpired)
			return nil, ErrSessionExpired
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrNoSession
		default:
			return nil, err
		}
	}

	if err := e.sessionStore.Touch(ctx, sess); err != nil && !errors.Is(err, session.ErrExpired) {
		// Activity stamping is advisory; the session itself is valid.
		_ = err
	}

	return sess, nil
}

// EndSession destroys the stored session. Ending an already-gone
// session is not an error.
func (e *Engine) EndSession(ctx context.Context, sess *session.Session) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if sess == nil {
		return ErrNoSession
	}

	if err := e.sessionStore.Delete(ctx, sess.ID); err != nil {
		return err
	}

	e.metricInc(MetricSessionEnded)
	e.emitAudit(ctx, auditEventSessionEnded, true, sess.IdentityID, "", sess.ID, nil, nil)

	return nil
}
