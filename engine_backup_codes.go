package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/crowdstack/authcore/session"
)

// RegenerateBackupCodes replaces the identity's entire backup code batch
// with a fresh one. Requires an Active factor; there is nothing to
// recover into without one. The replacement is atomic: either the old
// batch is fully gone and the new one fully present, or the old batch
// survives intact.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, sess *session.Session) ([]string, error) {
	if e == nil || e.vault == nil || e.factors == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return nil, err
	}

	record, err := e.factors.Get(ctx, sess.IdentityID)
	if err != nil {
		if errors.Is(err, errFactorRecordNotFound) {
			return nil, ErrFactorNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	if record.State != FactorActive {
		return nil, ErrFactorNotFound
	}

	return e.issueBackupCodes(ctx, sess)
}

// CountUnusedBackupCodes reports how many codes remain spendable for the
// session's identity.
func (e *Engine) CountUnusedBackupCodes(ctx context.Context, sess *session.Session) (int, error) {
	if e == nil || e.vault == nil {
		return 0, ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return 0, err
	}
	count, err := e.vault.CountUnused(ctx, sess.IdentityID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	return count, nil
}

// LowOnBackupCodes reports whether the unused count has fallen below
// [LowBackupCodeThreshold].
func (e *Engine) LowOnBackupCodes(ctx context.Context, sess *session.Session) (bool, error) {
	count, err := e.CountUnusedBackupCodes(ctx, sess)
	if err != nil {
		return false, err
	}
	return count < LowBackupCodeThreshold, nil
}
