package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/crowdstack/authcore/internal/vault"
	"github.com/crowdstack/authcore/session"
)

// LowBackupCodeThreshold is the remaining-unused count below which the
// caller should prompt the user to regenerate.
const LowBackupCodeThreshold = 3

// CreateChallenge issues a single-use provider challenge against the
// factor. A challenge id must never be reused after any verification
// attempt, successful or not; the provider destroys it on first use.
func (e *Engine) CreateChallenge(ctx context.Context, sess *session.Session, factorID string) (string, error) {
	if e == nil || e.provider == nil {
		return "", ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return "", err
	}

	challengeID, err := e.provider.CreateChallenge(ctx, factorID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricChallengeCreated)
	e.emitAudit(ctx, auditEventChallengeCreated, true, sess.IdentityID, factorID, sess.ID, nil, nil)

	return challengeID, nil
}

// VerifyTOTP checks a TOTP code against an open challenge. Codes that
// are not exactly six digits are rejected locally, before the provider
// is contacted, so the single-use challenge is not spent on a typo.
//
// On failure the challenge is gone per provider semantics; the caller
// obtains a fresh one with CreateChallenge before retrying. There is no
// automatic retry here.
func (e *Engine) VerifyTOTP(ctx context.Context, sess *session.Session, factorID, challengeID, code string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return err
	}
	if !validTOTPCode(code) {
		return fmt.Errorf("%w: code must be 6 digits", ErrChallengeVerificationFailed)
	}

	if err := e.provider.VerifyChallenge(ctx, factorID, challengeID, code); err != nil {
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventChallengeFailed, false, sess.IdentityID, factorID, sess.ID, ErrChallengeVerificationFailed, nil)
		return fmt.Errorf("%w: %v", ErrChallengeVerificationFailed, err)
	}

	e.metricInc(MetricChallengeSuccess)
	e.emitAudit(ctx, auditEventChallengeSuccess, true, sess.IdentityID, factorID, sess.ID, nil, nil)

	return nil
}

// VerifyBackupCode spends a one-time recovery code and returns how many
// unused codes remain. Input is upper-cased before comparison and must
// canonicalize to exactly eight characters; shorter or longer input is
// rejected without a storage lookup.
//
// When the returned count drops below [LowBackupCodeThreshold] the
// caller should warn the user.
func (e *Engine) VerifyBackupCode(ctx context.Context, sess *session.Session, code string) (int, error) {
	if e == nil || e.vault == nil {
		return 0, ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return 0, err
	}

	result, err := e.vault.VerifyAndConsume(ctx, sess.IdentityID, code)
	if err != nil {
		if errors.Is(err, vault.ErrMalformed) {
			return 0, fmt.Errorf("%w: code must be 8 characters", ErrBackupCodeInvalid)
		}
		return 0, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}

	if !result.Valid {
		e.metricInc(MetricBackupCodeFailed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, false, sess.IdentityID, "", sess.ID, ErrBackupCodeInvalid, nil)
		return 0, ErrBackupCodeInvalid
	}

	remaining, err := e.vault.CountUnused(ctx, sess.IdentityID)
	if err != nil {
		remaining = 0
	}

	e.metricInc(MetricBackupCodeUsed)
	codeID := result.CodeID
	e.emitAudit(ctx, auditEventBackupCodeUsed, true, sess.IdentityID, "", sess.ID, nil, func() map[string]string {
		return map[string]string{
			"code_id":   codeID,
			"remaining": strconv.Itoa(remaining),
		}
	})

	return remaining, nil
}
