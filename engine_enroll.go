package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/crowdstack/authcore/internal/vault"
	"github.com/crowdstack/authcore/session"
)

// BeginEnrollment asks the provider to create a new TOTP factor for the
// session's identity and moves the state machine from Unenrolled to
// PendingVerification. The returned secret and otpauth URI are shown to
// the user once and not retained.
//
// Enrollment is refused while an Active factor exists; this design
// supports at most one concurrent factor per identity.
func (e *Engine) BeginEnrollment(ctx context.Context, sess *session.Session, friendlyName string) (*EnrollmentStart, error) {
	if e == nil || e.provider == nil || e.factors == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return nil, err
	}
	if friendlyName == "" {
		friendlyName = "Authenticator"
	}

	existing, err := e.factors.Get(ctx, sess.IdentityID)
	if err != nil && !errors.Is(err, errFactorRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	if existing != nil && existing.State == FactorActive {
		e.metricInc(MetricEnrollmentFailed)
		return nil, ErrFactorExists
	}

	provision, err := e.provider.EnrollFactor(ctx, sess.IdentityID, friendlyName)
	if err != nil {
		e.metricInc(MetricEnrollmentFailed)
		e.emitAudit(ctx, auditEventEnrollmentStarted, false, sess.IdentityID, "", sess.ID, ErrEnrollmentFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}

	record := &factorRecord{
		FactorID:  provision.FactorID,
		Name:      friendlyName,
		State:     FactorPendingVerification,
		CreatedAt: time.Now().Unix(),
	}
	if err := e.factors.Save(ctx, sess.IdentityID, record); err != nil {
		// Best effort: don't leave a dangling provider factor behind a
		// state we failed to record.
		_ = e.provider.UnenrollFactor(ctx, provision.FactorID)
		e.metricInc(MetricEnrollmentFailed)
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}

	e.metricInc(MetricEnrollmentStarted)
	e.emitAudit(ctx, auditEventEnrollmentStarted, true, sess.IdentityID, provision.FactorID, sess.ID, nil, func() map[string]string {
		return map[string]string{"name": friendlyName}
	})

	return &EnrollmentStart{
		FactorID:   provision.FactorID,
		Secret:     provision.Secret,
		OTPAuthURI: provision.OTPAuthURI,
	}, nil
}

// VerifyEnrollment proves possession of the enrolled secret. The code
// must be exactly six digits; anything else is rejected locally so a
// single-use provider challenge is never wasted on it.
//
// On success the factor becomes Active and a fresh batch of backup codes
// replaces any prior batch for the identity; the plaintext codes are
// returned exactly once. On failure the state machine stays in
// PendingVerification and the caller retries with a new code, which
// creates a new challenge.
func (e *Engine) VerifyEnrollment(ctx context.Context, sess *session.Session, factorID, code string) ([]string, error) {
	if e == nil || e.provider == nil || e.factors == nil || e.vault == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return nil, err
	}
	if !validTOTPCode(code) {
		return nil, fmt.Errorf("%w: code must be 6 digits", ErrChallengeVerificationFailed)
	}

	record, err := e.factors.Get(ctx, sess.IdentityID)
	if err != nil {
		if errors.Is(err, errFactorRecordNotFound) {
			return nil, fmt.Errorf("%w: no enrollment in progress", ErrEnrollmentFailed)
		}
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	if record.State != FactorPendingVerification || record.FactorID != factorID {
		return nil, fmt.Errorf("%w: factor not pending verification", ErrEnrollmentFailed)
	}

	challengeID, err := e.provider.CreateChallenge(ctx, factorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if err := e.provider.VerifyChallenge(ctx, factorID, challengeID, code); err != nil {
		e.metricInc(MetricEnrollmentFailed)
		e.emitAudit(ctx, auditEventEnrollmentVerify, false, sess.IdentityID, factorID, sess.ID, ErrChallengeVerificationFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrChallengeVerificationFailed, err)
	}

	record.State = FactorActive
	if err := e.factors.Save(ctx, sess.IdentityID, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}

	codes, err := e.issueBackupCodes(ctx, sess)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEnrollmentCompleted)
	e.emitAudit(ctx, auditEventEnrollmentVerify, true, sess.IdentityID, factorID, sess.ID, nil, nil)

	return codes, nil
}

// Unenroll removes the Active factor and every backup code for the
// session's identity, returning the state machine to Unenrolled. A
// subsequent BeginEnrollment is then permitted.
func (e *Engine) Unenroll(ctx context.Context, sess *session.Session, factorID string) error {
	if e == nil || e.provider == nil || e.factors == nil || e.vault == nil {
		return ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return err
	}

	record, err := e.factors.Get(ctx, sess.IdentityID)
	if err != nil {
		if errors.Is(err, errFactorRecordNotFound) {
			return ErrFactorNotFound
		}
		return fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	if record.State != FactorActive || record.FactorID != factorID {
		return ErrFactorNotFound
	}

	if err := e.provider.UnenrollFactor(ctx, factorID); err != nil {
		e.emitAudit(ctx, auditEventUnenroll, false, sess.IdentityID, factorID, sess.ID, ErrEnrollmentFailed, nil)
		return fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}

	if err := e.factors.Delete(ctx, sess.IdentityID); err != nil {
		return fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	if err := e.vault.DeleteAll(ctx, sess.IdentityID); err != nil {
		return fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}

	e.metricInc(MetricUnenrolled)
	e.emitAudit(ctx, auditEventUnenroll, true, sess.IdentityID, factorID, sess.ID, nil, nil)

	return nil
}

// EnrollmentState returns the identity's current factor. Absence of a
// record reads as Unenrolled.
func (e *Engine) EnrollmentState(ctx context.Context, identityID string) (MFAFactor, error) {
	if e == nil || e.factors == nil {
		return MFAFactor{}, ErrEngineNotReady
	}
	record, err := e.factors.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, errFactorRecordNotFound) {
			return MFAFactor{State: FactorUnenrolled}, nil
		}
		return MFAFactor{}, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
	}
	return record.toFactor(), nil
}

// issueBackupCodes generates a fresh batch and installs it with replace
// semantics, then emits backup_codes_generated.
func (e *Engine) issueBackupCodes(ctx context.Context, sess *session.Session) ([]string, error) {
	batch, err := vault.Generate(e.config.MFA.BackupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	if err := e.vault.Regenerate(ctx, sess.IdentityID, batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}

	e.metricInc(MetricBackupCodesRegenerated)
	count := len(batch)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, sess.IdentityID, "", sess.ID, nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(count)}
	})

	plaintexts := make([]string, 0, len(batch))
	for _, code := range batch {
		plaintexts = append(plaintexts, code.Plaintext)
	}
	return plaintexts, nil
}

// validTOTPCode reports whether code is exactly six ASCII digits.
func validTOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
