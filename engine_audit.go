package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventPermissionDenied     = "permission_denied"
	auditEventSessionStarted       = "session_started"
	auditEventSessionEnded         = "session_ended"
	auditEventEnrollmentStarted    = "enrollment_started"
	auditEventEnrollmentVerify     = "enrollment_verify"
	auditEventUnenroll             = "unenroll"
	auditEventChallengeCreated     = "challenge_created"
	auditEventChallengeSuccess     = "challenge_success"
	auditEventChallengeFailed      = "challenge_failed"
	auditEventBackupCodesGenerated = "backup_codes_generated"
	auditEventBackupCodeUsed       = "backup_code_used"
)

// AuditErrorCode is the normalized error label written to audit records.
type AuditErrorCode string

const (
	auditErrPermissionDenied AuditErrorCode = "permission_denied"
	auditErrRoleRequired     AuditErrorCode = "role_required"
	auditErrNoSession        AuditErrorCode = "no_session"
	auditErrSessionExpired   AuditErrorCode = "session_expired"
	auditErrEnrollmentFailed AuditErrorCode = "enrollment_failed"
	auditErrChallengeFailed  AuditErrorCode = "challenge_failed"
	auditErrBackupInvalid    AuditErrorCode = "backup_code_invalid"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func severityForEvent(eventType string, success bool) Severity {
	switch eventType {
	case auditEventPermissionDenied:
		return SeverityMedium
	case auditEventChallengeFailed, auditEventUnenroll:
		return SeverityMedium
	case auditEventBackupCodeUsed:
		if !success {
			return SeverityMedium
		}
		return SeverityLow
	default:
		return SeverityLow
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	factorID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["client_ip"] = ip
	}

	event := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		Severity:   severityForEvent(eventType, success),
		Success:    success,
		IdentityID: identityID,
		FactorID:   factorID,
		SessionID:  sessionID,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrRoleRequired):
		return auditErrRoleRequired
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrEnrollmentFailed),
		errors.Is(err, ErrFactorExists),
		errors.Is(err, ErrFactorNotFound):
		return auditErrEnrollmentFailed
	case errors.Is(err, ErrChallengeVerificationFailed):
		return auditErrChallengeFailed
	case errors.Is(err, ErrBackupCodeInvalid):
		return auditErrBackupInvalid
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrVaultUnavailable),
		errors.Is(err, ErrAuditLogUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
