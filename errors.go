package authcore

import (
	"errors"
	"fmt"

	"github.com/crowdstack/authcore/permission"
)

// Sentinel errors. Flow errors wrap these so callers match with
// errors.Is while the wrapped message keeps the backend detail.
var (
	ErrPermissionDenied            = errors.New("permission denied")
	ErrRoleRequired                = errors.New("role required")
	ErrNoSession                   = errors.New("no active session")
	ErrSessionExpired              = errors.New("session expired")
	ErrEnrollmentFailed            = errors.New("mfa enrollment failed")
	ErrFactorExists                = errors.New("active mfa factor already exists")
	ErrFactorNotFound              = errors.New("mfa factor not found")
	ErrChallengeVerificationFailed = errors.New("challenge verification failed")
	ErrBackupCodeInvalid           = errors.New("invalid backup code")
	ErrProviderUnavailable         = errors.New("identity provider unavailable")
	ErrVaultUnavailable            = errors.New("backup code vault unavailable")
	ErrAuditLogUnavailable         = errors.New("audit log unavailable")
	ErrEngineNotReady              = errors.New("engine not initialized")
)

// PermissionError carries the full denial context for display and audit.
// It unwraps to [ErrPermissionDenied] so callers can match with
// errors.Is without losing the details.
type PermissionError struct {
	IdentityID string
	Role       permission.Role
	Resource   permission.Resource
	Action     permission.Action
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: role %q may not %s %s",
		e.Role, e.Action, e.Resource)
}

// Unwrap makes errors.Is(err, ErrPermissionDenied) hold.
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}
