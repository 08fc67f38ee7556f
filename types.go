package authcore

import (
	"context"
	"time"
)

// FactorState is the lifecycle state of an identity's TOTP factor.
//
// The state machine is Unenrolled → PendingVerification → Active, with
// Active → Unenrolled via an explicit unenroll.
type FactorState uint8

const (
	FactorUnenrolled FactorState = iota
	FactorPendingVerification
	FactorActive
)

// String returns the lowercase state name used in audit metadata.
func (s FactorState) String() string {
	switch s {
	case FactorUnenrolled:
		return "unenrolled"
	case FactorPendingVerification:
		return "pending_verification"
	case FactorActive:
		return "active"
	default:
		return "unknown"
	}
}

// Identity is the provider's view of the authenticated principal.
type Identity struct {
	ID    string
	Email string
}

// FactorProvision holds the provider-issued material for a new TOTP
// factor. Secret and OTPAuthURI are shown to the user during setup and
// never persisted by this core.
type FactorProvision struct {
	FactorID   string
	Secret     string
	OTPAuthURI string
}

// MFAFactor is the registered TOTP credential for an identity. An
// identity has zero or one factor in this design; enrollment refuses a
// second Active factor.
type MFAFactor struct {
	FactorID  string
	Name      string
	State     FactorState
	CreatedAt time.Time
}

// EnrollmentStart is returned by [Engine.BeginEnrollment].
type EnrollmentStart struct {
	FactorID   string
	Secret     string
	OTPAuthURI string
}

// IdentityProvider is the narrow external contract the engine
// orchestrates. Implementations own all TOTP cryptography: secret
// generation, otpauth URI construction, challenge issuance, and code
// verification. Challenges are single-use; after any verification
// attempt the engine requests a fresh one rather than retrying.
//
// The localidp sub-package provides an in-process implementation for
// development and tests.
type IdentityProvider interface {
	EnrollFactor(ctx context.Context, identityID, friendlyName string) (FactorProvision, error)
	CreateChallenge(ctx context.Context, factorID string) (string, error)
	VerifyChallenge(ctx context.Context, factorID, challengeID, code string) error
	UnenrollFactor(ctx context.Context, factorID string) error
	CurrentIdentity(ctx context.Context) (Identity, error)
	// AssuranceLevel reports the provider's current AAL. Informational
	// only; the engine never branches on it.
	AssuranceLevel(ctx context.Context) (string, error)
}
