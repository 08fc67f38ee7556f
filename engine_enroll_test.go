package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/crowdstack/authcore/permission"
)

func TestEnrollmentHappyPath(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleWarehouse)

	start, err := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if start.FactorID == "" || start.Secret == "" || start.OTPAuthURI == "" {
		t.Fatalf("incomplete provisioning: %+v", start)
	}

	factor, err := env.engine.EnrollmentState(ctx, sess.IdentityID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if factor.State != FactorPendingVerification {
		t.Fatalf("state = %s, want pending_verification", factor.State)
	}

	codes, err := env.engine.VerifyEnrollment(ctx, sess, start.FactorID, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(codes))
	}
	for _, code := range codes {
		if len(code) != 8 {
			t.Fatalf("backup code %q is not 8 characters", code)
		}
	}

	factor, err = env.engine.EnrollmentState(ctx, sess.IdentityID)
	if err != nil {
		t.Fatalf("state after verify: %v", err)
	}
	if factor.State != FactorActive || factor.FactorID != start.FactorID {
		t.Fatalf("expected active factor %s, got %+v", start.FactorID, factor)
	}

	event := waitForEvent(t, env.sink, "enrollment_verify")
	if !event.Success || event.FactorID != start.FactorID {
		t.Fatalf("unexpected verify event: %+v", event)
	}
}

func TestVerifyEnrollmentWithoutBegin(t *testing.T) {
	env := newTestEngine(t)

	_, err := env.engine.VerifyEnrollment(context.Background(), liveSession(permission.RoleAdmin), "factor-1", "123456")
	mustBeSentinel(t, err, ErrEnrollmentFailed)
}

func TestBeginEnrollmentRefusesSecondActiveFactor(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	start, err := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := env.engine.VerifyEnrollment(ctx, sess, start.FactorID, "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err = env.engine.BeginEnrollment(ctx, sess, "Tablet")
	mustBeSentinel(t, err, ErrFactorExists)
}

func TestBeginEnrollmentReplacesPendingFactor(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	if _, err := env.engine.BeginEnrollment(ctx, sess, "Phone"); err != nil {
		t.Fatalf("first begin: %v", err)
	}

	// Abandoned pending enrollment; starting over is allowed.
	env.provider.nextFactorID = "factor-2"
	start, err := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if start.FactorID != "factor-2" {
		t.Fatalf("expected fresh factor, got %s", start.FactorID)
	}

	factor, _ := env.engine.EnrollmentState(ctx, sess.IdentityID)
	if factor.FactorID != "factor-2" || factor.State != FactorPendingVerification {
		t.Fatalf("pending record not replaced: %+v", factor)
	}
}

func TestVerifyEnrollmentRejectsMalformedCodeLocally(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	start, err := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	for _, code := range []string{"12345", "1234567", "12345a", "", "12 456"} {
		_, err := env.engine.VerifyEnrollment(ctx, sess, start.FactorID, code)
		mustBeSentinel(t, err, ErrChallengeVerificationFailed)
	}

	// Local validation must not spend provider challenges.
	_, create, verify, _ := env.provider.calls()
	if create != 0 || verify != 0 {
		t.Fatalf("provider contacted for malformed codes: create=%d verify=%d", create, verify)
	}
}

func TestVerifyEnrollmentFailureKeepsPendingState(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	start, err := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	env.provider.verifyErr = errors.New("code mismatch")
	_, err = env.engine.VerifyEnrollment(ctx, sess, start.FactorID, "123456")
	mustBeSentinel(t, err, ErrChallengeVerificationFailed)

	event := waitForEvent(t, env.sink, "enrollment_verify")
	if event.Success {
		t.Fatal("failed verify must audit as failure")
	}

	factor, _ := env.engine.EnrollmentState(ctx, sess.IdentityID)
	if factor.State != FactorPendingVerification {
		t.Fatalf("state = %s, want pending after failure", factor.State)
	}

	// A retry with a good code succeeds and uses a fresh challenge.
	env.provider.verifyErr = nil
	if _, err := env.engine.VerifyEnrollment(ctx, sess, start.FactorID, "654321"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	_, create, _, _ := env.provider.calls()
	if create != 2 {
		t.Fatalf("expected 2 challenges created, got %d", create)
	}
}

func TestUnenrollReturnsToUnenrolled(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	start, _ := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if _, err := env.engine.VerifyEnrollment(ctx, sess, start.FactorID, "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := env.engine.Unenroll(ctx, sess, start.FactorID); err != nil {
		t.Fatalf("unenroll: %v", err)
	}

	factor, _ := env.engine.EnrollmentState(ctx, sess.IdentityID)
	if factor.State != FactorUnenrolled {
		t.Fatalf("state = %s, want unenrolled", factor.State)
	}

	// Backup codes are destroyed along with the factor.
	count, err := env.engine.CountUnusedBackupCodes(ctx, sess)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 backup codes after unenroll, got %d", count)
	}

	// Re-enrollment is permitted again.
	env.provider.nextFactorID = "factor-2"
	if _, err := env.engine.BeginEnrollment(ctx, sess, "Phone"); err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
}

func TestUnenrollUnknownFactor(t *testing.T) {
	env := newTestEngine(t)
	sess := liveSession(permission.RoleAdmin)

	err := env.engine.Unenroll(context.Background(), sess, "factor-1")
	mustBeSentinel(t, err, ErrFactorNotFound)
}

func TestUnenrollRejectsPendingFactor(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	start, _ := env.engine.BeginEnrollment(ctx, sess, "Phone")

	err := env.engine.Unenroll(ctx, sess, start.FactorID)
	mustBeSentinel(t, err, ErrFactorNotFound)
}

func TestEnrollmentRequiresLiveSession(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	if _, err := env.engine.BeginEnrollment(ctx, nil, "Phone"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := env.engine.BeginEnrollment(ctx, expiredSession(permission.RoleAdmin), "Phone"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
