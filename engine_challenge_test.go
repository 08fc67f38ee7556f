package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
)

func enrollActiveFactor(t *testing.T, env *testEnv) (*session.Session, string, []string) {
	t.Helper()
	ctx := context.Background()
	sess := liveSession(permission.RoleAdmin)

	start, err := env.engine.BeginEnrollment(ctx, sess, "Phone")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	codes, err := env.engine.VerifyEnrollment(ctx, sess, start.FactorID, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return sess, start.FactorID, codes
}

func TestCreateChallenge(t *testing.T) {
	env := newTestEngine(t)
	sess, factorID, _ := enrollActiveFactor(t, env)

	challengeID, err := env.engine.CreateChallenge(context.Background(), sess, factorID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if challengeID == "" {
		t.Fatal("expected a challenge id")
	}

	event := waitForEvent(t, env.sink, "challenge_created")
	if event.FactorID != factorID {
		t.Fatalf("event factor = %q, want %q", event.FactorID, factorID)
	}
}

func TestVerifyTOTPSuccess(t *testing.T) {
	env := newTestEngine(t)
	sess, factorID, _ := enrollActiveFactor(t, env)
	ctx := context.Background()

	challengeID, err := env.engine.CreateChallenge(ctx, sess, factorID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.engine.VerifyTOTP(ctx, sess, factorID, challengeID, "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	event := waitForEvent(t, env.sink, "challenge_success")
	if !event.Success {
		t.Fatal("success event flagged as failure")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricChallengeSuccess] != 1 {
		t.Fatalf("expected 1 success counted, got %d", snap.Counters[MetricChallengeSuccess])
	}
}

func TestVerifyTOTPFailure(t *testing.T) {
	env := newTestEngine(t)
	sess, factorID, _ := enrollActiveFactor(t, env)
	ctx := context.Background()

	challengeID, _ := env.engine.CreateChallenge(ctx, sess, factorID)

	env.provider.verifyErr = errors.New("code mismatch")
	err := env.engine.VerifyTOTP(ctx, sess, factorID, challengeID, "999999")
	mustBeSentinel(t, err, ErrChallengeVerificationFailed)

	event := waitForEvent(t, env.sink, "challenge_failed")
	if event.Success {
		t.Fatal("failure event flagged as success")
	}
	if event.Severity != SeverityMedium {
		t.Fatalf("expected medium severity, got %s", event.Severity)
	}
}

func TestVerifyTOTPRejectsMalformedCodeLocally(t *testing.T) {
	env := newTestEngine(t)
	sess, factorID, _ := enrollActiveFactor(t, env)
	ctx := context.Background()

	_, createBefore, verifyBefore, _ := env.provider.calls()

	for _, code := range []string{"12345", "1234567", "abcdef", ""} {
		err := env.engine.VerifyTOTP(ctx, sess, factorID, "challenge-x", code)
		mustBeSentinel(t, err, ErrChallengeVerificationFailed)
	}

	_, createAfter, verifyAfter, _ := env.provider.calls()
	if createAfter != createBefore || verifyAfter != verifyBefore {
		t.Fatal("provider contacted for malformed codes")
	}
}

func TestVerifyBackupCodeSpendsOnce(t *testing.T) {
	env := newTestEngine(t)
	sess, _, codes := enrollActiveFactor(t, env)
	ctx := context.Background()

	remaining, err := env.engine.VerifyBackupCode(ctx, sess, codes[0])
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if remaining != len(codes)-1 {
		t.Fatalf("remaining = %d, want %d", remaining, len(codes)-1)
	}

	event := waitForEvent(t, env.sink, "backup_code_used")
	if !event.Success || event.Metadata["remaining"] != "9" {
		t.Fatalf("unexpected event: %+v", event)
	}

	// The same code is spent and must not verify twice.
	_, err = env.engine.VerifyBackupCode(ctx, sess, codes[0])
	mustBeSentinel(t, err, ErrBackupCodeInvalid)
}

func TestVerifyBackupCodeCaseInsensitive(t *testing.T) {
	env := newTestEngine(t)
	sess, _, codes := enrollActiveFactor(t, env)

	lower := ""
	for _, r := range codes[0] {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		lower += string(r)
	}

	if _, err := env.engine.VerifyBackupCode(context.Background(), sess, lower); err != nil {
		t.Fatalf("lowercase input should verify, got %v", err)
	}
}

func TestVerifyBackupCodeWrongLengthSkipsStorage(t *testing.T) {
	env := newTestEngine(t)
	sess, _, _ := enrollActiveFactor(t, env)

	// Closing the backend proves length validation happens first.
	env.redis.Close()

	_, err := env.engine.VerifyBackupCode(context.Background(), sess, "SHORT")
	mustBeSentinel(t, err, ErrBackupCodeInvalid)
}

func TestLowBackupCodeThreshold(t *testing.T) {
	if LowBackupCodeThreshold != 3 {
		t.Fatalf("threshold = %d, want 3", LowBackupCodeThreshold)
	}

	env := newTestEngine(t)
	sess, _, codes := enrollActiveFactor(t, env)
	ctx := context.Background()

	low, err := env.engine.LowOnBackupCodes(ctx, sess)
	if err != nil || low {
		t.Fatalf("fresh batch must not be low: low=%v err=%v", low, err)
	}

	// Spend down to 2 remaining.
	for _, code := range codes[:len(codes)-2] {
		if _, err := env.engine.VerifyBackupCode(ctx, sess, code); err != nil {
			t.Fatalf("spend %q: %v", code, err)
		}
	}

	low, err = env.engine.LowOnBackupCodes(ctx, sess)
	if err != nil || !low {
		t.Fatalf("2 remaining should be low: low=%v err=%v", low, err)
	}
}

