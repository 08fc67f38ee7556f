package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
	"github.com/redis/go-redis/v9"
)

var testTokenKey = []byte("0123456789abcdef0123456789abcdef")

// stubProvider is a scriptable IdentityProvider that counts every call,
// so tests can assert which provider operations a flow reached.
type stubProvider struct {
	mu sync.Mutex

	identity Identity

	enrollCalls   int
	createCalls   int
	verifyCalls   int
	unenrollCalls int

	enrollErr   error
	createErr   error
	verifyErr   error
	unenrollErr error

	nextFactorID string
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		identity:     Identity{ID: "id-1", Email: "ops@example.com"},
		nextFactorID: "factor-1",
	}
}

func (p *stubProvider) EnrollFactor(_ context.Context, identityID, friendlyName string) (FactorProvision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrollCalls++
	if p.enrollErr != nil {
		return FactorProvision{}, p.enrollErr
	}
	return FactorProvision{
		FactorID:   p.nextFactorID,
		Secret:     "JBSWY3DPEHPK3PXP",
		OTPAuthURI: fmt.Sprintf("otpauth://totp/test:%s?secret=JBSWY3DPEHPK3PXP", identityID),
	}, nil
}

func (p *stubProvider) CreateChallenge(_ context.Context, factorID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	if p.createErr != nil {
		return "", p.createErr
	}
	return "challenge-" + factorID, nil
}

func (p *stubProvider) VerifyChallenge(_ context.Context, _, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls++
	return p.verifyErr
}

func (p *stubProvider) UnenrollFactor(_ context.Context, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unenrollCalls++
	return p.unenrollErr
}

func (p *stubProvider) CurrentIdentity(context.Context) (Identity, error) {
	return p.identity, nil
}

func (p *stubProvider) AssuranceLevel(context.Context) (string, error) {
	return "aal2", nil
}

func (p *stubProvider) calls() (enroll, create, verify, unenroll int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enrollCalls, p.createCalls, p.verifyCalls, p.unenrollCalls
}

type testEnv struct {
	engine   *Engine
	provider *stubProvider
	sink     *ChannelSink
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := newStubProvider()
	sink := NewChannelSink(64)

	engine, err := New().
		WithRedis(client).
		WithMatrix(permission.ReferenceMatrix()).
		WithProvider(provider).
		WithTokenKey(testTokenKey).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, provider: provider, sink: sink, redis: mr}
}

func liveSession(role permission.Role) *session.Session {
	now := time.Now()
	return &session.Session{
		ID:           "sess-1",
		IdentityID:   "id-1",
		DisplayName:  "Ops User",
		Role:         string(role),
		CreatedAt:    now.Unix(),
		LastActivity: now.Unix(),
		ExpiresAt:    now.Add(time.Hour).Unix(),
	}
}

func expiredSession(role permission.Role) *session.Session {
	sess := liveSession(role)
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	return sess
}

// waitForEvent receives the next audit event of the given type, failing
// the test after a short deadline. Events of other types are skipped.
func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q audit event", eventType)
			return AuditEvent{}
		}
	}
}

func mustBeSentinel(t *testing.T, err, sentinel error) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %v", sentinel, err)
	}
}
