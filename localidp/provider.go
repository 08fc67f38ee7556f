// Package localidp is an in-process [authcore.IdentityProvider] backed
// by an RFC 6238 TOTP implementation. It exists for development and for
// the test suite; production deployments point the engine at their
// managed identity provider instead.
//
// Challenge semantics match the managed providers the engine targets:
// every challenge is single-use and is consumed by the first
// verification attempt, successful or not.
package localidp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crowdstack/authcore"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

// ChallengeTTL is the provider-defined validity window of a challenge.
const ChallengeTTL = 5 * time.Minute

var (
	// ErrFactorNotFound is returned for operations on unknown factor ids.
	ErrFactorNotFound = errors.New("localidp: factor not found")
	// ErrChallengeInvalid is returned for unknown, expired, or spent challenges.
	ErrChallengeInvalid = errors.New("localidp: challenge invalid")
	// ErrCodeInvalid is returned when the TOTP code does not verify.
	ErrCodeInvalid = errors.New("localidp: code invalid")
)

type factor struct {
	identityID string
	name       string
	secret     string
}

type challenge struct {
	factorID  string
	expiresAt time.Time
}

// Provider is an in-memory identity provider. Safe for concurrent use.
type Provider struct {
	issuer   string
	identity authcore.Identity

	mu         sync.Mutex
	factors    map[string]*factor
	challenges map[string]*challenge

	now func() time.Time
}

// New creates a provider that reports identity as the current principal.
func New(issuer string, identity authcore.Identity) *Provider {
	if issuer == "" {
		issuer = "authcore-dev"
	}
	return &Provider{
		issuer:     issuer,
		identity:   identity,
		factors:    make(map[string]*factor),
		challenges: make(map[string]*challenge),
		now:        time.Now,
	}
}

// EnrollFactor generates a fresh TOTP secret and otpauth URI.
func (p *Provider) EnrollFactor(_ context.Context, identityID, friendlyName string) (authcore.FactorProvision, error) {
	account := identityID
	if p.identity.Email != "" && identityID == p.identity.ID {
		account = p.identity.Email
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: account,
	})
	if err != nil {
		return authcore.FactorProvision{}, err
	}

	factorID := uuid.NewString()

	p.mu.Lock()
	p.factors[factorID] = &factor{
		identityID: identityID,
		name:       friendlyName,
		secret:     key.Secret(),
	}
	p.mu.Unlock()

	return authcore.FactorProvision{
		FactorID:   factorID,
		Secret:     key.Secret(),
		OTPAuthURI: key.URL(),
	}, nil
}

// CreateChallenge issues a single-use challenge against the factor.
func (p *Provider) CreateChallenge(_ context.Context, factorID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.factors[factorID]; !ok {
		return "", ErrFactorNotFound
	}

	challengeID := uuid.NewString()
	p.challenges[challengeID] = &challenge{
		factorID:  factorID,
		expiresAt: p.now().Add(ChallengeTTL),
	}
	return challengeID, nil
}

// VerifyChallenge consumes the challenge and checks the code. The
// challenge is destroyed whatever the outcome; a retry needs a new one.
func (p *Provider) VerifyChallenge(_ context.Context, factorID, challengeID, code string) error {
	p.mu.Lock()
	ch, ok := p.challenges[challengeID]
	if ok {
		delete(p.challenges, challengeID)
	}
	f := p.factors[factorID]
	now := p.now()
	p.mu.Unlock()

	if !ok || ch.factorID != factorID || now.After(ch.expiresAt) {
		return ErrChallengeInvalid
	}
	if f == nil {
		return ErrFactorNotFound
	}
	if !totp.Validate(code, f.secret) {
		return ErrCodeInvalid
	}
	return nil
}

// UnenrollFactor removes the factor and any challenges pointing at it.
func (p *Provider) UnenrollFactor(_ context.Context, factorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.factors[factorID]; !ok {
		return ErrFactorNotFound
	}
	delete(p.factors, factorID)
	for id, ch := range p.challenges {
		if ch.factorID == factorID {
			delete(p.challenges, id)
		}
	}
	return nil
}

// CurrentIdentity returns the identity the provider was built with.
func (p *Provider) CurrentIdentity(context.Context) (authcore.Identity, error) {
	return p.identity, nil
}

// AssuranceLevel reports aal2 once at least one factor exists, aal1
// otherwise.
func (p *Provider) AssuranceLevel(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.factors) > 0 {
		return "aal2", nil
	}
	return "aal1", nil
}

// CurrentCode computes the code an authenticator app would show right
// now for the factor. Test helper.
func (p *Provider) CurrentCode(factorID string) (string, error) {
	p.mu.Lock()
	f, ok := p.factors[factorID]
	p.mu.Unlock()
	if !ok {
		return "", ErrFactorNotFound
	}
	return totp.GenerateCode(f.secret, p.now())
}
