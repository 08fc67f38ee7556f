package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned for malformed, mis-signed, or expired tokens.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrTokenKeyMissing is returned when the manager is built without a key.
	ErrTokenKeyMissing = errors.New("session token key required")
)

// TokenManager mints and parses the signed token a client holds between
// calls. The token carries only the session id; everything else lives in
// the store, so revoking the stored record invalidates the token.
type TokenManager struct {
	key []byte
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewTokenManager creates an HS256 token manager with the given key.
func NewTokenManager(key []byte) (*TokenManager, error) {
	if len(key) == 0 {
		return nil, ErrTokenKeyMissing
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &TokenManager{key: k}, nil
}

// Mint signs a token bound to sess. The token expiry mirrors the
// session's absolute expiry.
func (m *TokenManager) Mint(sess *Session) (string, error) {
	now := time.Now()
	if sess.Expired(now) {
		return "", ErrExpired
	}

	claims := sessionClaims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.IdentityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(time.Unix(sess.ExpiresAt, 0)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return signed, nil
}

// Parse validates the signature and expiry and returns the session id.
func (m *TokenManager) Parse(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.SessionID == "" {
		return "", ErrTokenInvalid
	}
	return claims.SessionID, nil
}
