package session

import (
	"errors"
	"testing"
	"time"
)

func TestTokenMintParseRoundTrip(t *testing.T) {
	tm, err := NewTokenManager([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	sess := testSession(8 * time.Hour)
	token, err := tm.Mint(sess)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	sid, err := tm.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sid != sess.ID {
		t.Fatalf("expected session id %q, got %q", sess.ID, sid)
	}
}

func TestTokenRejectedAcrossKeys(t *testing.T) {
	tm1, _ := NewTokenManager([]byte("key-one-key-one-key-one-key-one!"))
	tm2, _ := NewTokenManager([]byte("key-two-key-two-key-two-key-two!"))

	token, err := tm1.Mint(testSession(time.Hour))
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if _, err := tm2.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestMintRejectsExpiredSession(t *testing.T) {
	tm, _ := NewTokenManager([]byte("0123456789abcdef0123456789abcdef"))
	if _, err := tm.Mint(testSession(-time.Minute)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	tm, _ := NewTokenManager([]byte("0123456789abcdef0123456789abcdef"))
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := tm.Parse(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestNewTokenManagerRequiresKey(t *testing.T) {
	if _, err := NewTokenManager(nil); !errors.Is(err, ErrTokenKeyMissing) {
		t.Fatalf("expected ErrTokenKeyMissing, got %v", err)
	}
}
