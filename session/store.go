package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the stored session has passed its absolute expiry.
	ErrExpired = errors.New("session expired")
	// ErrStoreUnavailable wraps Redis transport failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store persists session records in Redis under a configurable prefix.
// The Redis TTL mirrors the absolute expiry so stale records vanish on
// their own; the expiry check on read is the authoritative one.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore creates a session store using the given client and key prefix.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "acs"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save writes the session with a TTL equal to its remaining absolute
// lifetime. Saving an already expired session is rejected.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	now := time.Now()
	if sess.Expired(now) {
		return ErrExpired
	}
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.ID), encoded, sess.Remaining(now)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get loads a session and enforces the absolute expiry. Expired records
// are deleted on sight.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		_, _ = s.redis.Del(ctx, s.key(sessionID)).Result()
		return nil, ErrExpired
	}
	return sess, nil
}

// Touch updates the last-activity stamp in place. The stored TTL is left
// untouched so the absolute expiry cannot drift.
func (s *Store) Touch(ctx context.Context, sess *Session) error {
	now := time.Now()
	if sess.Expired(now) {
		return ErrExpired
	}
	sess.LastActivity = now.Unix()

	encoded, err := Encode(sess)
	if err != nil {
		return err
	}
	// KEEPTTL preserves the remaining absolute lifetime.
	if err := s.redis.Set(ctx, s.key(sess.ID), encoded, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
