// Package auditlog persists security events per identity for the
// user-facing security-history view.
//
// Writes are best-effort: a failed append is swallowed, counted, and
// reported to an optional diagnostic callback, never to the caller of
// the security operation being audited.
package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis transport failures on the query side.
var ErrUnavailable = errors.New("audit log store unavailable")

// Entry is the persisted form of a security event.
type Entry struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	Success    bool              `json:"success"`
	IdentityID string            `json:"identity_id,omitempty"`
	FactorID   string            `json:"factor_id,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Store appends entries to a per-identity capped Redis list, newest
// first.
type Store struct {
	redis      *redis.Client
	prefix     string
	maxPerUser int64
	failures   atomic.Uint64
	diagnostic func(error)
}

// NewStore creates an audit log store. maxPerUser caps the retained
// history per identity; zero or negative selects the default of 500.
// diagnostic, when non-nil, receives every swallowed write error.
func NewStore(client *redis.Client, prefix string, maxPerUser int, diagnostic func(error)) *Store {
	if prefix == "" {
		prefix = "sal"
	}
	if maxPerUser <= 0 {
		maxPerUser = 500
	}
	return &Store{
		redis:      client,
		prefix:     prefix,
		maxPerUser: int64(maxPerUser),
		diagnostic: diagnostic,
	}
}

func (s *Store) key(identityID string) string {
	return s.prefix + ":" + identityID
}

// Append writes the entry. Failures never propagate; they are counted
// and handed to the diagnostic callback.
func (s *Store) Append(ctx context.Context, entry Entry) {
	if s == nil || entry.IdentityID == "" {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.reportFailure(err)
		return
	}

	key := s.key(entry.IdentityID)
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.maxPerUser-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.reportFailure(err)
	}
}

// Recent returns up to limit events for the identity, newest first.
func (s *Store) Recent(ctx context.Context, identityID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.redis.LRange(ctx, s.key(identityID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// Skip records a future version wrote in a shape this one
			// cannot read.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Failures reports how many appends were swallowed since construction.
func (s *Store) Failures() uint64 {
	if s == nil {
		return 0
	}
	return s.failures.Load()
}

func (s *Store) reportFailure(err error) {
	s.failures.Add(1)
	if s.diagnostic != nil {
		s.diagnostic(err)
	}
}
