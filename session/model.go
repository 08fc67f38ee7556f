package session

import "time"

// Session is the authenticated actor. It carries exactly one role from
// the deployment's closed role set; an unrecognized role simply matches
// nothing in the permission matrix and therefore holds zero permissions.
type Session struct {
	ID           string
	IdentityID   string
	DisplayName  string
	Role         string
	CreatedAt    int64
	LastActivity int64
	ExpiresAt    int64
}

// Expired reports whether the absolute expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return now.Unix() >= s.ExpiresAt
}

// Remaining returns the time left before absolute expiry, or zero when
// already expired.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	d := time.Unix(s.ExpiresAt, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
